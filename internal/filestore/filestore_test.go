package filestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStoredName(t *testing.T) {
	ts := time.UnixMilli(1700000000123)

	tests := []struct {
		name     string
		original string
		want     string
	}{
		{"plain", "house.jpg", "1700000000123-house.jpg"},
		{"strips directories", "../../etc/passwd.png", "1700000000123-passwd.png"},
		{"strips windows directories", `C:\photos\front.gif`, "1700000000123-front.gif"},
		{"empty", "", "1700000000123-upload"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, StoredName(ts, tc.original))
		})
	}
}
