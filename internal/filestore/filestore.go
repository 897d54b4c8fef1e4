// Package filestore persists uploaded images. Backends return the path that
// is recorded on the owning record.
package filestore

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// Store saves and removes uploaded files.
type Store interface {
	// Save writes r under a name derived from originalName and returns the
	// stored path.
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
	Remove(ctx context.Context, path string) error
}

// StoredName prefixes the base of originalName with the upload time in
// milliseconds so that uploads with the same name do not clash.
func StoredName(now time.Time, originalName string) string {
	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		base = "upload"
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), base)
}
