package main

import (
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/require"
)

func fileHeader(name, contentType string, size int64) *multipart.FileHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Type", contentType)
	return &multipart.FileHeader{Filename: name, Header: h, Size: size}
}

func TestValidateImage(t *testing.T) {
	tests := []struct {
		name string
		fh   *multipart.FileHeader
		ok   bool
	}{
		{"png", fileHeader("a.png", "image/png", 10), true},
		{"upper case jpeg", fileHeader("a.JPEG", "image/jpeg", 10), true},
		{"gif at limit", fileHeader("a.gif", "image/gif", maxImageSize), true},
		{"over limit", fileHeader("a.gif", "image/gif", maxImageSize+1), false},
		{"exe", fileHeader("malware.exe", "application/x-msdownload", 10), false},
		{"image type with bad extension", fileHeader("a.svg", "image/png", 10), false},
		{"good extension with bad type", fileHeader("a.png", "text/html", 10), false},
		{"no extension", fileHeader("png", "image/png", 10), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateImage(tt.fh)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestPropertyFormFields(t *testing.T) {
	f := &propertyForm{values: map[string][]string{
		"address": {"1 Main St"},
		"city":    {""},
	}}
	require.Equal(t, "1 Main St", *f.field("address"))
	require.Equal(t, "", *f.field("city"))
	require.Nil(t, f.nonEmpty("city"))
	require.Nil(t, f.field("zip"))

	empty := &propertyForm{}
	require.Nil(t, empty.field("address"))
}
