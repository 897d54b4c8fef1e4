package main

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	imagesField      = "images"
	maxImageSize     = 5 << 20
	maxImagesPerForm = 10
	maxFormMemory    = 32 << 20
	// all files at their limit plus room for the text fields
	maxUploadBody = maxImagesPerForm*maxImageSize + 1<<20
)

var (
	allowedImageExts  = map[string]bool{".jpeg": true, ".jpg": true, ".png": true, ".gif": true}
	allowedImageMIMEs = regexp.MustCompile(`jpeg|jpg|png|gif`)
)

// propertyForm is the parsed body of a create or update request.
type propertyForm struct {
	values map[string][]string
	files  []*multipart.FileHeader
}

// field returns the first value for key, or nil when the key is absent.
func (f *propertyForm) field(key string) *string {
	vs, ok := f.values[key]
	if !ok || len(vs) == 0 {
		return nil
	}
	v := vs[0]
	return &v
}

// nonEmpty is like field but treats an empty value as absent.
func (f *propertyForm) nonEmpty(key string) *string {
	if v := f.field(key); v != nil && *v != "" {
		return v
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

// parsePropertyForm reads a multipart body, enforcing the request size and
// file count limits.
func parsePropertyForm(w http.ResponseWriter, r *http.Request) (*propertyForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: request body too large", ErrValidation)
		}
		return nil, fmt.Errorf("%w: invalid multipart body", ErrValidation)
	}
	form := &propertyForm{values: r.MultipartForm.Value}
	for key, fhs := range r.MultipartForm.File {
		if key != imagesField {
			return nil, fmt.Errorf("%w: unexpected file field %q", ErrValidation, key)
		}
		form.files = fhs
	}
	if len(form.files) > maxImagesPerForm {
		return nil, fmt.Errorf("%w: at most %d images per request", ErrValidation, maxImagesPerForm)
	}
	return form, nil
}

// validateImage accepts jpeg, png and gif files up to maxImageSize. Both the
// extension and the declared content type must match.
func validateImage(fh *multipart.FileHeader) error {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	mime := strings.ToLower(fh.Header.Get("Content-Type"))
	if !allowedImageExts[ext] || !allowedImageMIMEs.MatchString(mime) {
		return fmt.Errorf("%w: %s: images only", ErrValidation, fh.Filename)
	}
	if fh.Size > maxImageSize {
		return fmt.Errorf("%w: %s: file exceeds %d bytes", ErrValidation, fh.Filename, maxImageSize)
	}
	return nil
}

// saveImages validates every file before persisting any of them. On a
// storage failure the files saved so far are removed.
func (a *App) saveImages(ctx context.Context, files []*multipart.FileHeader) ([]string, error) {
	for _, fh := range files {
		if err := validateImage(fh); err != nil {
			return nil, err
		}
	}
	paths := make([]string, 0, len(files))
	for _, fh := range files {
		path, err := a.saveImage(ctx, fh)
		if err != nil {
			a.removeImages(ctx, paths)
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (a *App) saveImage(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return a.Files.Save(ctx, fh.Filename, f)
}

func (a *App) removeImages(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := a.Files.Remove(ctx, p); err != nil {
			a.log.WarnContext(ctx, "remove uploaded image", "path", p, "err", err)
		}
	}
}
