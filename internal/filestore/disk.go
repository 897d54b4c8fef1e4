package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Disk stores files in a local directory.
type Disk struct {
	dir string
	now func() time.Time
}

func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Disk{dir: dir, now: time.Now}, nil
}

func (d *Disk) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	f, path, err := d.create(originalName)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

// create opens a new file, moving the timestamp forward on a name clash.
func (d *Disk) create(originalName string) (*os.File, string, error) {
	ts := d.now()
	for i := 0; ; i++ {
		path := filepath.Join(d.dir, StoredName(ts, originalName))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) || i == 100 {
			return nil, "", fmt.Errorf("create %s: %w", path, err)
		}
		ts = ts.Add(time.Millisecond)
	}
}

func (d *Disk) Remove(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
