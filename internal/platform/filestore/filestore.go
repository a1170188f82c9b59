// Package filestore keeps claim document contents on local disk. References
// handed out by Store are slash-separated paths relative to the root.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var errOutsideRoot = errors.New("filestore: path escapes the storage root")

type Local struct {
	root string
}

// NewLocal returns a store rooted at dir, creating it when missing.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Local{root: abs}, nil
}

func (l *Local) resolve(ref string) (string, error) {
	clean := path.Clean("/" + ref)
	if clean == "/" {
		return "", errOutsideRoot
	}
	full := filepath.Join(l.root, filepath.FromSlash(clean))
	if !strings.HasPrefix(full, l.root+string(filepath.Separator)) {
		return "", errOutsideRoot
	}
	return full, nil
}

// Store writes r to name and returns its reference. The file appears under
// its final name only once fully written.
func (l *Local) Store(ctx context.Context, r io.Reader, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := l.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", fmt.Errorf("move file into place: %w", err)
	}
	return strings.TrimPrefix(path.Clean("/"+name), "/"), nil
}

// Delete removes the file behind ref. Deleting a missing file succeeds.
func (l *Local) Delete(_ context.Context, ref string) error {
	full, err := l.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// Open returns the contents behind ref.
func (l *Local) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	full, err := l.resolve(ref)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}
