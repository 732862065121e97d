// Package file reads the raw listings file from local disk.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local opens one path on the local filesystem.
type Local struct{ path string }

// NewLocal returns a Local source for path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Open returns a fresh reader over the file. A done context returns its
// error without touching the disk. Directories are rejected. Filesystem
// errors stay visible to errors.Is (os.ErrNotExist).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("file source: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("file source: stat %s: %w", l.path, err)
	}
	if fi.IsDir() {
		f.Close()
		return nil, fmt.Errorf("file source: %s is a directory", l.path)
	}
	return f, nil
}

func (l *Local) String() string { return "file://" + l.path }
