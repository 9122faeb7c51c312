// Package objectstore provides document byte retrieval adapters.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrObjectNotFound is returned when no object exists at the storage path.
var ErrObjectNotFound = errors.New("object not found")

// Local serves document bytes from a directory tree rooted at Root. Storage
// paths from the catalog are resolved relative to Root and may never escape
// it, even when a catalog row is corrupted or hostile.
type Local struct {
	root string
}

// NewLocal creates a local object store rooted at root.
func NewLocal(root string) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("object store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve object store root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat object store root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("object store root %s is not a directory", abs)
	}
	return &Local{root: abs}, nil
}

// Get opens the object at storagePath for reading.
func (l *Local) Get(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full, err := l.resolve(storagePath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	return f, nil
}

func (l *Local) resolve(storagePath string) (string, error) {
	cleaned := filepath.Clean(strings.TrimSpace(storagePath))
	if cleaned == "" || cleaned == "." || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid storage path %q", storagePath)
	}
	full := filepath.Join(l.root, cleaned)
	if full != l.root && !strings.HasPrefix(full, l.root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage path %q", storagePath)
	}
	return full, nil
}
