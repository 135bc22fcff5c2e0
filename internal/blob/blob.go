// Package blob keeps opaque objects (ciphertext) on an afero filesystem.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

var (
	ErrNotFound    = errors.New("blob: object not found")
	ErrInvalidPath = errors.New("blob: invalid object path")
)

// Store is a flat object store rooted at a directory.
type Store struct {
	fs afero.Fs
}

// NewStore wraps fs as-is. Use it with afero.NewMemMapFs in tests.
func NewStore(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// NewDiskStore roots a store at dir on the OS filesystem.
func NewDiskStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return NewStore(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

func clean(p string) (string, error) {
	if p == "" || strings.Contains(p, "..") || strings.HasPrefix(p, "/") {
		return "", ErrInvalidPath
	}
	return path.Clean(p), nil
}

func (s *Store) Put(ctx context.Context, p string, data []byte) error {
	p, err := clean(p)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(path.Dir(p), 0o750); err != nil {
		return fmt.Errorf("blob storage: %w", err)
	}
	if err := afero.WriteFile(s.fs, p, data, 0o600); err != nil {
		return fmt.Errorf("blob storage: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, p string) ([]byte, error) {
	p, err := clean(p)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blob storage: %w", err)
	}
	return data, nil
}

// Delete removes an object. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, p string) error {
	p, err := clean(p)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err = s.fs.Remove(p)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("blob storage: %w", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, p string) (bool, error) {
	p, err := clean(p)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, p)
}
