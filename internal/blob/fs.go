package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/agenthands/tabgraph/internal/core"
)

// FS keeps objects as files under one directory.
type FS struct {
	Dir string
}

func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob dir '%s': %w", dir, err)
	}
	return &FS{Dir: dir}, nil
}

func (s *FS) Put(_ context.Context, name string, r io.Reader) error {
	if err := checkName(name); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.Dir, ".put-*")
	if err != nil {
		return fmt.Errorf("%w: put %q: %w", core.ErrStorage, name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: put %q: %w", core.ErrStorage, name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: put %q: %w", core.ErrStorage, name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.Dir, name)); err != nil {
		return fmt.Errorf("%w: put %q: %w", core.ErrStorage, name, err)
	}
	return nil
}

func (s *FS) Get(_ context.Context, name string) (io.ReadCloser, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.Dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: object %q", core.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %q: %w", core.ErrStorage, name, err)
	}
	return f, nil
}

func (s *FS) Exists(_ context.Context, name string) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	_, err := os.Stat(filepath.Join(s.Dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: stat %q: %w", core.ErrStorage, name, err)
	}
	return true, nil
}
