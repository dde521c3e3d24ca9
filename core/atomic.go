package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// AtomicFile is a temporary file that replaces its destination on Commit.
// Until then the destination is never touched.
type AtomicFile struct {
	*os.File
	path string
	tmp  string
	done bool
}

// CreateAtomic creates a temporary file next to path.
func CreateAtomic(path string) (*AtomicFile, error) {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, MarkNotFound(fmt.Errorf("create output %s: %w", path, err))
	}

	return &AtomicFile{
		File: f,
		path: path,
		tmp:  tmp,
	}, nil
}

// Path returns the final destination.
func (f *AtomicFile) Path() string {
	return f.path
}

// Commit closes the temporary file and renames it over the destination.
func (f *AtomicFile) Commit() error {
	if f.done {
		return nil
	}
	f.done = true

	if err := f.File.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		_ = os.Remove(f.tmp)
		return fmt.Errorf("close %s: %w", f.tmp, err)
	}

	if err := os.Rename(f.tmp, f.path); err != nil {
		_ = os.Remove(f.tmp)
		return fmt.Errorf("rename %s: %w", f.path, err)
	}

	return nil
}

// Abort closes and removes the temporary file. It is a no-op after Commit.
func (f *AtomicFile) Abort() {
	if f.done {
		return
	}
	f.done = true

	_ = f.File.Close()
	_ = os.Remove(f.tmp)
}
