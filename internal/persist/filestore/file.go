// Package filestore keeps the history document in a JSON file inside the
// data directory.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/yiblet/cliphist/internal/persist"
)

const (
	// FileName is the name of the document inside the data directory.
	FileName = persist.RecordName + ".json"

	// FilePermissions for the document
	FilePermissions = 0600

	// DirPermissions for the data directory
	DirPermissions = 0700
)

var _ persist.Store = (*FileStore)(nil)

// FileStore stores the document at <dir>/clipboard-storage.json.
type FileStore struct {
	dir string
}

// New creates a file store rooted at dir, creating the directory if needed.
func New(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dir, DirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the location of the document.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Load reads the document.
func (s *FileStore) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, persist.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Path(), err)
	}
	return data, nil
}

// Save replaces the document atomically: the data is written to a
// temporary file in the same directory and renamed over the old one.
func (s *FileStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, FilePermissions); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	// Rename to final location (atomic on POSIX)
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename failed: %w", err)
	}
	return nil
}

// Close releases resources (no-op for file store).
func (s *FileStore) Close() error {
	return nil
}
