// Package storage persists encoded images.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Store writes files to an afero filesystem.
type Store struct {
	fs afero.Fs
}

// New creates a store on fs. A nil fs selects the operating system filesystem.
func New(fs afero.Fs) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{fs: fs}
}

// Write stores data at path, creating parent directories as needed.
// Existing files are overwritten.
func (s *Store) Write(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Read returns the contents of the file at path.
func (s *Store) Read(path string) ([]byte, error) {
	return afero.ReadFile(s.fs, path)
}

// Exists reports whether a regular file exists at path.
func (s *Store) Exists(path string) bool {
	info, err := s.fs.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// DefaultDir returns the directory used for generated file names when no
// output location is configured: the user's Documents folder, or the
// working directory if there is no home directory.
func DefaultDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Documents")
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}
