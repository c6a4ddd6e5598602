// Package storage provides blob storage adapters for rule persistence.
// Two media are supported: flat JSON files under a data directory, and a
// single-table SQLite database. Both satisfy rules.BlobStorage.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists blobs as individual files under a base directory.
// Writes go through a temp file + rename so a crash mid-write never
// leaves a half-written document behind.
type FileStore struct {
	baseDir string
	mu      sync.Mutex
}

// NewFileStore creates the base directory if needed and returns a store.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", baseDir, err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.baseDir, key+".json")
}

// ReadBlob reads a stored blob. A key that was never written returns
// ok=false with no error.
func (s *FileStore) ReadBlob(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return data, true, nil
}

// WriteBlob durably replaces the blob stored under key.
func (s *FileStore) WriteBlob(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}
