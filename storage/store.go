// Package storage persists chunk audio and recovery state on disk.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store is the audio persistence collaborator.
type Store interface {
	Save(data []byte, suggestedName string) (path string, err error)
	Exists(path string) bool
	Read(path string) ([]byte, error)
}

// DiskStore writes under a base directory, suffixing names that
// collide so existing files are never overwritten.
type DiskStore struct {
	baseDir string
}

func NewDiskStore(baseDir string) (*DiskStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &DiskStore{baseDir: baseDir}, nil
}

func (s *DiskStore) Save(data []byte, suggestedName string) (string, error) {
	path := s.uniquePath(suggestedName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

func (s *DiskStore) uniquePath(name string) string {
	path := filepath.Join(s.baseDir, name)
	if !s.Exists(path) {
		return path
	}
	ext := filepath.Ext(name)
	stem := name[:len(name)-len(ext)]
	for i := 1; ; i++ {
		path = filepath.Join(s.baseDir, fmt.Sprintf("%s-%d%s", stem, i, ext))
		if !s.Exists(path) {
			return path
		}
	}
}

func (s *DiskStore) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (s *DiskStore) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}
