package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalBlobStore stores blobs as files on disk under a root directory,
// using the content-addressed key as the relative path.
type LocalBlobStore struct {
	root string
}

// NewLocalBlobStore creates a disk-backed blob store rooted at dir,
// creating the directory if it doesn't exist.
func NewLocalBlobStore(dir string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &LocalBlobStore{root: dir}, nil
}

func (s *LocalBlobStore) Put(ctx context.Context, content []byte) (string, error) {
	key := KeyFor(content)
	path := s.path(key)
	if _, err := os.Stat(path); err == nil {
		return key, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("finalize blob: %w", err)
	}
	return key, nil
}

func (s *LocalBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	content, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return content, nil
}

func (s *LocalBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *LocalBlobStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Root returns the directory blobs are stored under, for disk-usage
// reporting (internal/storage.DiskUsageBytes).
func (s *LocalBlobStore) Root() string {
	return s.root
}
