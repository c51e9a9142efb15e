package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

type fileStore struct {
	root string
}

// NewFileStore creates a Store backed by the filesystem. Each key becomes one
// file under root; writes go through a temp file and rename.
func NewFileStore(root string) Store {
	return &fileStore{root: root}
}

// NewFileFactory scopes file stores to a sub-directory per owner.
func NewFileFactory(root string) Factory {
	return func(ownerID string) Store {
		return NewFileStore(filepath.Join(root, url.PathEscape(ownerID)))
	}
}

func (s *fileStore) path(key string) string {
	return filepath.Join(s.root, url.PathEscape(key)+".json")
}

func (s *fileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %s: %v", ErrLoadFailed, key, err)
	}
	return data, true, nil
}

func (s *fileStore) Set(_ context.Context, key string, value []byte) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}

	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}
	return nil
}

func (s *fileStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete failed: %s: %w", key, err)
	}
	return nil
}
