package storage

import (
	"context"
	"fmt"

	"khabiteq-backend/dao"
)

type sqlStore struct {
	repo    *dao.StorageRepository
	ownerID string
}

// NewSQLStore creates a Store over the selection_storage table, scoped to one owner.
func NewSQLStore(repo *dao.StorageRepository, ownerID string) Store {
	return &sqlStore{repo: repo, ownerID: ownerID}
}

func NewSQLFactory(repo *dao.StorageRepository) Factory {
	return func(ownerID string) Store {
		return NewSQLStore(repo, ownerID)
	}
}

func (s *sqlStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.repo.Get(ctx, s.ownerID, key)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrLoadFailed, key, err)
	}
	if val == nil {
		return nil, false, nil
	}
	return val, true, nil
}

func (s *sqlStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.repo.Set(ctx, s.ownerID, key, value); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}
	return nil
}

func (s *sqlStore) Delete(ctx context.Context, key string) error {
	if err := s.repo.Delete(ctx, s.ownerID, key); err != nil {
		return fmt.Errorf("delete failed: %s: %w", key, err)
	}
	return nil
}
