package dao

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"khabiteq-backend/db"
)

// StorageRepository keeps opaque per-owner values keyed by storage key.
type StorageRepository struct {
	db      *sql.DB
	dialect db.Dialect
}

func NewStorageRepository(conn *sql.DB, dialect db.Dialect) *StorageRepository {
	return &StorageRepository{db: conn, dialect: dialect}
}

// Get returns nil, nil when no value is stored.
func (r *StorageRepository) Get(ctx context.Context, ownerID, key string) ([]byte, error) {
	query := r.dialect.Rebind(`SELECT value FROM selection_storage WHERE owner_id = ? AND storage_key = ?`)

	var value string
	if err := r.db.QueryRowContext(ctx, query, ownerID, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return []byte(value), nil
}

func (r *StorageRepository) Set(ctx context.Context, ownerID, key string, value []byte) error {
	query := r.dialect.Upsert("selection_storage",
		[]string{"owner_id", "storage_key"},
		[]string{"value", "updated_at"})
	_, err := r.db.ExecContext(ctx, query, ownerID, key, string(value), time.Now().UTC())
	return err
}

func (r *StorageRepository) Delete(ctx context.Context, ownerID, key string) error {
	query := r.dialect.Rebind(`DELETE FROM selection_storage WHERE owner_id = ? AND storage_key = ?`)
	_, err := r.db.ExecContext(ctx, query, ownerID, key)
	return err
}

func (r *StorageRepository) Keys(ctx context.Context, ownerID string) ([]string, error) {
	query := r.dialect.Rebind(`SELECT storage_key FROM selection_storage WHERE owner_id = ? ORDER BY storage_key`)
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
