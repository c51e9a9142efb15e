// Package storage is the durable key-value boundary behind the selection cache.
// It plays the part the browser's local storage plays for the web client.
package storage

import (
	"context"
	"errors"
)

// Sentinel errors for store operations.
var (
	ErrLoadFailed = errors.New("load failed")
	ErrSaveFailed = errors.New("save failed")
)

// Store persists raw values under fixed keys. Missing keys are not an error:
// Get reports found=false.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes a key. Missing keys are ignored.
	Delete(ctx context.Context, key string) error
}

// Factory returns the Store for one owner (a browser session, a user account).
type Factory func(ownerID string) Store
