// Package store provides the ephemeral key-value store holding one JSON
// job record per job id with a per-key TTL. The store's own eviction is
// aligned with the job's logical expiry: Set always receives the remaining
// lifetime, never a fixed duration.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get when the key is absent or evicted.
var ErrKeyNotFound = errors.New("key not found")

// KV is the minimal contract the job lifecycle needs: atomic get, set with
// TTL, and delete. Implementations must treat an expired key as absent.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
