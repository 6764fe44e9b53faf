package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	HashStore
	KVStore
	SetStore
	FieldUpdater
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
// HSet only touches the given fields, so it doubles as a targeted partial update.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// SetStore provides unordered set operations used for secondary indexes.
type SetStore interface {
	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// UpdateFunc computes the next value of a hash field from its current value
// ("" when the field is absent). Returning write=false leaves the field untouched.
// It may be called more than once when a concurrent writer wins the race.
type UpdateFunc func(current string) (next string, write bool, err error)

// FieldUpdater performs an atomic read-modify-write of a single hash field.
type FieldUpdater interface {
	// HUpdate returns ErrKeyNotFound if the hash does not exist and ErrTxConflict
	// if the update kept losing races after all retries.
	HUpdate(ctx context.Context, key, field string, fn UpdateFunc) error
}
