// Package kv holds the key value capability used by the session store,
// with an in-memory implementation for tests and single process setups and
// a redis implementation for production.
package kv

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ErrNotFound is returned by Get for absent or expired keys
var ErrNotFound = goerrors.New("key not found", goerrors.CategoryNotFound).
	WithTextCode("KEY_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

// ErrInvalidTTL entries always expire, a non positive TTL is rejected
var ErrInvalidTTL = goerrors.New("ttl must be positive", goerrors.CategoryBadInput).
	WithTextCode("INVALID_TTL").
	WithCode(goerrors.CodeBadRequest)

// Store is an append/overwrite by key store with per entry expiry
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CompareAndSwapper is implemented by stores that can replace a value
// atomically. An empty old value means the key must be absent.
type CompareAndSwapper interface {
	CompareAndSwap(ctx context.Context, key, old, value string, ttl time.Duration) (bool, error)
}
