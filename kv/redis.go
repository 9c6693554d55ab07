package kv

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisURL is used when no address is configured
const DefaultRedisURL = "redis://localhost:6379"

// RedisStore implements Store on top of a redis client
type RedisStore struct {
	client redis.UniversalClient
}

var (
	_ Store             = (*RedisStore)(nil)
	_ CompareAndSwapper = (*RedisStore)(nil)
)

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisStoreFromURL parses a redis:// URL and opens a client
func NewRedisStoreFromURL(rawURL string) (*RedisStore, error) {
	if rawURL == "" {
		rawURL = DefaultRedisURL
	}

	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid redis url").
			WithMetadata(map[string]any{"url": rawURL})
	}

	return NewRedisStore(redis.NewClient(opts)), nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// CompareAndSwap uses WATCH/MULTI, a concurrent write to key aborts the
// transaction and reports false.
func (r *RedisStore) CompareAndSwap(ctx context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}

	swapped := false
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		if current != old {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, value, ttl)
			return nil
		})
		if err != nil {
			return err
		}

		swapped = true
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return swapped, nil
}

// Ping checks connectivity
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying client
func (r *RedisStore) Close() error {
	return r.client.Close()
}
