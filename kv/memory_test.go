package kv_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-auth-session/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStoreSetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))

	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	require.ErrorIs(t, err, kv.ErrNotFound)
}

func TestMemoryStoreExpiresEntries(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	store := kv.NewMemoryStore().WithClock(clock.Now)

	require.NoError(t, store.Set(ctx, "k", "v", 10*time.Second))

	clock.Advance(9 * time.Second)
	_, err := store.Get(ctx, "k")
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = store.Get(ctx, "k")
	require.ErrorIs(t, err, kv.ErrNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreRejectsNonPositiveTTL(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()

	require.ErrorIs(t, store.Set(ctx, "k", "v", 0), kv.ErrInvalidTTL)
	require.ErrorIs(t, store.Set(ctx, "k", "v", -time.Second), kv.ErrInvalidTTL)
}

func TestMemoryStoreCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()

	swapped, err := store.CompareAndSwap(ctx, "k", "", "first", time.Minute)
	require.NoError(t, err)
	assert.True(t, swapped)

	swapped, err = store.CompareAndSwap(ctx, "k", "", "second", time.Minute)
	require.NoError(t, err)
	assert.False(t, swapped)

	swapped, err = store.CompareAndSwap(ctx, "k", "first", "second", time.Minute)
	require.NoError(t, err)
	assert.True(t, swapped)

	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "second", value)
}

func TestMemoryStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := kv.NewMemoryStore()
	_, err := store.Get(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
}
