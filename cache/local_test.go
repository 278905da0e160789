package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_RoundTrip(t *testing.T) {
	store := NewLocalStore(10, nil)

	inserted := store.Set("k", []byte("v"), time.Minute)
	assert.True(t, inserted)

	data, found := store.Get("k")
	require.True(t, found)
	assert.Equal(t, "v", string(data))

	inserted = store.Set("k", []byte("v2"), time.Minute)
	assert.False(t, inserted)

	data, _ = store.Get("k")
	assert.Equal(t, "v2", string(data))
}

func TestLocalStore_MissingKey(t *testing.T) {
	store := NewLocalStore(10, nil)

	_, found := store.Get("ghost")
	assert.False(t, found)
}

func TestLocalStore_LazyExpiry(t *testing.T) {
	evicted := 0
	store := NewLocalStore(10, func(n int) { evicted += n })

	store.Set("short", []byte("v"), 20*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	_, found := store.Get("short")
	assert.False(t, found)
	assert.Equal(t, 1, evicted)
	assert.Zero(t, store.Len())
}

func TestLocalStore_CapacityEviction(t *testing.T) {
	evicted := 0
	store := NewLocalStore(100, func(n int) { evicted += n })

	for i := 0; i < 150; i++ {
		store.Set(fmt.Sprintf("key-%d", i), []byte("v"), time.Hour)
	}

	assert.LessOrEqual(t, store.Len(), 100)
	assert.Greater(t, evicted, 0)
}

func TestLocalStore_EvictsColdestFirst(t *testing.T) {
	store := NewLocalStore(10, nil)

	for i := 0; i < 10; i++ {
		store.Set(fmt.Sprintf("key-%d", i), []byte("v"), time.Hour)
		time.Sleep(2 * time.Millisecond)
	}

	// Warm the two oldest entries so they are no longer the coldest
	store.Get("key-0")
	store.Get("key-1")
	time.Sleep(2 * time.Millisecond)

	store.Set("overflow", []byte("v"), time.Hour)

	_, found := store.Get("key-0")
	assert.True(t, found, "recently accessed entry should survive")
	_, found = store.Get("key-2")
	assert.False(t, found, "coldest entry should be evicted")
	_, found = store.Get("key-3")
	assert.False(t, found, "second coldest entry should be evicted")
	_, found = store.Get("overflow")
	assert.True(t, found)
}

func TestLocalStore_EvictionDropsExpiredFirst(t *testing.T) {
	store := NewLocalStore(5, nil)

	store.Set("stale-1", []byte("v"), 10*time.Millisecond)
	store.Set("stale-2", []byte("v"), 10*time.Millisecond)
	store.Set("live-1", []byte("v"), time.Hour)
	store.Set("live-2", []byte("v"), time.Hour)
	store.Set("live-3", []byte("v"), time.Hour)

	time.Sleep(30 * time.Millisecond)

	// Insert at capacity: phase one clears the expired pair, so the live
	// entries survive
	store.Set("live-4", []byte("v"), time.Hour)

	for _, key := range []string{"live-1", "live-2", "live-3", "live-4"} {
		_, found := store.Get(key)
		assert.True(t, found, key)
	}
}

func TestLocalStore_Delete(t *testing.T) {
	store := NewLocalStore(10, nil)

	store.Set("k", []byte("v"), time.Minute)
	assert.True(t, store.Delete("k"))
	assert.False(t, store.Delete("k"))
}

func TestLocalStore_Flush(t *testing.T) {
	store := NewLocalStore(10, nil)

	store.Set("a", []byte("1"), time.Minute)
	store.Set("b", []byte("2"), time.Minute)

	assert.Equal(t, 2, store.Flush())
	assert.Zero(t, store.Len())
}

func TestLocalStore_DeleteContaining(t *testing.T) {
	store := NewLocalStore(10, nil)

	store.Set("user:1", []byte("a"), time.Minute)
	store.Set("user:2", []byte("b"), time.Minute)
	store.Set("order:1", []byte("c"), time.Minute)

	assert.Equal(t, 2, store.DeleteContaining("user:"))
	assert.Equal(t, 1, store.Len())

	_, found := store.Get("order:1")
	assert.True(t, found)
}

func TestLocalStore_SweepExpired(t *testing.T) {
	evicted := 0
	store := NewLocalStore(10, func(n int) { evicted += n })

	store.Set("stale", []byte("v"), 10*time.Millisecond)
	store.Set("live", []byte("v"), time.Hour)

	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 1, store.SweepExpired())
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, store.Len())
}

func TestLocalStore_TTLHandling(t *testing.T) {
	store := NewLocalStore(10, nil)

	store.Set("k", []byte("v"), time.Minute)

	remaining, ok := store.TTLRemaining("k")
	require.True(t, ok)
	assert.Greater(t, remaining, 50*time.Second)

	assert.True(t, store.SetTTL("k", time.Hour))
	remaining, _ = store.TTLRemaining("k")
	assert.Greater(t, remaining, 50*time.Minute)

	assert.False(t, store.SetTTL("missing", time.Minute))
	_, ok = store.TTLRemaining("missing")
	assert.False(t, ok)
}

func TestLocalStore_DefaultCapacity(t *testing.T) {
	store := NewLocalStore(0, nil)
	assert.Equal(t, DefaultLocalCapacity, store.capacity)
}
