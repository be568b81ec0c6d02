package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (r *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (r *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		r.data[key] = string(v)
	case string:
		r.data[key] = v
	}
	r.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (r *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := r.data[key]; ok {
			delete(r.data, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func testStores(clock *fakeClock) (map[string]Store, *fakeRedis) {
	memory := NewMemoryStore(Options{})
	memory.now = clock.now

	backend := newFakeRedis()
	redisStore := newRedisStore(backend, Options{})
	redisStore.now = clock.now

	return map[string]Store{"memory": memory, "redis": redisStore}, backend
}

func TestStoreThrottlesUpdates(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	stores, _ := testStores(clock)

	for name, store := range stores {
		updated, err := store.Update(ctx, 42, 1, 10, false)
		require.NoError(t, err, name)
		assert.True(t, updated, name)

		clock.advance(time.Second)
		updated, err = store.Update(ctx, 42, 2, 10, false)
		require.NoError(t, err, name)
		assert.False(t, updated, name)

		updated, err = store.Update(ctx, 42, 3, 10, true)
		require.NoError(t, err, name)
		assert.True(t, updated, name)

		clock.advance(DefaultMinInterval)
		updated, err = store.Update(ctx, 42, 4, 10, false)
		require.NoError(t, err, name)
		assert.True(t, updated, name)

		// other chats are not throttled
		updated, err = store.Update(ctx, 7, 1, 3, false)
		require.NoError(t, err, name)
		assert.True(t, updated, name)

		got, err := store.Get(ctx, 42)
		require.NoError(t, err, name)
		require.NotNil(t, got, name)
		assert.Equal(t, 4, got.Current, name)
		assert.Equal(t, 10, got.Total, name)
		assert.Equal(t, 40.0, got.Percentage, name)

		require.NoError(t, store.Clear(ctx, 42), name)
		got, err = store.Get(ctx, 42)
		require.NoError(t, err, name)
		assert.Nil(t, got, name)

		clock.advance(time.Minute)
	}
}

func TestRedisStoreKeysAndTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	_, backend := testStores(clock)
	store := newRedisStore(backend, Options{TTL: 10 * time.Minute})
	store.now = clock.now

	_, err := store.Update(context.Background(), 100, 1, 3, false)
	require.NoError(t, err)

	assert.Contains(t, backend.data, "progress:100")
	assert.Contains(t, backend.data, "last_update:100")
	assert.Equal(t, 10*time.Minute, backend.ttls["progress:100"])
	assert.JSONEq(t, `{"current": 1, "total": 3, "percentage": 33.3, "updated_at": "2024-06-01T12:00:00Z"}`, backend.data["progress:100"])
}

func TestMemoryStoreExpires(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(Options{TTL: time.Minute})
	store.now = clock.now

	_, err := store.Update(context.Background(), 1, 1, 2, false)
	require.NoError(t, err)

	clock.advance(2 * time.Minute)
	got, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}
