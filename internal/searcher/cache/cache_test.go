package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	data    map[string]string
	err     error
	flushed []string
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushed = append(m.flushed, pattern)
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, strings.TrimSuffix(pattern, "*")) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

type response struct {
	Items []string `json:"items"`
}

func TestGetOrCompute(t *testing.T) {
	store := newMemStore()
	c := New[response](store, SearchPrefix, time.Minute, SearchKey)
	ctx := context.Background()

	calls := 0
	compute := func() (*response, error) {
		calls++
		return &response{Items: []string{"a", "b"}}, nil
	}

	got, hit, err := c.GetOrCompute(ctx, "Hello World", 10, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"a", "b"}, got.Items)

	got, hit, err = c.GetOrCompute(ctx, "hello,world", 10, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"a", "b"}, got.Items)
	assert.Equal(t, 1, calls)

	_, hit, err = c.GetOrCompute(ctx, "hello world", 5, compute)
	require.NoError(t, err)
	assert.False(t, hit, "limit is part of the key")

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
}

func TestGetOrComputeError(t *testing.T) {
	c := New[response](newMemStore(), SearchPrefix, time.Minute, SearchKey)
	_, _, err := c.GetOrCompute(context.Background(), "q", 1, func() (*response, error) {
		return nil, errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
}

func TestGetOrComputeCollapsesConcurrentMisses(t *testing.T) {
	c := New[response](newMemStore(), SuggestPrefix, time.Minute, SuggestKey)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (*response, error) {
		calls.Add(1)
		<-release
		return &response{Items: []string{"x"}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, _, err := c.GetOrCompute(context.Background(), "serch", 3, compute)
			assert.NoError(t, err)
			assert.Equal(t, []string{"x"}, got.Items)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestStoreFailureFallsThrough(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	c := New[response](store, SearchPrefix, time.Minute, SearchKey)

	for i := 0; i < 10; i++ {
		got, hit, err := c.GetOrCompute(context.Background(), "q", 1, func() (*response, error) {
			return &response{Items: []string{"fresh"}}, nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, []string{"fresh"}, got.Items)
	}
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := New[response](store, SuggestPrefix, time.Minute, SuggestKey)
	c.Set(context.Background(), "q", 1, &response{})
	require.Len(t, store.data, 1)

	require.NoError(t, c.Invalidate(context.Background()))
	assert.Equal(t, []string{"suggest:*"}, store.flushed)
	assert.Empty(t, store.data)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, SearchKey("New York", 10), SearchKey("new,york", 10))
	assert.NotEqual(t, SearchKey("new york", 10), SearchKey("york new", 10))
	assert.NotEqual(t, SuggestKey("New yrok", 10), SuggestKey("new yrok", 10))
}
