// Package cache stores query responses in Redis. Concurrent misses for the
// same key are collapsed with singleflight, and a circuit breaker stops
// the cache from adding latency while Redis is unreachable.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/searcher/parser"
	pkgredis "github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

// Key prefixes for the two response kinds.
const (
	SearchPrefix  = "search:"
	SuggestPrefix = "suggest:"
)

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// KeyFunc maps a query and limit to the part of the cache key that
// identifies equivalent requests.
type KeyFunc func(query string, limit int) string

// QueryCache caches responses of type T under one key prefix.
type QueryCache[T any] struct {
	store   Store
	prefix  string
	ttl     time.Duration
	keyFunc KeyFunc
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New[T any](store Store, prefix string, ttl time.Duration, keyFunc KeyFunc) *QueryCache[T] {
	return &QueryCache[T]{
		store:   store,
		prefix:  prefix,
		ttl:     ttl,
		keyFunc: keyFunc,
		breaker: resilience.NewCircuitBreaker("redis-"+strings.TrimSuffix(prefix, ":"), resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     10 * time.Second,
		}),
		logger: slog.Default().With("component", "query-cache", "prefix", prefix),
	}
}

// SearchKey normalises a record search. Terms are lower-cased and keep
// their order, since the intersection order fixes the score products.
func SearchKey(query string, limit int) string {
	plan := parser.Parse(query)
	return fmt.Sprintf("%s|limit=%d", strings.Join(plan.Terms, ","), limit)
}

// SuggestKey keeps the query verbatim because the prefix text is echoed
// back in every suggestion.
func SuggestKey(query string, limit int) string {
	return fmt.Sprintf("%s|limit=%d", query, limit)
}

func (c *QueryCache[T]) Get(ctx context.Context, query string, limit int) (*T, bool) {
	key := c.buildKey(query, limit)
	var data string
	err := c.breaker.Execute(func() error {
		var getErr error
		data, getErr = c.store.Get(ctx, key)
		if pkgredis.IsNilError(getErr) {
			return nil
		}
		return getErr
	})
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	if data == "" {
		c.misses.Add(1)
		return nil, false
	}
	var result T
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", query, "key", key)
	return &result, true
}

func (c *QueryCache[T]) Set(ctx context.Context, query string, limit int, result *T) {
	key := c.buildKey(query, limit)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached response or computes, stores and
// returns a fresh one. The boolean reports a cache hit.
func (c *QueryCache[T]) GetOrCompute(
	ctx context.Context,
	query string,
	limit int,
	computeFn func() (*T, error),
) (*T, bool, error) {
	if result, ok := c.Get(ctx, query, limit); ok {
		return result, true, nil
	}
	key := c.buildKey(query, limit)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, limit, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*T), false, nil
}

func (c *QueryCache[T]) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, c.prefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache[T]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BreakerState reports the circuit breaker guarding Redis.
func (c *QueryCache[T]) BreakerState() string {
	return c.breaker.State().String()
}

func (c *QueryCache[T]) buildKey(query string, limit int) string {
	hash := sha256.Sum256([]byte(c.keyFunc(query, limit)))
	return fmt.Sprintf("%s%x", c.prefix, hash[:16])
}
