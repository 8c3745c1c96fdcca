// Package cache wraps the shared key-value store with namespacing, JSON
// serialization, the fixed TTL policy, and a degrade-don't-fail contract:
// store failures are logged, counted, and reported as domain.StoreError, and
// GetOrCompute absorbs them entirely by falling through to the compute step.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/weather-cache-service/internal/domain"
	"github.com/couchcryptid/weather-cache-service/internal/kvstore"
	"github.com/couchcryptid/weather-cache-service/internal/observability"
)

// ErrNonPositiveTTL rejects writes that would create a permanent entry.
var ErrNonPositiveTTL = errors.New("cache: ttl must be positive")

// Gateway is the namespaced view of the key-value store every component shares.
type Gateway struct {
	store   kvstore.Store
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewGateway creates a Gateway over store.
func NewGateway(store kvstore.Store, logger *slog.Logger, metrics *observability.Metrics) *Gateway {
	return &Gateway{store: store, logger: logger, metrics: metrics}
}

// Key joins a namespace and a key into the stored key.
func Key(namespace, key string) string {
	return namespace + ":" + key
}

// GetOrCompute returns the cached value for namespace:key, or computes, stores
// with ttl, and returns it. Store failures never reach the caller: a failed
// lookup falls through to compute and skips the write-back. Errors from compute
// propagate unchanged and nothing is cached for them.
//
// Concurrent misses for the same key each compute and write; the last write wins.
func GetOrCompute[T any](ctx context.Context, g *Gateway, namespace, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	if ttl <= 0 {
		return zero, ErrNonPositiveTTL
	}
	full := Key(namespace, key)

	writeBack := true
	raw, err := g.store.Get(ctx, full)
	switch {
	case err == nil:
		var v T
		jerr := json.Unmarshal(raw, &v)
		if jerr == nil {
			g.metrics.CacheRequests.WithLabelValues(namespace, "hit").Inc()
			return v, nil
		}
		g.logger.Warn("discarding undecodable cache entry", "key", full, "error", jerr)
		g.metrics.CacheRequests.WithLabelValues(namespace, "miss").Inc()
	case errors.Is(err, kvstore.ErrNotFound):
		g.metrics.CacheRequests.WithLabelValues(namespace, "miss").Inc()
	default:
		_ = g.fail("get", full, err)
		g.metrics.CacheRequests.WithLabelValues(namespace, "degraded").Inc()
		writeBack = false
	}

	v, err := compute(ctx)
	if err != nil {
		return zero, err
	}

	if writeBack {
		// A failed write-back is logged and counted by set; the value is still good.
		_ = g.set(ctx, full, v, ttl)
	}
	return v, nil
}

// Get decodes namespace:key into dst and reports whether it was present.
func (g *Gateway) Get(ctx context.Context, namespace, key string, dst any) (bool, error) {
	full := Key(namespace, key)
	raw, err := g.store.Get(ctx, full)
	if errors.Is(err, kvstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, g.fail("get", full, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", full, err)
	}
	return true, nil
}

// Put stores value under namespace:key for ttl.
func (g *Gateway) Put(ctx context.Context, namespace, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrNonPositiveTTL
	}
	return g.set(ctx, Key(namespace, key), value, ttl)
}

// Delete removes namespace:key.
func (g *Gateway) Delete(ctx context.Context, namespace, key string) error {
	full := Key(namespace, key)
	if _, err := g.store.Del(ctx, full); err != nil {
		return g.fail("del", full, err)
	}
	return nil
}

// EvictNamespace deletes every key matching pattern and returns how many were removed.
// The pattern must start with a literal namespace such as "weather:".
func (g *Gateway) EvictNamespace(ctx context.Context, pattern string) (int, error) {
	if !namespacePrefixed(pattern) {
		return 0, fmt.Errorf("cache: pattern %q is not namespace-prefixed", pattern)
	}
	keys, err := g.store.Keys(ctx, pattern)
	if err != nil {
		return 0, g.fail("keys", pattern, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := g.store.Del(ctx, keys...)
	if err != nil {
		return 0, g.fail("del", pattern, err)
	}
	g.logger.Info("cache namespace evicted", "pattern", pattern, "deleted", n)
	return int(n), nil
}

// CountKeys reports how many keys match pattern.
func (g *Gateway) CountKeys(ctx context.Context, pattern string) (int, error) {
	keys, err := g.Keys(ctx, pattern)
	return len(keys), err
}

// Keys lists the keys matching pattern.
func (g *Gateway) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := g.store.Keys(ctx, pattern)
	if err != nil {
		return nil, g.fail("keys", pattern, err)
	}
	return keys, nil
}

// IncrWithTTL increments the counter at key. A counter without an expiry gets
// ttl in the same store call, so it expires ttl after its first use and a failed
// call never leaves it permanent.
func (g *Gateway) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, ErrNonPositiveTTL
	}
	n, err := g.store.IncrWithExpire(ctx, key, ttl)
	if err != nil {
		return 0, g.fail("incr", key, err)
	}
	return n, nil
}

// ZIncrWithTTL adds one to member's score in the sorted set at key and refreshes
// the set's ttl.
func (g *Gateway) ZIncrWithTTL(ctx context.Context, key, member string, ttl time.Duration) (float64, error) {
	score, err := g.store.ZIncrBy(ctx, key, 1, member)
	if err != nil {
		return 0, g.fail("zincrby", key, err)
	}
	if err := g.store.Expire(ctx, key, ttl); err != nil {
		return score, g.fail("expire", key, err)
	}
	return score, nil
}

// Top returns up to limit members of the sorted set at key, highest score first.
func (g *Gateway) Top(ctx context.Context, key string, limit int) ([]kvstore.ScoredMember, error) {
	if limit <= 0 {
		return nil, nil
	}
	members, err := g.store.ZRevRangeWithScores(ctx, key, 0, int64(limit-1))
	if err != nil {
		return nil, g.fail("zrevrange", key, err)
	}
	return members, nil
}

// HSetWithTTL stores value as JSON in field of the hash at key and refreshes its ttl.
func (g *Gateway) HSetWithTTL(ctx context.Context, key, field string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrNonPositiveTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s[%s]: %w", key, field, err)
	}
	if err := g.store.HSet(ctx, key, field, data); err != nil {
		return g.fail("hset", key, err)
	}
	if err := g.store.Expire(ctx, key, ttl); err != nil {
		return g.fail("expire", key, err)
	}
	return nil
}

// HGetAll returns every field of the hash at key.
func (g *Gateway) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	fields, err := g.store.HGetAll(ctx, key)
	if err != nil {
		return nil, g.fail("hgetall", key, err)
	}
	return fields, nil
}

// HDel removes fields from the hash at key.
func (g *Gateway) HDel(ctx context.Context, key string, fields ...string) error {
	if err := g.store.HDel(ctx, key, fields...); err != nil {
		return g.fail("hdel", key, err)
	}
	return nil
}

// GetInt reads a counter. A missing counter reads as zero.
func (g *Gateway) GetInt(ctx context.Context, key string) (int64, error) {
	raw, err := g.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, g.fail("get", key, err)
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("counter %s: %w", key, err)
	}
	return n, nil
}

// DeleteKeys removes keys by exact name.
func (g *Gateway) DeleteKeys(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := g.store.Del(ctx, keys...)
	if err != nil {
		return 0, g.fail("del", strings.Join(keys, ","), err)
	}
	return int(n), nil
}

func (g *Gateway) set(ctx context.Context, full string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", full, err)
	}
	if err := g.store.Set(ctx, full, data, ttl); err != nil {
		return g.fail("set", full, err)
	}
	return nil
}

// fail records a degraded-mode event and wraps err as a StoreError.
func (g *Gateway) fail(op, key string, err error) error {
	g.metrics.StoreDegraded.WithLabelValues(op).Inc()
	g.logger.Warn("key-value store degraded", "op", op, "key", key, "error", err)
	return &domain.StoreError{Op: op, Key: key, Err: err}
}

func namespacePrefixed(pattern string) bool {
	literal := pattern
	if i := strings.IndexAny(pattern, `*?[\`); i >= 0 {
		literal = pattern[:i]
	}
	return strings.Contains(literal, ":") && !strings.HasPrefix(literal, ":")
}
