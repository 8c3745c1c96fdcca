// Package kvstore defines the key-value store capability the cache, alert, and
// analytics components share, plus an in-memory implementation.
//
// The interface mirrors the subset of Redis the service relies on: strings with
// TTL, atomic increments, sorted sets for rankings, and hashes for subscriptions.
// Production wiring uses the Redis adapter; tests and local runs use [Memory].
package kvstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key is absent or expired.
	ErrNotFound = errors.New("kvstore: key not found")

	// ErrWrongType is returned when an operation targets a key holding a different kind of value.
	ErrWrongType = errors.New("kvstore: operation against a key holding the wrong kind of value")
)

// ScoredMember is one sorted-set entry.
type ScoredMember struct {
	Member string
	Score  float64
}

// Store is the shared key-value store. Every method may fail with a transport
// error when the store is unreachable; callers decide how to degrade.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value with ttl. A non-positive ttl stores without expiry;
	// the cache gateway never does that.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	// Keys lists keys matching a Redis glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// IncrWithExpire increments the counter at key and, in the same atomic
	// step, gives it ttl if it has no expiry yet. An existing expiry is kept.
	IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	ZIncrBy(ctx context.Context, key string, incr float64, member string) (float64, error)
	// ZRevRangeWithScores returns members by descending score between rank
	// start and stop inclusive. Negative indexes count from the end.
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)
	HSet(ctx context.Context, key, field string, value []byte) error
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)
	HDel(ctx context.Context, key string, fields ...string) error
	Ping(ctx context.Context) error
}
