// Package kvstoretest provides key-value store doubles for tests.
package kvstoretest

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/weather-cache-service/internal/kvstore"
)

// ErrConnRefused is the error every Unavailable call returns.
var ErrConnRefused = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

// Unavailable simulates an unreachable store. It counts calls so tests can
// assert that hot paths still attempted the store.
type Unavailable struct {
	calls atomic.Int64
}

// Calls reports how many operations were attempted.
func (u *Unavailable) Calls() int64 { return u.calls.Load() }

func (u *Unavailable) fail() error {
	u.calls.Add(1)
	return ErrConnRefused
}

func (u *Unavailable) Get(context.Context, string) ([]byte, error) { return nil, u.fail() }
func (u *Unavailable) Set(context.Context, string, []byte, time.Duration) error {
	return u.fail()
}
func (u *Unavailable) Del(context.Context, ...string) (int64, error)  { return 0, u.fail() }
func (u *Unavailable) Keys(context.Context, string) ([]string, error) { return nil, u.fail() }
func (u *Unavailable) IncrWithExpire(context.Context, string, time.Duration) (int64, error) {
	return 0, u.fail()
}
func (u *Unavailable) Expire(context.Context, string, time.Duration) error { return u.fail() }
func (u *Unavailable) ZIncrBy(context.Context, string, float64, string) (float64, error) {
	return 0, u.fail()
}
func (u *Unavailable) ZRevRangeWithScores(context.Context, string, int64, int64) ([]kvstore.ScoredMember, error) {
	return nil, u.fail()
}
func (u *Unavailable) HSet(context.Context, string, string, []byte) error { return u.fail() }
func (u *Unavailable) HGetAll(context.Context, string) (map[string][]byte, error) {
	return nil, u.fail()
}
func (u *Unavailable) HDel(context.Context, string, ...string) error { return u.fail() }
func (u *Unavailable) Ping(context.Context) error                    { return u.fail() }

// Flaky delegates to an inner store while Down is false and fails every call while it is true.
type Flaky struct {
	kvstore.Store
	down atomic.Bool
}

// NewFlaky wraps inner.
func NewFlaky(inner kvstore.Store) *Flaky { return &Flaky{Store: inner} }

// SetDown toggles simulated unavailability.
func (f *Flaky) SetDown(down bool) { f.down.Store(down) }

func (f *Flaky) Get(ctx context.Context, key string) ([]byte, error) {
	if f.down.Load() {
		return nil, ErrConnRefused
	}
	return f.Store.Get(ctx, key)
}

func (f *Flaky) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.down.Load() {
		return ErrConnRefused
	}
	return f.Store.Set(ctx, key, value, ttl)
}

func (f *Flaky) Del(ctx context.Context, keys ...string) (int64, error) {
	if f.down.Load() {
		return 0, ErrConnRefused
	}
	return f.Store.Del(ctx, keys...)
}

func (f *Flaky) Keys(ctx context.Context, pattern string) ([]string, error) {
	if f.down.Load() {
		return nil, ErrConnRefused
	}
	return f.Store.Keys(ctx, pattern)
}

func (f *Flaky) IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if f.down.Load() {
		return 0, ErrConnRefused
	}
	return f.Store.IncrWithExpire(ctx, key, ttl)
}

func (f *Flaky) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if f.down.Load() {
		return ErrConnRefused
	}
	return f.Store.Expire(ctx, key, ttl)
}

func (f *Flaky) ZIncrBy(ctx context.Context, key string, incr float64, member string) (float64, error) {
	if f.down.Load() {
		return 0, ErrConnRefused
	}
	return f.Store.ZIncrBy(ctx, key, incr, member)
}

func (f *Flaky) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]kvstore.ScoredMember, error) {
	if f.down.Load() {
		return nil, ErrConnRefused
	}
	return f.Store.ZRevRangeWithScores(ctx, key, start, stop)
}

func (f *Flaky) HSet(ctx context.Context, key, field string, value []byte) error {
	if f.down.Load() {
		return ErrConnRefused
	}
	return f.Store.HSet(ctx, key, field, value)
}

func (f *Flaky) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	if f.down.Load() {
		return nil, ErrConnRefused
	}
	return f.Store.HGetAll(ctx, key)
}

func (f *Flaky) HDel(ctx context.Context, key string, fields ...string) error {
	if f.down.Load() {
		return ErrConnRefused
	}
	return f.Store.HDel(ctx, key, fields...)
}

func (f *Flaky) Ping(ctx context.Context) error {
	if f.down.Load() {
		return ErrConnRefused
	}
	return f.Store.Ping(ctx)
}

var (
	_ kvstore.Store = (*Unavailable)(nil)
	_ kvstore.Store = (*Flaky)(nil)
)
