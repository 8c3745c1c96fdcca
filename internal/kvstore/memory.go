package kvstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type kind int

const (
	kindString kind = iota
	kindZSet
	kindHash
)

type item struct {
	kind      kind
	str       []byte
	zset      map[string]float64
	hash      map[string][]byte
	expiresAt time.Time // zero means no expiry
}

// Memory is an in-process Store. Expiry is evaluated lazily against the
// injected clock, so a fake clock makes TTL behavior deterministic.
type Memory struct {
	mu    sync.Mutex
	clock clockwork.Clock
	items map[string]*item
}

// NewMemory creates an empty store. A nil clock uses real time.
func NewMemory(clock clockwork.Clock) *Memory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{clock: clock, items: make(map[string]*item)}
}

// live returns the unexpired item for key, dropping it if it has expired.
// Callers hold m.mu.
func (m *Memory) live(key string) *item {
	it, ok := m.items[key]
	if !ok {
		return nil
	}
	if !it.expiresAt.IsZero() && !m.clock.Now().Before(it.expiresAt) {
		delete(m.items, key)
		return nil
	}
	return it
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	it := m.live(key)
	if it == nil {
		return nil, ErrNotFound
	}
	if it.kind != kindString {
		return nil, ErrWrongType
	}
	return append([]byte(nil), it.str...), nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	it := &item{kind: kindString, str: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expiresAt = m.clock.Now().Add(ttl)
	}
	m.items[key] = it
	return nil
}

func (m *Memory) Del(ctx context.Context, keys ...string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, k := range keys {
		if m.live(k) != nil {
			delete(m.items, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Keys(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for k := range m.items {
		if m.live(k) == nil {
			continue
		}
		if Match(pattern, k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	it := m.live(key)
	if it == nil {
		it = &item{kind: kindString, str: []byte("0")}
		m.items[key] = it
	}
	if it.kind != kindString {
		return 0, ErrWrongType
	}
	n, err := strconv.ParseInt(string(it.str), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("kvstore: value at %q is not an integer", key)
	}
	n++
	it.str = []byte(strconv.FormatInt(n, 10))
	if ttl > 0 && it.expiresAt.IsZero() {
		it.expiresAt = m.clock.Now().Add(ttl)
	}
	return n, nil
}

func (m *Memory) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	it := m.live(key)
	if it == nil {
		return nil
	}
	if ttl <= 0 {
		delete(m.items, key)
		return nil
	}
	it.expiresAt = m.clock.Now().Add(ttl)
	return nil
}

func (m *Memory) ZIncrBy(ctx context.Context, key string, incr float64, member string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	it := m.live(key)
	if it == nil {
		it = &item{kind: kindZSet, zset: make(map[string]float64)}
		m.items[key] = it
	}
	if it.kind != kindZSet {
		return 0, ErrWrongType
	}
	it.zset[member] += incr
	return it.zset[member], nil
}

func (m *Memory) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	it := m.live(key)
	if it == nil {
		return nil, nil
	}
	if it.kind != kindZSet {
		return nil, ErrWrongType
	}

	members := make([]ScoredMember, 0, len(it.zset))
	for member, score := range it.zset {
		members = append(members, ScoredMember{Member: member, Score: score})
	}
	// Redis orders equal scores by member, reversed for ZREVRANGE.
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].Member > members[j].Member
	})

	n := int64(len(members))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil, nil
	}
	return members[start : stop+1], nil
}

func (m *Memory) HSet(ctx context.Context, key, field string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	it := m.live(key)
	if it == nil {
		it = &item{kind: kindHash, hash: make(map[string][]byte)}
		m.items[key] = it
	}
	if it.kind != kindHash {
		return ErrWrongType
	}
	it.hash[field] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]byte)
	it := m.live(key)
	if it == nil {
		return out, nil
	}
	if it.kind != kindHash {
		return nil, ErrWrongType
	}
	for f, v := range it.hash {
		out[f] = append([]byte(nil), v...)
	}
	return out, nil
}

func (m *Memory) HDel(ctx context.Context, key string, fields ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	it := m.live(key)
	if it == nil {
		return nil
	}
	if it.kind != kindHash {
		return ErrWrongType
	}
	for _, f := range fields {
		delete(it.hash, f)
	}
	if len(it.hash) == 0 {
		delete(m.items, key)
	}
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

// TTL reports the remaining lifetime of key, or false if it is absent or has no expiry.
func (m *Memory) TTL(key string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it := m.live(key)
	if it == nil || it.expiresAt.IsZero() {
		return 0, false
	}
	return it.expiresAt.Sub(m.clock.Now()), true
}

// Len reports the number of live keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k := range m.items {
		if m.live(k) != nil {
			n++
		}
	}
	return n
}

var _ Store = (*Memory)(nil)
