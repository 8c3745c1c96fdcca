// Package redis implements kvstore.Store on a Redis server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/weather-cache-service/internal/config"
	"github.com/couchcryptid/weather-cache-service/internal/kvstore"
	goredis "github.com/redis/go-redis/v9"
)

const scanCount = 500

// Store is a kvstore.Store backed by go-redis.
type Store struct {
	client *goredis.Client
}

var _ kvstore.Store = (*Store)(nil)

// NewStore creates a client for the configured Redis server. It does not dial;
// the first command or Ping does.
func NewStore(cfg *config.Config) *Store {
	return NewStoreWithOptions(&goredis.Options{
		Addr:             cfg.RedisAddr,
		Password:         cfg.RedisPassword,
		DB:               cfg.RedisDB,
		DialTimeout:      cfg.RedisTimeout,
		ReadTimeout:      cfg.RedisTimeout,
		WriteTimeout:     cfg.RedisTimeout,
		DisableIndentity: true,
	})
}

// NewStoreWithOptions creates a Store from explicit client options.
func NewStoreWithOptions(opts *goredis.Options) *Store {
	return &Store{client: goredis.NewClient(opts)}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, kvstore.ErrNotFound
	}
	return v, mapErr(err)
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return mapErr(s.client.Set(ctx, key, value, ttl).Err())
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	return n, mapErr(err)
}

// Keys walks the keyspace with SCAN rather than KEYS so large keyspaces do not
// block the server.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	var (
		out    []string
		cursor uint64
	)
	seen := map[string]bool{}
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return nil, mapErr(err)
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}

// IncrWithExpire sends INCR and EXPIRE NX in one MULTI/EXEC so a counter can
// never be left behind without a ttl.
func (s *Store) IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		n, err := s.client.Incr(ctx, key).Result()
		return n, mapErr(err)
	}
	var incr *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, mapErr(err)
	}
	return incr.Val(), nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return mapErr(s.client.Del(ctx, key).Err())
	}
	return mapErr(s.client.Expire(ctx, key, ttl).Err())
}

func (s *Store) ZIncrBy(ctx context.Context, key string, incr float64, member string) (float64, error) {
	score, err := s.client.ZIncrBy(ctx, key, incr, member).Result()
	return score, mapErr(err)
}

func (s *Store) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]kvstore.ScoredMember, error) {
	zs, err := s.client.ZRevRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]kvstore.ScoredMember, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			member = fmt.Sprint(z.Member)
		}
		out = append(out, kvstore.ScoredMember{Member: member, Score: z.Score})
	}
	return out, nil
}

func (s *Store) HSet(ctx context.Context, key, field string, value []byte) error {
	return mapErr(s.client.HSet(ctx, key, field, value).Err())
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, mapErr(err)
	}
	out := make(map[string][]byte, len(fields))
	for f, v := range fields {
		out[f] = []byte(v)
	}
	return out, nil
}

func (s *Store) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return mapErr(s.client.HDel(ctx, key, fields...).Err())
}

func (s *Store) Ping(ctx context.Context) error {
	return mapErr(s.client.Ping(ctx).Err())
}

// mapErr translates Redis type errors into kvstore.ErrWrongType.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if strings.HasPrefix(err.Error(), "WRONGTYPE") {
		return fmt.Errorf("%w: %w", kvstore.ErrWrongType, err)
	}
	return err
}
