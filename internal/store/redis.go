package store

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of a go-redis client.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore parses a redis:// URL, opens a client and verifies the
// connection with a ping.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, wrapErr("ping", err)
	}

	return &RedisStore{client: client}, nil
}

// wrapErr folds a go-redis error into the store error taxonomy so callers
// can branch on sentinels instead of client internals.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %v", op, ErrConnection, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrProtocol, err)
}

func (s *RedisStore) Scan(ctx context.Context, cursor uint64, match string, count int64) (ScanPage, error) {
	keys, next, err := s.client.Scan(ctx, cursor, match, count).Result()
	if err != nil {
		return ScanPage{}, wrapErr("scan", err)
	}
	return ScanPage{Cursor: next, Keys: keys}, nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, wrapErr("exists", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Type(ctx context.Context, key string) (KeyType, error) {
	raw, err := s.client.Type(ctx, key).Result()
	if err != nil {
		return TypeUnknown, wrapErr("type", err)
	}
	return ParseKeyType(raw), nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return "", wrapErr("get", err)
	}
	return value, nil
}

func (s *RedisStore) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	items, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, wrapErr("lrange", err)
	}
	return items, nil
}

func (s *RedisStore) ListLen(ctx context.Context, key string) (int64, error) {
	n, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, wrapErr("llen", err)
	}
	return n, nil
}

func (s *RedisStore) SetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, wrapErr("smembers", err)
	}
	return members, nil
}

func (s *RedisStore) SetLen(ctx context.Context, key string) (int64, error) {
	n, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, wrapErr("scard", err)
	}
	return n, nil
}

func (s *RedisStore) SortedSetRange(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error) {
	raw, err := s.client.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, wrapErr("zrange", err)
	}

	members := make([]ScoredMember, 0, len(raw))
	for _, z := range raw {
		member, ok := z.Member.(string)
		if !ok {
			return nil, fmt.Errorf("zrange: %w: non-string member %v", ErrProtocol, z.Member)
		}
		members = append(members, ScoredMember{Member: member, Score: z.Score})
	}
	return members, nil
}

func (s *RedisStore) SortedSetLen(ctx context.Context, key string) (int64, error) {
	n, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, wrapErr("zcard", err)
	}
	return n, nil
}

func (s *RedisStore) HashLen(ctx context.Context, key string) (int64, error) {
	n, err := s.client.HLen(ctx, key).Result()
	if err != nil {
		return 0, wrapErr("hlen", err)
	}
	return n, nil
}

func (s *RedisStore) HashScan(ctx context.Context, key string, cursor uint64, match string, count int64) (FieldPage, error) {
	pairs, next, err := s.client.HScan(ctx, key, cursor, match, count).Result()
	if err != nil {
		return FieldPage{}, wrapErr("hscan", err)
	}
	if len(pairs)%2 != 0 {
		return FieldPage{}, fmt.Errorf("hscan: %w: odd reply length %d", ErrProtocol, len(pairs))
	}

	fields := make([]Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		fields = append(fields, Field{Name: pairs[i], Value: pairs[i+1]})
	}
	return FieldPage{Cursor: next, Fields: fields}, nil
}

func (s *RedisStore) HashSet(ctx context.Context, key, field, value string) (int64, error) {
	created, err := s.client.HSet(ctx, key, field, value).Result()
	if err != nil {
		return 0, wrapErr("hset", err)
	}
	return created, nil
}

func (s *RedisStore) HashDelete(ctx context.Context, key string, fields ...string) (int64, error) {
	removed, err := s.client.HDel(ctx, key, fields...).Result()
	if err != nil {
		return 0, wrapErr("hdel", err)
	}
	return removed, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return wrapErr("del", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return wrapErr("ping", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
