package primary

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL sentinels as reported by Redis.
const (
	// NoExpiry is returned by TTL for a key that exists without an expiry.
	NoExpiry time.Duration = -1

	// KeyMissing is returned by TTL for a key that does not exist.
	KeyMissing time.Duration = -2
)

func (s *Store) guard() error {
	switch s.State() {
	case StateReady:
		return nil
	case StateClosed:
		return ErrClosed
	default:
		return ErrNotReady
	}
}

// Get returns the value stored at key. found is false when the key does not exist.
func (s *Store) Get(ctx context.Context, key string) (value []byte, found bool, err error) {
	if err := s.guard(); err != nil {
		return nil, false, err
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap("get", err)
	}
	return data, true, nil
}

// GetWithTTL returns the value at key together with its remaining TTL in a
// single round trip. ttl is NoExpiry for keys without an expiry.
func (s *Store) GetWithTTL(ctx context.Context, key string) (value []byte, ttl time.Duration, found bool, err error) {
	if err := s.guard(); err != nil {
		return nil, 0, false, err
	}

	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, wrap("get", err)
	}

	data, err := getCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, wrap("get", err)
	}
	return data, normalizeTTL(ttlCmd.Val()), true, nil
}

// SetWithExpiry stores value at key with the given TTL.
func (s *Store) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.guard(); err != nil {
		return err
	}
	return wrap("set", s.client.Set(ctx, key, value, ttl).Err())
}

// SetNX stores value at key with ttl only if the key does not exist.
func (s *Store) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	if err := s.guard(); err != nil {
		return false, err
	}
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, wrap("setnx", err)
	}
	return ok, nil
}

// Delete removes keys and returns how many existed.
func (s *Store) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.guard(); err != nil {
		return 0, err
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, wrap("del", err)
	}
	return n, nil
}

// Increment atomically adds one to the integer at key.
func (s *Store) Increment(ctx context.Context, key string) (int64, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, wrap("incr", err)
	}
	return n, nil
}

// IncrementWithTTL atomically increments key and reads its TTL in one
// MULTI/EXEC transaction.
func (s *Store) IncrementWithTTL(ctx context.Context, key string) (int64, time.Duration, error) {
	if err := s.guard(); err != nil {
		return 0, 0, err
	}

	pipe := s.client.TxPipeline()
	incrCmd := pipe.Incr(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, wrap("incr", err)
	}
	return incrCmd.Val(), normalizeTTL(ttlCmd.Val()), nil
}

// TTL returns the remaining time to live of key, or NoExpiry / KeyMissing.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, wrap("ttl", err)
	}
	return normalizeTTL(ttl), nil
}

// Expire sets the TTL of key.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.guard(); err != nil {
		return err
	}
	return wrap("expire", s.client.Expire(ctx, key, ttl).Err())
}

// BumpVersion atomically advances the integer at key, treating a missing key
// as 1, and returns the new value (so the first bump yields 2).
func (s *Store) BumpVersion(ctx context.Context, key string) (int64, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}

	pipe := s.client.TxPipeline()
	pipe.SetNX(ctx, key, 1, 0)
	incrCmd := pipe.Incr(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, wrap("incr", err)
	}
	return incrCmd.Val(), nil
}

// Ping measures one round trip to the server. It bypasses the readiness
// guard so health checks can ping a store that is still connecting.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	if s.State() == StateClosed {
		return 0, ErrClosed
	}
	start := time.Now()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return 0, wrap("ping", err)
	}
	return time.Since(start), nil
}

// Scan returns one page of keys matching pattern starting at cursor. A
// returned cursor of 0 means the iteration is complete.
func (s *Store) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	if err := s.guard(); err != nil {
		return nil, 0, err
	}
	keys, next, err := s.client.Scan(ctx, cursor, pattern, count).Result()
	if err != nil {
		return nil, 0, wrap("scan", err)
	}
	return keys, next, nil
}

// normalizeTTL maps the client's TTL reply onto NoExpiry/KeyMissing. Clients
// report the -1/-2 sentinels either as raw nanoseconds or as seconds.
func normalizeTTL(ttl time.Duration) time.Duration {
	switch ttl {
	case -1, -1 * time.Second:
		return NoExpiry
	case -2, -2 * time.Second:
		return KeyMissing
	}
	return ttl
}

// ParseInt is a small helper for integer values read with Get.
func ParseInt(data []byte) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}
