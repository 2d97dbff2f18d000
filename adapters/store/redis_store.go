package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/regrant/regrant-auth/core"
)

// RedisStore is a Redis implementation of the NonceStore. Expiry is left to
// Redis key TTLs; GETDEL makes consumption a single atomic step.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	opts   options
}

// NewRedisStore creates a new Redis nonce store
func NewRedisStore(client redis.Cmdable, ttl time.Duration, opts ...Option) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	return &RedisStore{
		client: client,
		prefix: "regrant:siwe:nonce:",
		ttl:    ttl,
		opts:   buildOptions(opts),
	}
}

// Issue creates a nonce for address
func (s *RedisStore) Issue(ctx context.Context, address string) (string, error) {
	nonce, err := generateNonce(s.opts.encoding)
	if err != nil {
		return "", err
	}

	key := s.prefix + core.NonceKey(address, nonce)
	if err := s.client.Set(ctx, key, "1", s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store nonce: %w", err)
	}

	return nonce, nil
}

// Consume removes the nonce and reports whether it was present
func (s *RedisStore) Consume(ctx context.Context, address, nonce string) (bool, error) {
	key := s.prefix + core.NonceKey(address, nonce)

	if err := s.client.GetDel(ctx, key).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to consume nonce: %w", err)
	}

	return true, nil
}
