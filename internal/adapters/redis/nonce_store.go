package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NonceStore marks viewer token nonces as superseded after a rotation so the
// replaced token stops verifying before its embedded expiry. Marks carry a
// TTL bounded by the old token's remaining lifetime; once that passes, the
// signature check rejects the token anyway and the mark can lapse.
type NonceStore struct {
	client redis.UniversalClient
	prefix string
}

// NewNonceStore creates a new Redis-based nonce store.
func NewNonceStore(client redis.UniversalClient) *NonceStore {
	return &NonceStore{client: client, prefix: "nonce:superseded:"}
}

// NewNonceStoreWithPrefix creates a nonce store with a custom key prefix.
func NewNonceStoreWithPrefix(client redis.UniversalClient, prefix string) *NonceStore {
	return &NonceStore{client: client, prefix: prefix}
}

// MarkSuperseded records that the nonce belongs to a rotated-away token.
func (s *NonceStore) MarkSuperseded(ctx context.Context, nonce string, ttl time.Duration) error {
	if nonce == "" {
		return errors.New("nonce cannot be empty")
	}
	if ttl <= 0 {
		// The old token is already past its embedded expiry.
		return nil
	}
	if err := s.client.Set(ctx, s.prefix+nonce, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// IsSuperseded reports whether the nonce was rotated away.
func (s *NonceStore) IsSuperseded(ctx context.Context, nonce string) (bool, error) {
	if nonce == "" {
		return false, nil
	}
	_, err := s.client.Get(ctx, s.prefix+nonce).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get: %w", err)
	}
	return true, nil
}
