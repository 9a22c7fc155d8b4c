package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore wraps Redis to remember logged-out tokens until they would
// have expired anyway.
type RevocationStore struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRevocationStore(rdb *redis.Client) *RevocationStore {
	return &RevocationStore{rdb: rdb, now: time.Now}
}

// Revoke marks the token id as unusable until expiresAt.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, "revoked:"+tokenID, 1, ttl).Err()
}

// IsRevoked reports whether the token id was logged out.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, "revoked:"+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
