// AngelaMos | 2026
// revocation_redis.go

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "revoked:"

type redisRevocationStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisRevocationStore keeps one key per revoked jti that expires
// together with the access token, so nothing needs purging.
func NewRedisRevocationStore(client *redis.Client) RevocationStore {
	return &redisRevocationStore{
		client: client,
		now:    time.Now,
	}
}

func (s *redisRevocationStore) Revoke(
	ctx context.Context,
	token RevokedToken,
) error {
	ttl := token.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	err := s.client.SetNX(ctx, revokedKeyPrefix+token.JTI, token.UserID, ttl).Err()
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}

	return nil
}

func (s *redisRevocationStore) IsRevoked(
	ctx context.Context,
	jti string,
) (bool, error) {
	exists, err := s.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}

	return exists > 0, nil
}

func (s *redisRevocationStore) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}
