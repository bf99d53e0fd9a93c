// internal/pkg/session/refresh_store.go
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxWatchRetries = 4

// RefreshStore tracks the single active refresh token id per user. A token
// id that is no longer the active one is rejected on rotation.
type RefreshStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRefreshStore(client redis.UniversalClient) *RefreshStore {
	return &RefreshStore{client: client, prefix: "refresh"}
}

func (s *RefreshStore) key(userID int64) string {
	return fmt.Sprintf("%s:%d", s.prefix, userID)
}

// Activate makes jti the user's active refresh token, replacing any other.
func (s *RefreshStore) Activate(ctx context.Context, userID int64, jti string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(userID), jti, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// Rotate replaces presented with next iff presented is still active. It
// returns false when presented is unknown, expired or already rotated.
func (s *RefreshStore) Rotate(ctx context.Context, userID int64, presented, next string, ttl time.Duration) (bool, error) {
	key := s.key(userID)

	for i := 0; i < maxWatchRetries; i++ {
		rotated := false
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				return nil
			}
			if err != nil {
				return err
			}
			if subtle.ConstantTimeCompare([]byte(current), []byte(presented)) != 1 {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, next, ttl)
				return nil
			})
			if err != nil {
				return err
			}
			rotated = true
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("failed to rotate refresh token: %w", err)
		}
		return rotated, nil
	}

	// Lost every race: someone else rotated in between.
	return false, nil
}

// Revoke drops the user's active refresh token.
func (s *RefreshStore) Revoke(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}
