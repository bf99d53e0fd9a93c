// internal/pkg/session/reset_cache.go
package session

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"adminauth-service/internal/domain/auth"
	xerrors "adminauth-service/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// ResetTokenCache is the Redis backend for reset tokens. Keys expire with the
// token TTL, so stale records clean themselves up.
type ResetTokenCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

type resetRecord struct {
	TokenHash string    `json:"token_hash"`
	CreatedAt time.Time `json:"created_at"`
}

func NewResetTokenCache(client redis.UniversalClient, ttl time.Duration) *ResetTokenCache {
	return &ResetTokenCache{client: client, ttl: ttl}
}

func (c *ResetTokenCache) key(userID int64) string {
	return fmt.Sprintf("password_reset:%d", userID)
}

// Upsert replaces any previous token for the user
func (c *ResetTokenCache) Upsert(ctx context.Context, token *auth.ResetToken) error {
	data, err := json.Marshal(resetRecord{TokenHash: token.TokenHash, CreatedAt: token.CreatedAt})
	if err != nil {
		return fmt.Errorf("failed to marshal reset token: %w", err)
	}
	if err := c.client.Set(ctx, c.key(token.UserID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	return nil
}

func (c *ResetTokenCache) Find(ctx context.Context, userID int64) (*auth.ResetToken, error) {
	data, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find reset token: %w", err)
	}

	var rec resetRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reset token: %w", err)
	}
	return &auth.ResetToken{UserID: userID, TokenHash: rec.TokenHash, CreatedAt: rec.CreatedAt}, nil
}

func (c *ResetTokenCache) Delete(ctx context.Context, userID int64) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete reset token: %w", err)
	}
	return nil
}

// Consume deletes the token under WATCH only if the digest matches and it was
// created at or after notBefore.
func (c *ResetTokenCache) Consume(ctx context.Context, userID int64, tokenHash string, notBefore time.Time) (bool, error) {
	key := c.key(userID)

	for i := 0; i < maxWatchRetries; i++ {
		consumed := false
		err := c.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return nil
			}
			if err != nil {
				return err
			}

			var rec resetRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}
			if subtle.ConstantTimeCompare([]byte(rec.TokenHash), []byte(tokenHash)) != 1 {
				return nil
			}
			if rec.CreatedAt.Before(notBefore) {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}
			consumed = true
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("failed to consume reset token: %w", err)
		}
		return consumed, nil
	}
	return false, nil
}
