// internal/pkg/session/rate_limiter.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles login and reset requests per key with a fixed window
// counter. It sits in front of the lockout state machine and is independent
// of it.
type RateLimiter struct {
	client      redis.UniversalClient
	maxLogin    int64
	loginWindow time.Duration
	maxReset    int64
	resetWindow time.Duration
}

func NewRateLimiter(client redis.UniversalClient, maxLogin int64, loginWindow time.Duration) *RateLimiter {
	if maxLogin <= 0 {
		maxLogin = 5
	}
	if loginWindow <= 0 {
		loginWindow = 15 * time.Minute
	}
	return &RateLimiter{
		client:      client,
		maxLogin:    maxLogin,
		loginWindow: loginWindow,
		maxReset:    3,
		resetWindow: time.Hour,
	}
}

// CheckLoginAttempt checks if login attempt is allowed
func (r *RateLimiter) CheckLoginAttempt(ctx context.Context, ip, email string) (bool, int64, error) {
	count, err := r.hit(ctx, loginKey(ip, email), r.loginWindow)
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment login attempt: %w", err)
	}

	remaining := r.maxLogin - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= r.maxLogin, remaining, nil
}

// GetRemainingAttempts returns remaining login attempts
func (r *RateLimiter) GetRemainingAttempts(ctx context.Context, ip, email string) (int64, error) {
	count, err := r.client.Get(ctx, loginKey(ip, email)).Int64()
	if errors.Is(err, redis.Nil) {
		return r.maxLogin, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get login attempts: %w", err)
	}

	remaining := r.maxLogin - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// ResetLoginAttempts resets the login attempt counter
func (r *RateLimiter) ResetLoginAttempts(ctx context.Context, ip, email string) error {
	return r.client.Del(ctx, loginKey(ip, email)).Err()
}

// CheckPasswordResetAttempt checks password reset rate limit
func (r *RateLimiter) CheckPasswordResetAttempt(ctx context.Context, email string) (bool, error) {
	key := fmt.Sprintf("ratelimit:password_reset:%s", strings.ToLower(email))

	count, err := r.hit(ctx, key, r.resetWindow)
	if err != nil {
		return false, fmt.Errorf("failed to increment password reset attempt: %w", err)
	}
	return count <= r.maxReset, nil
}

func (r *RateLimiter) hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	// Set expiration on first attempt
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

func loginKey(ip, email string) string {
	return fmt.Sprintf("ratelimit:login:%s:%s", ip, strings.ToLower(email))
}
