package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters. A zero budget disables that limit.
type Config struct {
	EnableIPThrottle bool
	MaxAttempts      int
	AttemptWindow    time.Duration
	MaxSends         int
	SendWindow       time.Duration
}

// Limiter enforces per-email and per-IP budgets using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckAttempts returns ErrRateLimited when email or ip has used its failure budget.
func (l *Limiter) CheckAttempts(ctx context.Context, email, ip string) error {
	if l.config.MaxAttempts <= 0 {
		return nil
	}
	if err := l.checkCounter(ctx, attemptKey(email), l.config.MaxAttempts); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, attemptIPKey(ip), l.config.MaxAttempts); err != nil {
			return err
		}
	}
	return nil
}

// IncrementAttempts records a failed credential attempt.
func (l *Limiter) IncrementAttempts(ctx context.Context, email, ip string) error {
	if l.config.MaxAttempts <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, attemptKey(email), l.config.AttemptWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.incrementWithTTL(ctx, attemptIPKey(ip), l.config.AttemptWindow)
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// ResetAttempts clears the failure counters after a successful authentication.
func (l *Limiter) ResetAttempts(ctx context.Context, email, ip string) error {
	keys := []string{attemptKey(email)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, attemptIPKey(ip))
	}
	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CheckIPAttempts applies only the per-IP failure budget. It is a no-op unless
// IP throttling is enabled and ip is known.
func (l *Limiter) CheckIPAttempts(ctx context.Context, ip string) error {
	if l.config.MaxAttempts <= 0 || !l.config.EnableIPThrottle || ip == "" {
		return nil
	}
	return l.checkCounter(ctx, attemptIPKey(ip), l.config.MaxAttempts)
}

// IncrementIPAttempts records a failure that has no identity to charge, such as a
// login against an unregistered email.
func (l *Limiter) IncrementIPAttempts(ctx context.Context, ip string) error {
	if l.config.MaxAttempts <= 0 || !l.config.EnableIPThrottle || ip == "" {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, attemptIPKey(ip), l.config.AttemptWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// AllowSend consumes one unit of the per-email send budget.
func (l *Limiter) AllowSend(ctx context.Context, email string) error {
	if l.config.MaxSends <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, sendKey(email), l.config.SendWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxSends) {
		return ErrRateLimited
	}
	return nil
}

// Attempts returns the current failure count for email.
// Missing keys return zero and do not reveal account existence.
func (l *Limiter) Attempts(ctx context.Context, email string) (int, error) {
	count, err := l.redis.Get(ctx, attemptKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}

func attemptKey(email string) string { return "la:" + email }

func attemptIPKey(ip string) string { return "lai:" + ip }

func sendKey(email string) string { return "ls:" + email }
