package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds login throttle parameters.
type Config struct {
	Prefix           string
	EnableIPThrottle bool
	MaxLoginAttempts int
	LoginCooldown    time.Duration
}

// Limiter counts failed logins per identifier and, optionally, per client IP.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Limiter. A nil client yields a nil Limiter whose methods are no-ops.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if redisClient == nil {
		return nil
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "ga"
	}
	return &Limiter{redis: redisClient, config: cfg}
}

// CheckLogin fails with ErrRateLimited when the identifier or IP already used its budget.
func (l *Limiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	if l == nil || l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	for _, key := range l.loginKeys(identifier, ip) {
		count, err := Count(ctx, l.redis, key)
		if err != nil {
			return err
		}
		if count >= int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// RecordLoginFailure counts one failed attempt. It returns ErrRateLimited on
// the attempt that exhausts the budget.
func (l *Limiter) RecordLoginFailure(ctx context.Context, identifier, ip string) error {
	if l == nil || l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	var limited bool
	for _, key := range l.loginKeys(identifier, ip) {
		err := Hit(ctx, l.redis, key, l.config.MaxLoginAttempts, l.config.LoginCooldown)
		if errors.Is(err, ErrRateLimited) {
			limited = true
			continue
		}
		if err != nil {
			return err
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin clears the identifier counter after a successful login. The IP
// counter is kept so one host cannot reset its budget with a known account.
func (l *Limiter) ResetLogin(ctx context.Context, identifier string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, l.loginIdentifierKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// LoginAttempts returns the failure count for identifier in the current window.
func (l *Limiter) LoginAttempts(ctx context.Context, identifier string) (int, error) {
	if l == nil {
		return 0, nil
	}
	count, err := Count(ctx, l.redis, l.loginIdentifierKey(identifier))
	return int(count), err
}

func (l *Limiter) loginKeys(identifier, ip string) []string {
	keys := []string{l.loginIdentifierKey(identifier)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, Key(l.config.Prefix, "login", "ip", ip))
	}
	return keys
}

func (l *Limiter) loginIdentifierKey(identifier string) string {
	return Key(l.config.Prefix, "login", "id", strings.ToLower(identifier))
}

// Key joins parts with ':' into a Redis key.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Hit increments key inside a fixed window and fails with ErrRateLimited once
// the count exceeds limit.
func Hit(ctx context.Context, client redis.UniversalClient, key string, limit int, window time.Duration) error {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: TTL is set only on the first hit of the window.
	if count == 1 {
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count > int64(limit) {
		return ErrRateLimited
	}
	return nil
}

// Count reads the current counter; a missing key counts as zero.
func Count(ctx context.Context, client redis.UniversalClient, key string) (int64, error) {
	count, err := client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return count, nil
}
