package limiters

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goAccount/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrResetRateLimited      = errors.New("reset rate limited")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

type PasswordResetConfig struct {
	Prefix                   string
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	Window                   time.Duration
	MaxAttempts              int
}

// PasswordResetLimiter throttles reset requests per email and per client IP.
// Completion is not throttled here: a reset token is single-use and 256 bits.
type PasswordResetLimiter struct {
	redis  redis.UniversalClient
	config PasswordResetConfig
}

func NewPasswordResetLimiter(redisClient redis.UniversalClient, cfg PasswordResetConfig) *PasswordResetLimiter {
	if redisClient == nil || cfg.MaxAttempts <= 0 {
		return nil
	}
	return &PasswordResetLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *PasswordResetLimiter) CheckRequest(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableIdentifierThrottle && email != "" {
		if err := l.enforceFixedWindow(ctx, resetEmailKey(l.config.Prefix, email)); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceFixedWindow(ctx, resetIPKey(l.config.Prefix, ip)); err != nil {
			return err
		}
	}
	return nil
}

func (l *PasswordResetLimiter) enforceFixedWindow(ctx context.Context, key string) error {
	return translate(rate.Hit(ctx, l.redis, key, l.config.MaxAttempts, l.config.Window),
		ErrResetRateLimited, ErrResetRedisUnavailable)
}

func resetEmailKey(prefix, email string) string {
	return rate.Key(normalizePrefix(prefix), "reset", "email", strings.ToLower(email))
}

func resetIPKey(prefix, ip string) string {
	return rate.Key(normalizePrefix(prefix), "reset", "ip", ip)
}
