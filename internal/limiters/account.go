package limiters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goAccount/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrRegistrationRateLimited      = errors.New("registration rate limited")
	ErrRegistrationRedisUnavailable = errors.New("registration redis unavailable")
)

// RegistrationConfig bounds sign-ups per client IP and per requested email.
type RegistrationConfig struct {
	Prefix              string
	EnableIPThrottle    bool
	EnableEmailThrottle bool
	MaxAttempts         int
	Window              time.Duration
}

type RegistrationLimiter struct {
	redis  redis.UniversalClient
	config RegistrationConfig
}

func NewRegistrationLimiter(redisClient redis.UniversalClient, cfg RegistrationConfig) *RegistrationLimiter {
	if redisClient == nil || cfg.MaxAttempts <= 0 {
		return nil
	}
	return &RegistrationLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Enforce counts one registration attempt.
func (l *RegistrationLimiter) Enforce(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableEmailThrottle && email != "" {
		if err := l.enforceKey(ctx, registrationEmailKey(l.config.Prefix, email)); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceKey(ctx, registrationIPKey(l.config.Prefix, ip)); err != nil {
			return err
		}
	}
	return nil
}

func (l *RegistrationLimiter) enforceKey(ctx context.Context, key string) error {
	return translate(rate.Hit(ctx, l.redis, key, l.config.MaxAttempts, l.config.Window),
		ErrRegistrationRateLimited, ErrRegistrationRedisUnavailable)
}

func registrationEmailKey(prefix, email string) string {
	return rate.Key(normalizePrefix(prefix), "reg", "email", strings.ToLower(email))
}

func registrationIPKey(prefix, ip string) string {
	return rate.Key(normalizePrefix(prefix), "reg", "ip", ip)
}

func normalizePrefix(prefix string) string {
	if prefix == "" {
		return "ga"
	}
	return prefix
}

// translate maps rate errors into the limiter's own sentinels.
func translate(err, limited, unavailable error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return limited
	case errors.Is(err, rate.ErrRedisUnavailable):
		return fmt.Errorf("%w: %v", unavailable, err)
	default:
		return err
	}
}
