package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccount/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrVerificationRateLimited        = errors.New("verification rate limited")
	ErrVerificationLimiterUnavailable = errors.New("verification limiter unavailable")
)

type VerificationResendConfig struct {
	Prefix      string
	Window      time.Duration
	MaxAttempts int
}

// VerificationResendLimiter bounds how often one account may ask for a new
// verification token.
type VerificationResendLimiter struct {
	redis  redis.UniversalClient
	config VerificationResendConfig
}

func NewVerificationResendLimiter(redisClient redis.UniversalClient, cfg VerificationResendConfig) *VerificationResendLimiter {
	if redisClient == nil || cfg.MaxAttempts <= 0 {
		return nil
	}
	return &VerificationResendLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *VerificationResendLimiter) CheckResend(ctx context.Context, accountID string) error {
	if l == nil {
		return nil
	}
	key := rate.Key(normalizePrefix(l.config.Prefix), "verify", "resend", accountID)
	return translate(rate.Hit(ctx, l.redis, key, l.config.MaxAttempts, l.config.Window),
		ErrVerificationRateLimited, ErrVerificationLimiterUnavailable)
}
