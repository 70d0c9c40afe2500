package goAccount

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goAccount/account"
	"github.com/MrEthical07/goAccount/internal/dispatch"
	"github.com/MrEthical07/goAccount/internal/limiters"
	"github.com/MrEthical07/goAccount/internal/logging"
	"github.com/MrEthical07/goAccount/internal/rate"
	"github.com/MrEthical07/goAccount/jwt"
	"github.com/MrEthical07/goAccount/notify"
	"github.com/MrEthical07/goAccount/password"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. Configure it once, call Build, then discard it.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store     account.Store
	notifier  notify.Notifier
	auditSink AuditSink
	logger    *slog.Logger
	clock     func() time.Time
	hasher    *password.Hasher

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the account store. It is required.
func (b *Builder) WithStore(store account.Store) *Builder {
	b.store = store
	return b
}

// WithRedis enables the login, registration, reset and resend throttles.
// Without a client every throttle is disabled.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithNotifier(n notify.Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger used for internal failures. Nil discards.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for token expiry, recovery windows and
// timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithHasher replaces the hasher derived from Config.Password.
func (b *Builder) WithHasher(h *password.Hasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("account store required")
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	logger := logging.Discard()
	if b.logger != nil {
		logger = logging.NewSlogLogger(b.logger)
	}

	engine := &Engine{
		config: cloneConfig(cfg),
		store:  b.store,
		clock:  clock,
		logger: logger,
		links:  notify.Links{FrontendURL: cfg.Notify.FrontendURL},
	}

	// -------- PASSWORD HASHER --------
	hasher := b.hasher
	if hasher == nil {
		h, err := buildHasher(cfg.Password)
		if err != nil {
			return nil, err
		}
		hasher = h
	}
	engine.hasher = hasher
	dummy, err := hasher.Hash("goaccount-dummy-password")
	if err != nil {
		return nil, err
	}
	engine.dummyHash = dummy

	// -------- ACCESS TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		Secret:    []byte(cfg.Token.Secret),
		Algorithm: jwt.Algorithm(cfg.Token.Algorithm),
		AccessTTL: cfg.Token.AccessTTL,
		Issuer:    cfg.Token.Issuer,
		Audience:  cfg.Token.Audience,
		Leeway:    cfg.Token.Leeway,
		Now:       clock,
	})
	if err != nil {
		return nil, err
	}
	engine.tokens = jm

	// -------- THROTTLES --------
	engine.rateLimiter = rate.New(b.redis, rate.Config{
		Prefix:           cfg.RateLimit.RedisPrefix,
		EnableIPThrottle: cfg.RateLimit.EnableIPThrottle,
		MaxLoginAttempts: cfg.RateLimit.MaxLoginAttempts,
		LoginCooldown:    cfg.RateLimit.LoginCooldown,
	})
	engine.registrationLimiter = limiters.NewRegistrationLimiter(b.redis, limiters.RegistrationConfig{
		Prefix:              cfg.RateLimit.RedisPrefix,
		EnableIPThrottle:    cfg.RateLimit.RegistrationIPThrottle,
		EnableEmailThrottle: cfg.RateLimit.RegistrationEmailThrottle,
		MaxAttempts:         cfg.RateLimit.RegistrationMaxAttempts,
		Window:              cfg.RateLimit.RegistrationWindow,
	})
	engine.resetLimiter = limiters.NewPasswordResetLimiter(b.redis, limiters.PasswordResetConfig{
		Prefix:                   cfg.RateLimit.RedisPrefix,
		EnableIdentifierThrottle: cfg.PasswordReset.EnableIdentifierThrottle,
		EnableIPThrottle:         cfg.PasswordReset.EnableIPThrottle,
		Window:                   cfg.PasswordReset.Window,
		MaxAttempts:              cfg.PasswordReset.MaxAttempts,
	})
	engine.resendLimiter = limiters.NewVerificationResendLimiter(b.redis, limiters.VerificationResendConfig{
		Prefix:      cfg.RateLimit.RedisPrefix,
		Window:      cfg.Verification.ResendWindow,
		MaxAttempts: cfg.Verification.ResendMaxAttempts,
	})

	// -------- DISPATCHERS --------
	engine.notifier = b.notifier
	if engine.notifier == nil {
		engine.notifier = notify.Nop{}
	}
	if cfg.Notify.Async {
		engine.notifications = dispatch.New[notify.Message](dispatch.Config{
			Enabled:    true,
			BufferSize: cfg.Notify.BufferSize,
			DropIfFull: cfg.Notify.DropIfFull,
		}, engine.deliver)
	}

	if cfg.Audit.Enabled {
		sink := b.auditSink
		if sink == nil {
			sink = NoOpSink{}
		}
		engine.audit = dispatch.New[AuditEvent](dispatch.Config{
			Enabled:    true,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, func(ctx context.Context, event AuditEvent) {
			sink.Emit(ctx, event)
		})
	}

	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}

// buildHasher hashes with the configured algorithm and keeps the other one
// registered so stored digests of either kind still verify.
func buildHasher(cfg PasswordConfig) (*password.Hasher, error) {
	argon, err := password.NewArgon2(password.Argon2Config{
		Memory:           cfg.Memory,
		Time:             cfg.Time,
		Parallelism:      cfg.Parallelism,
		SaltLength:       cfg.SaltLength,
		KeyLength:        cfg.KeyLength,
		MaxPasswordBytes: cfg.MaxBytes,
	})
	if err != nil {
		return nil, err
	}
	bc, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	if cfg.Algorithm == password.AlgorithmBcrypt {
		return password.NewHasher(bc, argon)
	}
	return password.NewHasher(argon, bc)
}
