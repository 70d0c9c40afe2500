package goAccount

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goAccount/jwt"
	"github.com/MrEthical07/goAccount/password"
)

// Config holds every tunable of the engine. It is copied into the Engine at
// Build and never read again, so later changes to the caller's value have no
// effect.
type Config struct {
	Token          TokenConfig          `yaml:"token" envPrefix:"TOKEN_"`
	Password       PasswordConfig       `yaml:"password" envPrefix:"PASSWORD_"`
	Verification   VerificationConfig   `yaml:"verification" envPrefix:"VERIFICATION_"`
	PasswordReset  PasswordResetConfig  `yaml:"password_reset" envPrefix:"PASSWORD_RESET_"`
	PasswordChange PasswordChangeConfig `yaml:"password_change" envPrefix:"PASSWORD_CHANGE_"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	Notify         NotifyConfig         `yaml:"notify" envPrefix:"NOTIFY_"`
	Audit          AuditConfig          `yaml:"audit" envPrefix:"AUDIT_"`
	Metrics        MetricsConfig        `yaml:"metrics" envPrefix:"METRICS_"`
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures signed access tokens.
type TokenConfig struct {
	// Secret signs access tokens. It must be at least 32 bytes.
	Secret    string        `yaml:"secret" env:"SECRET"`
	Algorithm string        `yaml:"algorithm" env:"ALGORITHM"`
	AccessTTL time.Duration `yaml:"access_ttl" env:"ACCESS_TTL"`
	Issuer    string        `yaml:"issuer" env:"ISSUER"`
	Audience  string        `yaml:"audience" env:"AUDIENCE"`
	Leeway    time.Duration `yaml:"leeway" env:"LEEWAY"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the preferred hash algorithm and the rules for new passwords.
type PasswordConfig struct {
	// Algorithm is "argon2id" (default) or "bcrypt". The other one is still
	// accepted when verifying stored digests.
	Algorithm      string `yaml:"algorithm" env:"ALGORITHM"`
	MinLength      int    `yaml:"min_length" env:"MIN_LENGTH"`
	MaxBytes       int    `yaml:"max_bytes" env:"MAX_BYTES"`
	UpgradeOnLogin bool   `yaml:"upgrade_on_login" env:"UPGRADE_ON_LOGIN"`

	Memory      uint32 `yaml:"memory_kb" env:"ARGON2_MEMORY_KB"`
	Time        uint32 `yaml:"time" env:"ARGON2_TIME"`
	Parallelism uint8  `yaml:"parallelism" env:"ARGON2_PARALLELISM"`
	SaltLength  uint32 `yaml:"salt_length" env:"ARGON2_SALT_LENGTH"`
	KeyLength   uint32 `yaml:"key_length" env:"ARGON2_KEY_LENGTH"`

	BcryptCost int `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
}

/*
====================================
VERIFICATION CONFIG
====================================
*/

// VerificationConfig throttles ResendVerification per account.
type VerificationConfig struct {
	ResendMaxAttempts int           `yaml:"resend_max_attempts" env:"RESEND_MAX_ATTEMPTS"`
	ResendWindow      time.Duration `yaml:"resend_window" env:"RESEND_WINDOW"`
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig sets the recovery window and request throttling.
type PasswordResetConfig struct {
	ResetTTL                 time.Duration `yaml:"reset_ttl" env:"TTL"`
	MaxAttempts              int           `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	Window                   time.Duration `yaml:"window" env:"WINDOW"`
	EnableIPThrottle         bool          `yaml:"enable_ip_throttle" env:"ENABLE_IP_THROTTLE"`
	EnableIdentifierThrottle bool          `yaml:"enable_identifier_throttle" env:"ENABLE_IDENTIFIER_THROTTLE"`
}

// PasswordChangeConfig controls ChangePassword.
type PasswordChangeConfig struct {
	// RejectReuse makes ChangePassword fail with ErrPasswordUnchanged when the
	// new password equals the current one, as CompletePasswordReset always does.
	RejectReuse bool `yaml:"reject_reuse" env:"REJECT_REUSE"`
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig configures the Redis-backed login and registration
// throttles. They are active only when the builder received a Redis client.
type RateLimitConfig struct {
	RedisPrefix               string        `yaml:"redis_prefix" env:"REDIS_PREFIX"`
	MaxLoginAttempts          int           `yaml:"max_login_attempts" env:"MAX_LOGIN_ATTEMPTS"`
	LoginCooldown             time.Duration `yaml:"login_cooldown" env:"LOGIN_COOLDOWN"`
	EnableIPThrottle          bool          `yaml:"enable_ip_throttle" env:"ENABLE_IP_THROTTLE"`
	RegistrationMaxAttempts   int           `yaml:"registration_max_attempts" env:"REGISTRATION_MAX_ATTEMPTS"`
	RegistrationWindow        time.Duration `yaml:"registration_window" env:"REGISTRATION_WINDOW"`
	RegistrationIPThrottle    bool          `yaml:"registration_ip_throttle" env:"REGISTRATION_IP_THROTTLE"`
	RegistrationEmailThrottle bool          `yaml:"registration_email_throttle" env:"REGISTRATION_EMAIL_THROTTLE"`
}

/*
====================================
NOTIFY CONFIG
====================================
*/

// NotifyConfig controls how verification and reset messages leave the engine.
type NotifyConfig struct {
	// FrontendURL prefixes the links placed in outgoing messages.
	FrontendURL string `yaml:"frontend_url" env:"FRONTEND_URL"`
	// Async delivers on a background worker after the store write commits.
	Async      bool `yaml:"async" env:"ASYNC"`
	BufferSize int  `yaml:"buffer_size" env:"BUFFER_SIZE"`
	DropIfFull bool `yaml:"drop_if_full" env:"DROP_IF_FULL"`

	// DeliveryTimeout bounds one notifier call. Synchronous delivery also
	// stops waiting when the caller's context ends.
	DeliveryTimeout time.Duration `yaml:"delivery_timeout" env:"DELIVERY_TIMEOUT"`
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled" env:"ENABLED"`
	BufferSize int  `yaml:"buffer_size" env:"BUFFER_SIZE"`
	DropIfFull bool `yaml:"drop_if_full" env:"DROP_IF_FULL"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled" env:"ENABLED"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms" env:"ENABLE_LATENCY_HISTOGRAMS"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration Build starts from. Token.Secret is
// empty and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Algorithm: string(jwt.HS256),
			AccessTTL: jwt.DefaultAccessTTL,
		},
		Password: PasswordConfig{
			Algorithm:      password.AlgorithmArgon2id,
			MinLength:      8,
			MaxBytes:       password.DefaultMaxPasswordBytes,
			UpgradeOnLogin: true,
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			BcryptCost:     12,
		},
		Verification: VerificationConfig{
			ResendMaxAttempts: 5,
			ResendWindow:      time.Hour,
		},
		PasswordReset: PasswordResetConfig{
			ResetTTL:                 24 * time.Hour,
			MaxAttempts:              5,
			Window:                   time.Hour,
			EnableIPThrottle:         true,
			EnableIdentifierThrottle: true,
		},
		PasswordChange: PasswordChangeConfig{
			RejectReuse: false,
		},
		RateLimit: RateLimitConfig{
			RedisPrefix:               "ga",
			MaxLoginAttempts:          5,
			LoginCooldown:             15 * time.Minute,
			EnableIPThrottle:          false,
			RegistrationMaxAttempts:   5,
			RegistrationWindow:        15 * time.Minute,
			RegistrationIPThrottle:    true,
			RegistrationEmailThrottle: false,
		},
		Notify: NotifyConfig{
			FrontendURL: "http://localhost:3000",
			Async:           true,
			BufferSize:      256,
			DropIfFull:      false,
			DeliveryTimeout: 10 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first setting that would make the engine unsafe or unusable.
func (c *Config) Validate() error {
	// Token
	if len(c.Token.Secret) < jwt.MinSecretBytes {
		return errors.New("Token Secret must be >= 32 bytes")
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	switch jwt.Algorithm(strings.ToUpper(c.Token.Algorithm)) {
	case jwt.HS256, jwt.HS384, jwt.HS512:
	default:
		return errors.New("Token Algorithm must be HS256, HS384 or HS512")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be within [0, 2m]")
	}

	// Password
	switch c.Password.Algorithm {
	case password.AlgorithmArgon2id:
	case password.AlgorithmBcrypt:
		if c.Password.MaxBytes > 72 {
			return errors.New("Password MaxBytes must be <= 72 when bcrypt is preferred")
		}
	default:
		return errors.New("Password Algorithm must be argon2id or bcrypt")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}
	if c.Password.MaxBytes < c.Password.MinLength {
		return errors.New("Password MaxBytes must be >= MinLength")
	}

	// Verification
	if c.Verification.ResendMaxAttempts < 0 {
		return errors.New("Verification ResendMaxAttempts must be >= 0")
	}
	if c.Verification.ResendMaxAttempts > 0 && c.Verification.ResendWindow <= 0 {
		return errors.New("Verification ResendWindow must be > 0 when resend is throttled")
	}

	// Password reset
	if c.PasswordReset.ResetTTL <= 0 {
		return errors.New("PasswordReset ResetTTL must be > 0")
	}
	if c.PasswordReset.MaxAttempts < 0 {
		return errors.New("PasswordReset MaxAttempts must be >= 0")
	}
	if c.PasswordReset.MaxAttempts > 0 && c.PasswordReset.Window <= 0 {
		return errors.New("PasswordReset Window must be > 0 when requests are throttled")
	}

	// Rate limits
	if c.RateLimit.MaxLoginAttempts <= 0 {
		return errors.New("RateLimit MaxLoginAttempts must be > 0")
	}
	if c.RateLimit.LoginCooldown <= 0 {
		return errors.New("RateLimit LoginCooldown must be > 0")
	}
	if c.RateLimit.RegistrationMaxAttempts < 0 {
		return errors.New("RateLimit RegistrationMaxAttempts must be >= 0")
	}
	if c.RateLimit.RegistrationMaxAttempts > 0 && c.RateLimit.RegistrationWindow <= 0 {
		return errors.New("RateLimit RegistrationWindow must be > 0 when registration is throttled")
	}

	// Notify
	if c.Notify.FrontendURL != "" {
		u, err := url.Parse(c.Notify.FrontendURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("Notify FrontendURL must be an absolute URL")
		}
	}
	if c.Notify.Async && c.Notify.BufferSize <= 0 {
		return errors.New("Notify BufferSize must be > 0 when delivery is async")
	}
	if c.Notify.DeliveryTimeout <= 0 {
		return errors.New("Notify DeliveryTimeout must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
