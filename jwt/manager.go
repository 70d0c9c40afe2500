package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Algorithm names a symmetric signing algorithm.
type Algorithm string

const (
	HS256 Algorithm = "HS256"
	HS384 Algorithm = "HS384"
	HS512 Algorithm = "HS512"

	// DefaultAccessTTL is the access-token lifetime when none is configured.
	DefaultAccessTTL = 30 * time.Minute
	// MinSecretBytes is the shortest accepted signing secret.
	MinSecretBytes = 32
)

var (
	// ErrInvalidToken is the only error Verify returns. It does not say why.
	ErrInvalidToken = errors.New("invalid access token")
	// ErrMisconfigured is returned when a manager cannot sign.
	ErrMisconfigured = errors.New("access token signer misconfigured")
)

// Config configures a Manager. Secret is copied at construction.
type Config struct {
	Secret    []byte
	Algorithm Algorithm
	AccessTTL time.Duration
	Issuer    string
	Audience  string
	Leeway    time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Claims carries the subject (username), the owning account id and the
// registered time claims.
type Claims struct {
	AccountID string `json:"aid,omitempty"`
	jwt.RegisteredClaims
}

// Manager mints and verifies signed access tokens with a fixed secret.
type Manager struct {
	secret   []byte
	method   jwt.SigningMethod
	ttl      time.Duration
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < MinSecretBytes {
		return nil, errors.New("jwt secret must be >= 32 bytes")
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.AccessTTL < 0 {
		return nil, errors.New("jwt access TTL must be > 0")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt leeway must be within [0, 2m]")
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = HS256
	}
	method := signingMethod(cfg.Algorithm)
	if method == nil {
		return nil, errors.New("unsupported jwt algorithm")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{
		secret:   append([]byte(nil), cfg.Secret...),
		method:   method,
		ttl:      cfg.AccessTTL,
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		leeway:   cfg.Leeway,
		now:      cfg.Now,
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.leeway > 0 {
		options = append(options, jwt.WithLeeway(m.leeway))
	}
	if m.issuer != "" {
		options = append(options, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		options = append(options, jwt.WithAudience(m.audience))
	}
	m.parser = jwt.NewParser(options...)

	return m, nil
}

// TTL returns the configured access-token lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Mint signs a token for subject expiring TTL after now.
func (m *Manager) Mint(subject string) (string, time.Time, error) {
	return m.MintAccount(subject, "")
}

// MintAccount is Mint with the account id pinned in the "aid" claim, so a
// subject later taken by another account can be told apart.
func (m *Manager) MintAccount(subject, accountID string) (string, time.Time, error) {
	if m == nil || len(m.secret) == 0 {
		return "", time.Time{}, ErrMisconfigured
	}
	if subject == "" {
		return "", time.Time{}, errors.New("jwt subject required")
	}

	issuedAt := m.now().UTC()
	expiresAt := issuedAt.Add(m.ttl)

	claims := Claims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    m.issuer,
		},
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, errors.Join(ErrMisconfigured, err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, algorithm and expiry and returns the subject.
// Every failure collapses to ErrInvalidToken.
func (m *Manager) Verify(token string) (string, error) {
	claims, err := m.VerifyClaims(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// VerifyClaims is Verify returning the full claim set.
func (m *Manager) VerifyClaims(token string) (*Claims, error) {
	if m == nil || token == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := m.parser.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func signingMethod(alg Algorithm) jwt.SigningMethod {
	switch Algorithm(strings.ToUpper(string(alg))) {
	case HS256:
		return jwt.SigningMethodHS256
	case HS384:
		return jwt.SigningMethodHS384
	case HS512:
		return jwt.SigningMethodHS512
	default:
		return nil
	}
}
