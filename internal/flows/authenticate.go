package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccount/account"
)

type AuthenticateMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginLocked      int
	LoginRateLimited int
	PasswordRehashed int
}

type AuthenticateEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
}

type AuthenticateErrors struct {
	EngineNotReady       error
	IncorrectCredentials error
	AccountLocked        error
	RateLimited          error
}

type AuthenticateDeps struct {
	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string

	GetByUsernameOrEmail func(context.Context, string) (*account.Account, error)
	Update               func(context.Context, string, account.MutateFunc) (*account.Account, error)

	VerifyPassword func(password, digest string) bool
	// DummyVerify burns the cost of one verification when no account matched.
	DummyVerify  func(password string)
	NeedsRehash  func(digest string) bool
	HashPassword func(string) (string, error)

	CheckLogin         func(ctx context.Context, identifier, ip string) error
	RecordLoginFailure func(ctx context.Context, identifier, ip string) error
	ResetLogin         func(ctx context.Context, identifier string) error
	MapLimiterError    func(error) error

	OnRehashError func(ctx context.Context, accountID string, err error)
	Internal      InternalFunc

	MetricInc     func(int)
	EmitAudit     AuditFunc
	EmitRateLimit RateLimitFunc

	Metrics AuthenticateMetrics
	Events  AuthenticateEvents
	Errors  AuthenticateErrors
}

var errHashMoved = errors.New("password hash changed concurrently")

// RunAuthenticate checks identifier and password and returns the matching
// account. Unknown identifiers and wrong passwords are indistinguishable.
// The lock status is only disclosed once the password has been proven.
func RunAuthenticate(ctx context.Context, identifier, password string, deps AuthenticateDeps) (*account.Account, error) {
	normalizeAuthenticateDeps(&deps)

	if deps.GetByUsernameOrEmail == nil || deps.VerifyPassword == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if identifier == "" || password == "" {
		return nil, authenticateFailure(ctx, deps, "", "missing_input")
	}

	ip := deps.ClientIPFromContext(ctx)
	if err := deps.CheckLogin(ctx, identifier, ip); err != nil {
		return nil, authenticateLimited(ctx, deps, ip, err)
	}

	acc, err := deps.GetByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if !errors.Is(err, account.ErrNotFound) {
			return nil, internalOr(ctx, deps.Internal, "authenticate.lookup", err)
		}
		deps.DummyVerify(password)
		if err := deps.RecordLoginFailure(ctx, identifier, ip); err != nil {
			if limited := authenticateLimitedOnRecord(ctx, deps, ip, err); limited != nil {
				return nil, limited
			}
		}
		return nil, authenticateFailure(ctx, deps, "", "unknown_identifier")
	}

	if !deps.VerifyPassword(password, acc.PasswordHash) {
		if err := deps.RecordLoginFailure(ctx, identifier, ip); err != nil {
			if limited := authenticateLimitedOnRecord(ctx, deps, ip, err); limited != nil {
				return nil, limited
			}
		}
		return nil, authenticateFailure(ctx, deps, acc.ID, "bad_password")
	}

	if !acc.IsActive() {
		deps.MetricInc(deps.Metrics.LoginLocked)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, acc.ID, deps.Errors.AccountLocked, func() map[string]string {
			return map[string]string{
				"reason": "locked",
			}
		})
		return nil, deps.Errors.AccountLocked
	}

	_ = deps.ResetLogin(ctx, identifier)

	if deps.NeedsRehash(acc.PasswordHash) {
		if upgraded, err := rehash(ctx, acc, password, deps); err != nil {
			deps.OnRehashError(ctx, acc.ID, err)
		} else {
			acc = upgraded
			deps.MetricInc(deps.Metrics.PasswordRehashed)
		}
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, acc.ID, nil, nil)
	return acc, nil
}

// rehash upgrades the stored digest only if nobody changed it in the meantime.
func rehash(ctx context.Context, acc *account.Account, password string, deps AuthenticateDeps) (*account.Account, error) {
	if deps.HashPassword == nil || deps.Update == nil {
		return nil, errors.New("rehash dependencies missing")
	}
	digest, err := deps.HashPassword(password)
	if err != nil {
		return nil, err
	}
	old := acc.PasswordHash
	return deps.Update(ctx, acc.ID, func(a *account.Account) error {
		if a.PasswordHash != old {
			return errHashMoved
		}
		return a.SetPasswordHash(digest, deps.Now())
	})
}

func authenticateFailure(ctx context.Context, deps AuthenticateDeps, accountID, reason string) error {
	deps.MetricInc(deps.Metrics.LoginFailure)
	deps.EmitAudit(ctx, deps.Events.LoginFailure, false, accountID, deps.Errors.IncorrectCredentials, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return deps.Errors.IncorrectCredentials
}

func authenticateLimited(ctx context.Context, deps AuthenticateDeps, ip string, err error) error {
	mapped := deps.MapLimiterError(err)
	if !errors.Is(mapped, deps.Errors.RateLimited) {
		return internalOr(ctx, deps.Internal, "authenticate.limiter", err)
	}
	deps.MetricInc(deps.Metrics.LoginRateLimited)
	deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, "", mapped, nil)
	deps.EmitRateLimit(ctx, "login", func() map[string]string {
		return map[string]string{
			"ip": ip,
		}
	})
	return mapped
}

// authenticateLimitedOnRecord surfaces the throttle once the failure that
// crossed the threshold has been counted. Limiter outages are ignored here so
// a broken backend does not change the credential answer.
func authenticateLimitedOnRecord(ctx context.Context, deps AuthenticateDeps, ip string, err error) error {
	mapped := deps.MapLimiterError(err)
	if !errors.Is(mapped, deps.Errors.RateLimited) {
		return nil
	}
	return authenticateLimited(ctx, deps, ip, err)
}

func normalizeAuthenticateDeps(deps *AuthenticateDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = noClientIP
	}
	if deps.DummyVerify == nil {
		deps.DummyVerify = func(string) {}
	}
	if deps.NeedsRehash == nil {
		deps.NeedsRehash = func(string) bool { return false }
	}
	if deps.CheckLogin == nil {
		deps.CheckLogin = func(context.Context, string, string) error { return nil }
	}
	if deps.RecordLoginFailure == nil {
		deps.RecordLoginFailure = func(context.Context, string, string) error { return nil }
	}
	if deps.ResetLogin == nil {
		deps.ResetLogin = func(context.Context, string) error { return nil }
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(err error) error { return err }
	}
	if deps.OnRehashError == nil {
		deps.OnRehashError = func(context.Context, string, error) {}
	}
	if deps.Internal == nil {
		deps.Internal = func(_ context.Context, _ string, err error) error { return err }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.EmitRateLimit == nil {
		deps.EmitRateLimit = noopRateLimit
	}
}
