package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccount/account"
)

type PasswordResetMetrics struct {
	ResetRequest          int
	ResetRequestUnknown   int
	ResetRequestThrottled int
	ResetSuccess          int
	ResetFailure          int
}

type PasswordResetEvents struct {
	ResetRequest  string
	ResetComplete string
}

type PasswordResetErrors struct {
	EngineNotReady    error
	InvalidToken      error
	PasswordUnchanged error
	RateLimited       error
	Invalid           func(field, reason string) error
}

type RequestPasswordResetDeps struct {
	ResetTTL time.Duration

	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string

	GetByEmail func(context.Context, string) (*account.Account, error)
	Update     func(context.Context, string, account.MutateFunc) (*account.Account, error)
	NewToken   func() (string, error)

	CheckRequest    func(ctx context.Context, email, ip string) error
	MapLimiterError func(error) error

	NotifyReset NotifyFunc
	Internal    InternalFunc

	MetricInc     func(int)
	EmitAudit     AuditFunc
	EmitRateLimit RateLimitFunc

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

// RunRequestPasswordReset opens a recovery window for the account owning
// email and hands the token to the notifier. Unknown addresses and throttled
// requests return nil exactly like a successful one.
func RunRequestPasswordReset(ctx context.Context, email string, deps RequestPasswordResetDeps) error {
	normalizeRequestPasswordResetDeps(&deps)

	if deps.GetByEmail == nil || deps.Update == nil || deps.NewToken == nil || deps.Errors.Invalid == nil {
		return deps.Errors.EngineNotReady
	}

	email = normalizeEmail(email)
	if bad := checkEmail(email); bad != nil {
		return deps.Errors.Invalid(bad.field, bad.reason)
	}

	ip := deps.ClientIPFromContext(ctx)
	if err := deps.CheckRequest(ctx, email, ip); err != nil {
		mapped := deps.MapLimiterError(err)
		if !errors.Is(mapped, deps.Errors.RateLimited) {
			return internalOr(ctx, deps.Internal, "password_reset_request.limiter", err)
		}
		deps.MetricInc(deps.Metrics.ResetRequestThrottled)
		deps.EmitAudit(ctx, deps.Events.ResetRequest, false, "", mapped, nil)
		deps.EmitRateLimit(ctx, "password_reset", func() map[string]string {
			return map[string]string{
				"ip": ip,
			}
		})
		return nil
	}

	acc, err := deps.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			deps.MetricInc(deps.Metrics.ResetRequestUnknown)
			deps.EmitAudit(ctx, deps.Events.ResetRequest, false, "", nil, func() map[string]string {
				return map[string]string{
					"reason": "unknown_email",
				}
			})
			return nil
		}
		return internalOr(ctx, deps.Internal, "password_reset_request.lookup", err)
	}

	token, err := deps.NewToken()
	if err != nil {
		return internalOr(ctx, deps.Internal, "password_reset_request.token", err)
	}

	now := deps.Now()
	updated, err := deps.Update(ctx, acc.ID, func(a *account.Account) error {
		return a.OpenRecovery(token, now.Add(deps.ResetTTL), now)
	})
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil
		}
		return internalOr(ctx, deps.Internal, "password_reset_request.update", err)
	}

	deps.NotifyReset(ctx, updated.Clone(), token)
	deps.MetricInc(deps.Metrics.ResetRequest)
	deps.EmitAudit(ctx, deps.Events.ResetRequest, true, updated.ID, nil, nil)
	return nil
}

func normalizeRequestPasswordResetDeps(deps *RequestPasswordResetDeps) {
	if deps.ResetTTL <= 0 {
		deps.ResetTTL = 24 * time.Hour
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = noClientIP
	}
	if deps.CheckRequest == nil {
		deps.CheckRequest = func(context.Context, string, string) error { return nil }
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(err error) error { return err }
	}
	if deps.NotifyReset == nil {
		deps.NotifyReset = noopNotify
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

type CompletePasswordResetDeps struct {
	Rules PasswordRules

	Now func() time.Time

	WellFormedToken func(string) bool
	GetByResetToken func(ctx context.Context, token string, now time.Time) (*account.Account, error)
	Update          func(context.Context, string, account.MutateFunc) (*account.Account, error)

	VerifyPassword func(password, digest string) bool
	HashPassword   func(string) (string, error)

	Internal  InternalFunc
	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

// RunCompletePasswordReset sets a new password through an open recovery
// window. Token and expiry are checked again inside the write.
func RunCompletePasswordReset(ctx context.Context, token, newPassword, confirm string, deps CompletePasswordResetDeps) (*account.Account, error) {
	normalizeCompletePasswordResetDeps(&deps)

	if deps.GetByResetToken == nil || deps.Update == nil || deps.VerifyPassword == nil || deps.HashPassword == nil ||
		deps.Errors.Invalid == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if token == "" || !deps.WellFormedToken(token) {
		return nil, resetFailure(ctx, deps, "", deps.Errors.InvalidToken, "malformed")
	}
	if bad := checkNewPassword(deps.Rules, newPassword, confirm); bad != nil {
		return nil, deps.Errors.Invalid(bad.field, bad.reason)
	}

	acc, err := deps.GetByResetToken(ctx, token, deps.Now())
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, resetFailure(ctx, deps, "", deps.Errors.InvalidToken, "unknown_or_expired")
		}
		return nil, internalOr(ctx, deps.Internal, "password_reset.lookup", err)
	}

	if deps.VerifyPassword(newPassword, acc.PasswordHash) {
		return nil, resetFailure(ctx, deps, acc.ID, deps.Errors.PasswordUnchanged, "unchanged")
	}

	digest, err := deps.HashPassword(newPassword)
	if err != nil {
		return nil, internalOr(ctx, deps.Internal, "password_reset.hash", err)
	}

	seen := acc.PasswordHash
	var unchanged bool
	updated, err := deps.Update(ctx, acc.ID, func(a *account.Account) error {
		if a.PasswordHash != seen && deps.VerifyPassword(newPassword, a.PasswordHash) {
			unchanged = true
			return errHashMoved
		}
		now := deps.Now()
		if err := a.ConsumeRecovery(token, now); err != nil {
			return err
		}
		return a.SetPasswordHash(digest, now)
	})
	switch {
	case err == nil:
	case unchanged:
		return nil, resetFailure(ctx, deps, acc.ID, deps.Errors.PasswordUnchanged, "unchanged")
	case errors.Is(err, account.ErrTokenMismatch), errors.Is(err, account.ErrNotFound):
		return nil, resetFailure(ctx, deps, acc.ID, deps.Errors.InvalidToken, "consumed")
	default:
		return nil, internalOr(ctx, deps.Internal, "password_reset.update", err)
	}

	deps.MetricInc(deps.Metrics.ResetSuccess)
	deps.EmitAudit(ctx, deps.Events.ResetComplete, true, updated.ID, nil, nil)
	return updated, nil
}

func resetFailure(ctx context.Context, deps CompletePasswordResetDeps, accountID string, err error, reason string) error {
	deps.MetricInc(deps.Metrics.ResetFailure)
	deps.EmitAudit(ctx, deps.Events.ResetComplete, false, accountID, err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return err
}

func normalizeCompletePasswordResetDeps(deps *CompletePasswordResetDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.WellFormedToken == nil {
		deps.WellFormedToken = func(string) bool { return true }
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
}
