package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccount/account"
)

type VerificationMetrics struct {
	VerifySuccess     int
	VerifyFailure     int
	ResendSuccess     int
	ResendRateLimited int
}

type VerificationEvents struct {
	Verify string
	Resend string
}

type VerificationErrors struct {
	EngineNotReady  error
	InvalidToken    error
	AlreadyVerified error
	NotFound        error
	RateLimited     error
}

type VerifyEmailDeps struct {
	Now func() time.Time

	WellFormedToken        func(string) bool
	GetByVerificationToken func(context.Context, string) (*account.Account, error)
	Update                 func(context.Context, string, account.MutateFunc) (*account.Account, error)

	Internal  InternalFunc
	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics VerificationMetrics
	Events  VerificationEvents
	Errors  VerificationErrors
}

// RunVerifyEmail consumes a verification token. A token that already verified
// its account answers AlreadyVerified; anything else unknown is InvalidToken.
func RunVerifyEmail(ctx context.Context, token string, deps VerifyEmailDeps) (*account.Account, error) {
	normalizeVerifyEmailDeps(&deps)

	if deps.GetByVerificationToken == nil || deps.Update == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if token == "" || !deps.WellFormedToken(token) {
		return nil, verifyFailure(ctx, deps, "", deps.Errors.InvalidToken, "malformed")
	}

	acc, err := deps.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, verifyFailure(ctx, deps, "", deps.Errors.InvalidToken, "unknown")
		}
		return nil, internalOr(ctx, deps.Internal, "verify_email.lookup", err)
	}
	if acc.IsVerified() {
		return nil, verifyFailure(ctx, deps, acc.ID, deps.Errors.AlreadyVerified, "replay")
	}

	updated, err := deps.Update(ctx, acc.ID, func(a *account.Account) error {
		return a.ConfirmVerification(token, deps.Now())
	})
	switch {
	case err == nil:
	case errors.Is(err, account.ErrAlreadyVerified):
		return nil, verifyFailure(ctx, deps, acc.ID, deps.Errors.AlreadyVerified, "raced")
	case errors.Is(err, account.ErrTokenMismatch), errors.Is(err, account.ErrNotFound):
		return nil, verifyFailure(ctx, deps, acc.ID, deps.Errors.InvalidToken, "superseded")
	default:
		return nil, internalOr(ctx, deps.Internal, "verify_email.update", err)
	}

	deps.MetricInc(deps.Metrics.VerifySuccess)
	deps.EmitAudit(ctx, deps.Events.Verify, true, updated.ID, nil, nil)
	return updated, nil
}

func verifyFailure(ctx context.Context, deps VerifyEmailDeps, accountID string, err error, reason string) error {
	deps.MetricInc(deps.Metrics.VerifyFailure)
	deps.EmitAudit(ctx, deps.Events.Verify, false, accountID, err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return err
}

func normalizeVerifyEmailDeps(deps *VerifyEmailDeps) {
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

type ResendVerificationDeps struct {
	Now func() time.Time

	GetByID  func(context.Context, string) (*account.Account, error)
	Update   func(context.Context, string, account.MutateFunc) (*account.Account, error)
	NewToken func() (string, error)

	CheckResend     func(ctx context.Context, accountID string) error
	MapLimiterError func(error) error

	NotifyVerification NotifyFunc
	Internal           InternalFunc

	MetricInc     func(int)
	EmitAudit     AuditFunc
	EmitRateLimit RateLimitFunc

	Metrics VerificationMetrics
	Events  VerificationEvents
	Errors  VerificationErrors
}

// RunResendVerification replaces the pending token of an unverified account
// and returns the new one. The previous token stops matching.
func RunResendVerification(ctx context.Context, accountID string, deps ResendVerificationDeps) (string, error) {
	normalizeResendVerificationDeps(&deps)

	if deps.GetByID == nil || deps.Update == nil || deps.NewToken == nil {
		return "", deps.Errors.EngineNotReady
	}
	if accountID == "" {
		return "", deps.Errors.NotFound
	}

	acc, err := deps.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return "", deps.Errors.NotFound
		}
		return "", internalOr(ctx, deps.Internal, "resend_verification.lookup", err)
	}
	if acc.IsVerified() {
		deps.EmitAudit(ctx, deps.Events.Resend, false, acc.ID, deps.Errors.AlreadyVerified, nil)
		return "", deps.Errors.AlreadyVerified
	}

	if err := deps.CheckResend(ctx, acc.ID); err != nil {
		mapped := deps.MapLimiterError(err)
		if !errors.Is(mapped, deps.Errors.RateLimited) {
			return "", internalOr(ctx, deps.Internal, "resend_verification.limiter", err)
		}
		deps.MetricInc(deps.Metrics.ResendRateLimited)
		deps.EmitAudit(ctx, deps.Events.Resend, false, acc.ID, mapped, nil)
		deps.EmitRateLimit(ctx, "verification_resend", func() map[string]string {
			return map[string]string{
				"account_id": acc.ID,
			}
		})
		return "", mapped
	}

	token, err := deps.NewToken()
	if err != nil {
		return "", internalOr(ctx, deps.Internal, "resend_verification.token", err)
	}

	updated, err := deps.Update(ctx, acc.ID, func(a *account.Account) error {
		return a.IssueVerificationToken(token, deps.Now())
	})
	switch {
	case err == nil:
	case errors.Is(err, account.ErrAlreadyVerified):
		return "", deps.Errors.AlreadyVerified
	case errors.Is(err, account.ErrNotFound):
		return "", deps.Errors.NotFound
	default:
		return "", internalOr(ctx, deps.Internal, "resend_verification.update", err)
	}

	deps.NotifyVerification(ctx, updated.Clone(), token)
	deps.MetricInc(deps.Metrics.ResendSuccess)
	deps.EmitAudit(ctx, deps.Events.Resend, true, updated.ID, nil, nil)
	return token, nil
}

func normalizeResendVerificationDeps(deps *ResendVerificationDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.CheckResend == nil {
		deps.CheckResend = func(context.Context, string) error { return nil }
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(err error) error { return err }
	}
	if deps.NotifyVerification == nil {
		deps.NotifyVerification = noopNotify
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
