package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccount/account"
)

type ChangePasswordMetrics struct {
	ChangeSuccess int
	ChangeFailure int
}

type ChangePasswordEvents struct {
	Change string
}

type ChangePasswordErrors struct {
	EngineNotReady       error
	IncorrectCredentials error
	PasswordUnchanged    error
	NotFound             error
	Invalid              func(field, reason string) error
}

type ChangePasswordDeps struct {
	Rules PasswordRules
	// RejectReuse refuses a new password that verifies against the current hash.
	RejectReuse bool

	Now func() time.Time

	GetByID func(context.Context, string) (*account.Account, error)
	Update  func(context.Context, string, account.MutateFunc) (*account.Account, error)

	VerifyPassword func(password, digest string) bool
	HashPassword   func(string) (string, error)

	Internal  InternalFunc
	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics ChangePasswordMetrics
	Events  ChangePasswordEvents
	Errors  ChangePasswordErrors
}

// RunChangePassword replaces the password of an authenticated account after
// the current one has been proven.
func RunChangePassword(ctx context.Context, accountID, current, newPassword, confirm string, deps ChangePasswordDeps) (*account.Account, error) {
	normalizeChangePasswordDeps(&deps)

	if deps.GetByID == nil || deps.Update == nil || deps.VerifyPassword == nil || deps.HashPassword == nil ||
		deps.Errors.Invalid == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if bad := checkNewPassword(deps.Rules, newPassword, confirm); bad != nil {
		return nil, deps.Errors.Invalid(bad.field, bad.reason)
	}
	if accountID == "" {
		return nil, deps.Errors.NotFound
	}

	acc, err := deps.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, deps.Errors.NotFound
		}
		return nil, internalOr(ctx, deps.Internal, "change_password.lookup", err)
	}

	if current == "" || !deps.VerifyPassword(current, acc.PasswordHash) {
		return nil, changeFailure(ctx, deps, acc.ID, deps.Errors.IncorrectCredentials, "bad_password")
	}
	if deps.RejectReuse && deps.VerifyPassword(newPassword, acc.PasswordHash) {
		return nil, changeFailure(ctx, deps, acc.ID, deps.Errors.PasswordUnchanged, "unchanged")
	}

	digest, err := deps.HashPassword(newPassword)
	if err != nil {
		return nil, internalOr(ctx, deps.Internal, "change_password.hash", err)
	}

	seen := acc.PasswordHash
	var stale bool
	updated, err := deps.Update(ctx, acc.ID, func(a *account.Account) error {
		// The hash moved underneath us: the current password must still prove it.
		if a.PasswordHash != seen && !deps.VerifyPassword(current, a.PasswordHash) {
			stale = true
			return errHashMoved
		}
		return a.SetPasswordHash(digest, deps.Now())
	})
	switch {
	case err == nil:
	case stale:
		return nil, changeFailure(ctx, deps, acc.ID, deps.Errors.IncorrectCredentials, "stale_password")
	case errors.Is(err, account.ErrNotFound):
		return nil, deps.Errors.NotFound
	default:
		return nil, internalOr(ctx, deps.Internal, "change_password.update", err)
	}

	deps.MetricInc(deps.Metrics.ChangeSuccess)
	deps.EmitAudit(ctx, deps.Events.Change, true, updated.ID, nil, nil)
	return updated, nil
}

func changeFailure(ctx context.Context, deps ChangePasswordDeps, accountID string, err error, reason string) error {
	deps.MetricInc(deps.Metrics.ChangeFailure)
	deps.EmitAudit(ctx, deps.Events.Change, false, accountID, err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return err
}

func normalizeChangePasswordDeps(deps *ChangePasswordDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
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
