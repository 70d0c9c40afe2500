package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccount/account"
)

type SetAccountLockDeps struct {
	Now               func() time.Time
	Update            func(context.Context, string, account.MutateFunc) (*account.Account, error)
	ResetLogin        func(ctx context.Context, identifier string) error
	Internal          InternalFunc
	EmitAudit         AuditFunc
	AuditEvent        string
	ErrEngineNotReady error
	ErrNotFound       error
}

// RunSetAccountLock moves an account between Active and Locked. Reactivating
// also clears the login failure counters so the owner is not throttled on
// their first attempt.
func RunSetAccountLock(ctx context.Context, accountID string, status account.LockStatus, deps SetAccountLockDeps) (*account.Account, error) {
	if deps.Update == nil {
		return nil, deps.ErrEngineNotReady
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Internal == nil {
		deps.Internal = func(_ context.Context, _ string, err error) error { return err }
	}
	if accountID == "" {
		return nil, deps.ErrNotFound
	}

	var previous account.LockStatus
	updated, err := deps.Update(ctx, accountID, func(a *account.Account) error {
		previous = a.Lock()
		a.SetLock(status, deps.Now())
		return nil
	})
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, deps.ErrNotFound
		}
		return nil, internalOr(ctx, deps.Internal, "set_account_lock.update", err)
	}

	if status == account.Active && previous != account.Active && deps.ResetLogin != nil {
		_ = deps.ResetLogin(ctx, updated.Username)
		_ = deps.ResetLogin(ctx, updated.Email)
	}

	deps.EmitAudit(ctx, deps.AuditEvent, true, updated.ID, nil, func() map[string]string {
		return map[string]string{
			"from": previous.String(),
			"to":   status.String(),
		}
	})
	return updated, nil
}
