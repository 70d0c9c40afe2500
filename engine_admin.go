package goAccount

import (
	"context"
	"errors"

	"github.com/MrEthical07/goAccount/account"
	internalflows "github.com/MrEthical07/goAccount/internal/flows"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// GetAccount returns the account with id, or ErrNotFound.
func (e *Engine) GetAccount(ctx context.Context, id string) (*account.Account, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	acc, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, e.storeError(ctx, "get_account", err)
	}
	return acc, nil
}

// ListAccounts pages through accounts in creation order. A non-positive limit
// means 100; limits above 1000 are capped.
func (e *Engine) ListAccounts(ctx context.Context, skip, limit int) ([]*account.Account, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	accounts, err := e.store.List(ctx, skip, limit)
	if err != nil {
		return nil, e.storeError(ctx, "list_accounts", err)
	}
	return accounts, nil
}

// SetActive locks (false) or unlocks (true) an account. Unlocking clears the
// login failure counters for its username and email.
func (e *Engine) SetActive(ctx context.Context, id string, active bool) (*account.Account, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	status := account.Locked
	if active {
		status = account.Active
	}

	acc, err := internalflows.RunSetAccountLock(ctx, id, status, internalflows.SetAccountLockDeps{
		Now:               e.now,
		Update:            e.store.Update,
		ResetLogin:        e.rateLimiter.ResetLogin,
		Internal:          e.internalError,
		EmitAudit:         e.emitAudit,
		AuditEvent:        auditEventAccountStatusChange,
		ErrEngineNotReady: ErrEngineNotReady,
		ErrNotFound:       ErrNotFound,
	})
	if err != nil {
		return nil, err
	}

	if active {
		e.metricInc(MetricAccountUnlocked)
	} else {
		e.metricInc(MetricAccountLocked)
	}
	return acc, nil
}

// DeleteAccount removes the account and with it every outstanding
// verification and reset token.
func (e *Engine) DeleteAccount(ctx context.Context, id string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.store.Delete(ctx, id); err != nil {
		return e.storeError(ctx, "delete_account", err)
	}
	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditEventAccountDeleted, true, id, nil, nil)
	return nil
}

func (e *Engine) storeError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, account.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return e.internalError(ctx, op, err)
	}
}
