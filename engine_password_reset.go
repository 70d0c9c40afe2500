package goAccount

import (
	"context"

	"github.com/MrEthical07/goAccount/account"
	"github.com/MrEthical07/goAccount/internal"
	internalflows "github.com/MrEthical07/goAccount/internal/flows"
)

// RequestPasswordReset opens a recovery window for the account registered
// with email and sends the reset link. It returns nil for unknown addresses
// and for throttled requests so callers cannot learn which emails exist.
// Only a malformed email (*ValidationError) or an internal failure is reported.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return internalflows.RunRequestPasswordReset(ctx, email, e.requestPasswordResetFlowDeps())
}

// CompletePasswordReset sets a new password using a reset token. The token is
// single use and expires after PasswordReset.ResetTTL. A new password equal
// to the current one returns ErrPasswordUnchanged and leaves the token usable.
func (e *Engine) CompletePasswordReset(ctx context.Context, token, newPassword, confirm string) (*account.Account, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return internalflows.RunCompletePasswordReset(ctx, token, newPassword, confirm, e.completePasswordResetFlowDeps())
}

func (e *Engine) requestPasswordResetFlowDeps() internalflows.RequestPasswordResetDeps {
	return internalflows.RequestPasswordResetDeps{
		ResetTTL:            e.config.PasswordReset.ResetTTL,
		Now:                 e.now,
		ClientIPFromContext: clientIPFromContext,
		GetByEmail:          e.store.GetByEmail,
		Update:              e.store.Update,
		NewToken:            internal.NewOpaqueToken,
		CheckRequest:        e.resetLimiter.CheckRequest,
		MapLimiterError:     e.mapLimiterError,
		NotifyReset:         e.notifyReset,
		Internal:            e.internalError,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit:     e.emitAudit,
		EmitRateLimit: e.emitRateLimit,
		Metrics:       e.passwordResetMetrics(),
		Events:        e.passwordResetEvents(),
		Errors:        e.passwordResetErrors(),
	}
}

func (e *Engine) completePasswordResetFlowDeps() internalflows.CompletePasswordResetDeps {
	return internalflows.CompletePasswordResetDeps{
		Rules:           e.passwordRules(),
		Now:             e.now,
		WellFormedToken: internal.WellFormedOpaqueToken,
		GetByResetToken: e.store.GetByResetToken,
		Update:          e.store.Update,
		VerifyPassword:  e.verifyPassword,
		HashPassword:    e.hashPassword,
		Internal:        e.internalError,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics:   e.passwordResetMetrics(),
		Events:    e.passwordResetEvents(),
		Errors:    e.passwordResetErrors(),
	}
}

func (e *Engine) passwordResetMetrics() internalflows.PasswordResetMetrics {
	return internalflows.PasswordResetMetrics{
		ResetRequest:          int(MetricPasswordResetRequest),
		ResetRequestUnknown:   int(MetricPasswordResetUnknownEmail),
		ResetRequestThrottled: int(MetricPasswordResetThrottled),
		ResetSuccess:          int(MetricPasswordResetSuccess),
		ResetFailure:          int(MetricPasswordResetFailure),
	}
}

func (e *Engine) passwordResetEvents() internalflows.PasswordResetEvents {
	return internalflows.PasswordResetEvents{
		ResetRequest:  auditEventPasswordResetRequest,
		ResetComplete: auditEventPasswordResetConfirm,
	}
}

func (e *Engine) passwordResetErrors() internalflows.PasswordResetErrors {
	return internalflows.PasswordResetErrors{
		EngineNotReady:    ErrEngineNotReady,
		InvalidToken:      ErrInvalidToken,
		PasswordUnchanged: ErrPasswordUnchanged,
		RateLimited:       ErrRateLimited,
		Invalid:           invalidInput,
	}
}
