package goAccount

import (
	"context"

	"github.com/MrEthical07/goAccount/account"
	"github.com/MrEthical07/goAccount/internal"
	internalflows "github.com/MrEthical07/goAccount/internal/flows"
)

// VerifyEmail consumes a verification token and marks its account verified.
// Replaying the token that verified the account returns ErrAlreadyVerified;
// unknown, superseded and malformed tokens return ErrInvalidToken.
func (e *Engine) VerifyEmail(ctx context.Context, token string) (*account.Account, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return internalflows.RunVerifyEmail(ctx, token, e.verifyEmailFlowDeps())
}

// ResendVerification issues a fresh verification token for an unverified
// account, invalidates the previous one and notifies the owner. The new token
// is also returned to the caller.
func (e *Engine) ResendVerification(ctx context.Context, accountID string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	return internalflows.RunResendVerification(ctx, accountID, e.resendVerificationFlowDeps())
}

func (e *Engine) verifyEmailFlowDeps() internalflows.VerifyEmailDeps {
	return internalflows.VerifyEmailDeps{
		Now:                    e.now,
		WellFormedToken:        internal.WellFormedOpaqueToken,
		GetByVerificationToken: e.store.GetByVerificationToken,
		Update:                 e.store.Update,
		Internal:               e.internalError,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics:   e.verificationMetrics(),
		Events:    e.verificationEvents(),
		Errors:    e.verificationErrors(),
	}
}

func (e *Engine) resendVerificationFlowDeps() internalflows.ResendVerificationDeps {
	return internalflows.ResendVerificationDeps{
		Now:                e.now,
		GetByID:            e.store.GetByID,
		Update:             e.store.Update,
		NewToken:           internal.NewOpaqueToken,
		CheckResend:        e.resendLimiter.CheckResend,
		MapLimiterError:    e.mapLimiterError,
		NotifyVerification: e.notifyVerification,
		Internal:           e.internalError,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit:     e.emitAudit,
		EmitRateLimit: e.emitRateLimit,
		Metrics:       e.verificationMetrics(),
		Events:        e.verificationEvents(),
		Errors:        e.verificationErrors(),
	}
}

func (e *Engine) verificationMetrics() internalflows.VerificationMetrics {
	return internalflows.VerificationMetrics{
		VerifySuccess:     int(MetricEmailVerificationSuccess),
		VerifyFailure:     int(MetricEmailVerificationFailure),
		ResendSuccess:     int(MetricVerificationResent),
		ResendRateLimited: int(MetricVerificationResendRateLimited),
	}
}

func (e *Engine) verificationEvents() internalflows.VerificationEvents {
	return internalflows.VerificationEvents{
		Verify: auditEventEmailVerify,
		Resend: auditEventEmailVerifyResend,
	}
}

func (e *Engine) verificationErrors() internalflows.VerificationErrors {
	return internalflows.VerificationErrors{
		EngineNotReady:  ErrEngineNotReady,
		InvalidToken:    ErrInvalidToken,
		AlreadyVerified: ErrAlreadyVerified,
		NotFound:        ErrNotFound,
		RateLimited:     ErrRateLimited,
	}
}
