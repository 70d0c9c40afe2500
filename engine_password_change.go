package goAccount

import (
	"context"

	"github.com/MrEthical07/goAccount/account"
	internalflows "github.com/MrEthical07/goAccount/internal/flows"
)

// ChangePassword replaces the password of accountID after checking the
// current one. A wrong current password returns ErrIncorrectCredentials.
// With PasswordChange.RejectReuse a new password equal to the current one
// returns ErrPasswordUnchanged.
func (e *Engine) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword, confirm string) (*account.Account, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return internalflows.RunChangePassword(ctx, accountID, currentPassword, newPassword, confirm, e.changePasswordFlowDeps())
}

func (e *Engine) changePasswordFlowDeps() internalflows.ChangePasswordDeps {
	return internalflows.ChangePasswordDeps{
		Rules:          e.passwordRules(),
		RejectReuse:    e.config.PasswordChange.RejectReuse,
		Now:            e.now,
		GetByID:        e.store.GetByID,
		Update:         e.store.Update,
		VerifyPassword: e.verifyPassword,
		HashPassword:   e.hashPassword,
		Internal:       e.internalError,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.ChangePasswordMetrics{
			ChangeSuccess: int(MetricPasswordChangeSuccess),
			ChangeFailure: int(MetricPasswordChangeFailure),
		},
		Events: internalflows.ChangePasswordEvents{
			Change: auditEventPasswordChange,
		},
		Errors: internalflows.ChangePasswordErrors{
			EngineNotReady:       ErrEngineNotReady,
			IncorrectCredentials: ErrIncorrectCredentials,
			PasswordUnchanged:    ErrPasswordUnchanged,
			NotFound:             ErrNotFound,
			Invalid:              invalidInput,
		},
	}
}
