package goAccount

import (
	"context"

	"github.com/MrEthical07/goAccount/account"
	internalflows "github.com/MrEthical07/goAccount/internal/flows"
)

// ProfileUpdate lists the profile fields to change. A nil field is left as is.
type ProfileUpdate struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	FullName *string `json:"full_name,omitempty"`
}

// UpdateProfile applies upd to accountID. Changing the email does not reset
// the verification state. A username or email held by another account
// returns *ConflictError.
func (e *Engine) UpdateProfile(ctx context.Context, accountID string, upd ProfileUpdate) (*account.Account, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return internalflows.RunUpdateProfile(ctx, accountID, internalflows.ProfilePatch(upd), e.updateProfileFlowDeps())
}

func (e *Engine) updateProfileFlowDeps() internalflows.UpdateProfileDeps {
	return internalflows.UpdateProfileDeps{
		Now:           e.now,
		GetByID:       e.store.GetByID,
		GetByUsername: e.store.GetByUsername,
		GetByEmail:    e.store.GetByEmail,
		Update:        e.store.Update,
		Internal:      e.internalError,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.ProfileMetrics{
			ProfileUpdated:  int(MetricProfileUpdated),
			ProfileConflict: int(MetricProfileConflict),
		},
		Events: internalflows.ProfileEvents{
			ProfileUpdate: auditEventProfileUpdate,
		},
		Errors: internalflows.ProfileErrors{
			EngineNotReady: ErrEngineNotReady,
			NotFound:       ErrNotFound,
			Invalid:        invalidInput,
			Conflict:       conflictOn,
		},
	}
}
