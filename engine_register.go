package goAccount

import (
	"context"

	"github.com/MrEthical07/goAccount/account"
	"github.com/MrEthical07/goAccount/internal"
	internalflows "github.com/MrEthical07/goAccount/internal/flows"
)

// RegisterRequest is the input of Register. PasswordConfirm must equal Password.
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FullName        string `json:"full_name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// Register creates an active, unverified account and sends its verification
// token through the configured notifier once the account is stored.
//
// It returns *ValidationError for malformed input, *ConflictError when the
// username or email is taken (including a race lost at insert), and
// ErrRateLimited when the registration throttle rejects the caller.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*account.Account, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return internalflows.RunRegister(ctx, internalflows.RegisterRequest(req), e.registerFlowDeps())
}

func (e *Engine) registerFlowDeps() internalflows.RegisterDeps {
	return internalflows.RegisterDeps{
		Rules:               e.passwordRules(),
		Now:                 e.now,
		ClientIPFromContext: clientIPFromContext,
		EnforceLimiter:      e.registrationLimiter.Enforce,
		MapLimiterError:     e.mapLimiterError,
		NewID:               newAccountID,
		NewToken:            internal.NewOpaqueToken,
		HashPassword:        e.hashPassword,
		GetByUsername:       e.store.GetByUsername,
		GetByEmail:          e.store.GetByEmail,
		Create:              e.store.Create,
		NotifyVerification:  e.notifyVerification,
		Internal:            e.internalError,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit:     e.emitAudit,
		EmitRateLimit: e.emitRateLimit,
		Metrics: internalflows.RegisterMetrics{
			RegisterSuccess:     int(MetricRegisterSuccess),
			RegisterConflict:    int(MetricRegisterConflict),
			RegisterRateLimited: int(MetricRegisterRateLimited),
			RegisterInvalid:     int(MetricRegisterInvalid),
		},
		Events: internalflows.RegisterEvents{
			Register: auditEventRegister,
		},
		Errors: internalflows.RegisterErrors{
			EngineNotReady: ErrEngineNotReady,
			RateLimited:    ErrRateLimited,
			Invalid:        invalidInput,
			Conflict:       conflictOn,
		},
	}
}
