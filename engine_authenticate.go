package goAccount

import (
	"context"
	"time"

	"github.com/MrEthical07/goAccount/account"
	internalflows "github.com/MrEthical07/goAccount/internal/flows"
)

// Authenticate resolves identifier as a username or an email and checks the
// password. Unknown identifiers and wrong passwords both return
// ErrIncorrectCredentials. ErrAccountLocked is only returned after the
// password has been proven.
//
// A stored digest produced with weaker parameters or a legacy algorithm is
// rehashed on success when Password.UpgradeOnLogin is set.
func (e *Engine) Authenticate(ctx context.Context, identifier, password string) (*account.Account, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() {
			e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
		}()
	}

	return internalflows.RunAuthenticate(ctx, identifier, password, e.authenticateFlowDeps())
}

func (e *Engine) authenticateFlowDeps() internalflows.AuthenticateDeps {
	return internalflows.AuthenticateDeps{
		Now:                  e.now,
		ClientIPFromContext:  clientIPFromContext,
		GetByUsernameOrEmail: e.store.GetByUsernameOrEmail,
		Update:               e.store.Update,
		VerifyPassword:       e.verifyPassword,
		DummyVerify:          e.dummyVerify,
		NeedsRehash:          e.needsRehash,
		HashPassword:         e.hashPassword,
		CheckLogin:           e.rateLimiter.CheckLogin,
		RecordLoginFailure:   e.rateLimiter.RecordLoginFailure,
		ResetLogin:           e.rateLimiter.ResetLogin,
		MapLimiterError:      e.mapLimiterError,
		OnRehashError: func(ctx context.Context, accountID string, err error) {
			e.logger.Warn(ctx, "password rehash skipped", "account_id", accountID, "error", err)
		},
		Internal: e.internalError,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit:     e.emitAudit,
		EmitRateLimit: e.emitRateLimit,
		Metrics: internalflows.AuthenticateMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			LoginLocked:      int(MetricLoginLocked),
			LoginRateLimited: int(MetricLoginRateLimited),
			PasswordRehashed: int(MetricPasswordRehashed),
		},
		Events: internalflows.AuthenticateEvents{
			LoginSuccess:     auditEventLoginSuccess,
			LoginFailure:     auditEventLoginFailure,
			LoginRateLimited: auditEventLoginRateLimited,
		},
		Errors: internalflows.AuthenticateErrors{
			EngineNotReady:       ErrEngineNotReady,
			IncorrectCredentials: ErrIncorrectCredentials,
			AccountLocked:        ErrAccountLocked,
			RateLimited:          ErrRateLimited,
		},
	}
}
