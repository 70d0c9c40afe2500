package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccount/account"
)

type RegisterRequest struct {
	Username        string
	Email           string
	FullName        string
	Password        string
	PasswordConfirm string
}

type RegisterMetrics struct {
	RegisterSuccess     int
	RegisterConflict    int
	RegisterRateLimited int
	RegisterInvalid     int
}

type RegisterEvents struct {
	Register string
}

type RegisterErrors struct {
	EngineNotReady error
	RateLimited    error
	Invalid        func(field, reason string) error
	Conflict       func(field string) error
}

type RegisterDeps struct {
	Rules PasswordRules

	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string

	EnforceLimiter  func(ctx context.Context, email, ip string) error
	MapLimiterError func(error) error

	NewID        func() (string, error)
	NewToken     func() (string, error)
	HashPassword func(string) (string, error)

	GetByUsername func(context.Context, string) (*account.Account, error)
	GetByEmail    func(context.Context, string) (*account.Account, error)
	Create        func(context.Context, *account.Account) error

	NotifyVerification NotifyFunc
	Internal           InternalFunc

	MetricInc     func(int)
	EmitAudit     AuditFunc
	EmitRateLimit RateLimitFunc

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

// RunRegister creates an unverified, active account and queues its
// verification notification. Uniqueness is pre-checked for a friendly error
// and enforced again by the store on insert.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) (*account.Account, error) {
	normalizeRegisterDeps(&deps)

	if deps.HashPassword == nil || deps.Create == nil || deps.GetByUsername == nil || deps.GetByEmail == nil ||
		deps.NewID == nil || deps.NewToken == nil || deps.Errors.Invalid == nil || deps.Errors.Conflict == nil {
		return nil, deps.Errors.EngineNotReady
	}

	req.Email = normalizeEmail(req.Email)
	bad := checkUsername(req.Username)
	if bad == nil {
		bad = checkEmail(req.Email)
	}
	if bad == nil {
		bad = checkNewPassword(deps.Rules, req.Password, req.PasswordConfirm)
	}
	if bad != nil {
		deps.MetricInc(deps.Metrics.RegisterInvalid)
		err := deps.Errors.Invalid(bad.field, bad.reason)
		deps.EmitAudit(ctx, deps.Events.Register, false, "", err, func() map[string]string {
			return map[string]string{
				"field":  bad.field,
				"reason": bad.reason,
			}
		})
		return nil, err
	}

	ip := deps.ClientIPFromContext(ctx)
	if err := deps.EnforceLimiter(ctx, req.Email, ip); err != nil {
		mapped := deps.MapLimiterError(err)
		if !errors.Is(mapped, deps.Errors.RateLimited) {
			return nil, internalOr(ctx, deps.Internal, "register.limiter", err)
		}
		deps.MetricInc(deps.Metrics.RegisterRateLimited)
		deps.EmitAudit(ctx, deps.Events.Register, false, "", mapped, nil)
		deps.EmitRateLimit(ctx, "register", func() map[string]string {
			return map[string]string{
				"ip": ip,
			}
		})
		return nil, mapped
	}

	if err := registerPrecheck(ctx, req, deps); err != nil {
		return nil, err
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return nil, internalOr(ctx, deps.Internal, "register.hash", err)
	}
	id, err := deps.NewID()
	if err != nil {
		return nil, internalOr(ctx, deps.Internal, "register.id", err)
	}
	token, err := deps.NewToken()
	if err != nil {
		return nil, internalOr(ctx, deps.Internal, "register.token", err)
	}

	now := deps.Now()
	acc, err := account.New(id, req.Username, req.Email, req.FullName, hash, now)
	if err != nil {
		return nil, internalOr(ctx, deps.Internal, "register.build", err)
	}
	if err := acc.IssueVerificationToken(token, now); err != nil {
		return nil, internalOr(ctx, deps.Internal, "register.build", err)
	}

	if err := deps.Create(ctx, acc); err != nil {
		if field, ok := account.DuplicateField(err); ok {
			return nil, registerConflict(ctx, deps, field, "insert")
		}
		return nil, internalOr(ctx, deps.Internal, "register.create", err)
	}

	deps.NotifyVerification(ctx, acc.Clone(), token)
	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.Register, true, acc.ID, nil, func() map[string]string {
		return map[string]string{
			"username": acc.Username,
		}
	})
	return acc, nil
}

// registerPrecheck is the fast path only; a race past it is caught by Create.
func registerPrecheck(ctx context.Context, req RegisterRequest, deps RegisterDeps) error {
	if _, err := deps.GetByUsername(ctx, req.Username); err == nil {
		return registerConflict(ctx, deps, account.FieldUsername, "precheck")
	} else if !errors.Is(err, account.ErrNotFound) {
		return internalOr(ctx, deps.Internal, "register.precheck", err)
	}

	if _, err := deps.GetByEmail(ctx, req.Email); err == nil {
		return registerConflict(ctx, deps, account.FieldEmail, "precheck")
	} else if !errors.Is(err, account.ErrNotFound) {
		return internalOr(ctx, deps.Internal, "register.precheck", err)
	}
	return nil
}

func registerConflict(ctx context.Context, deps RegisterDeps, field, stage string) error {
	err := deps.Errors.Conflict(field)
	deps.MetricInc(deps.Metrics.RegisterConflict)
	deps.EmitAudit(ctx, deps.Events.Register, false, "", err, func() map[string]string {
		return map[string]string{
			"field": field,
			"stage": stage,
		}
	})
	return err
}

func normalizeRegisterDeps(deps *RegisterDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = noClientIP
	}
	if deps.EnforceLimiter == nil {
		deps.EnforceLimiter = func(context.Context, string, string) error { return nil }
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
