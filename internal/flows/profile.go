package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccount/account"
)

// ProfilePatch carries the fields to change. Nil means leave as is.
type ProfilePatch struct {
	Username *string
	Email    *string
	FullName *string
}

type ProfileMetrics struct {
	ProfileUpdated  int
	ProfileConflict int
}

type ProfileEvents struct {
	ProfileUpdate string
}

type ProfileErrors struct {
	EngineNotReady error
	NotFound       error
	Invalid        func(field, reason string) error
	Conflict       func(field string) error
}

type UpdateProfileDeps struct {
	Now func() time.Time

	GetByID       func(context.Context, string) (*account.Account, error)
	GetByUsername func(context.Context, string) (*account.Account, error)
	GetByEmail    func(context.Context, string) (*account.Account, error)
	Update        func(context.Context, string, account.MutateFunc) (*account.Account, error)

	Internal  InternalFunc
	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics ProfileMetrics
	Events  ProfileEvents
	Errors  ProfileErrors
}

// RunUpdateProfile applies the supplied fields. A username or email already
// held by another account is a conflict, whether caught up front or by the
// store at commit.
func RunUpdateProfile(ctx context.Context, accountID string, patch ProfilePatch, deps UpdateProfileDeps) (*account.Account, error) {
	normalizeUpdateProfileDeps(&deps)

	if deps.GetByID == nil || deps.GetByUsername == nil || deps.GetByEmail == nil || deps.Update == nil ||
		deps.Errors.Invalid == nil || deps.Errors.Conflict == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if patch.Username != nil {
		if bad := checkUsername(*patch.Username); bad != nil {
			return nil, deps.Errors.Invalid(bad.field, bad.reason)
		}
	}
	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		patch.Email = &email
		if bad := checkEmail(email); bad != nil {
			return nil, deps.Errors.Invalid(bad.field, bad.reason)
		}
	}
	if accountID == "" {
		return nil, deps.Errors.NotFound
	}

	acc, err := deps.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, deps.Errors.NotFound
		}
		return nil, internalOr(ctx, deps.Internal, "update_profile.lookup", err)
	}

	if patch.Username != nil && *patch.Username != acc.Username {
		if err := profilePrecheck(ctx, deps, deps.GetByUsername, *patch.Username, acc.ID, account.FieldUsername); err != nil {
			return nil, err
		}
	}
	if patch.Email != nil && *patch.Email != acc.Email {
		if err := profilePrecheck(ctx, deps, deps.GetByEmail, *patch.Email, acc.ID, account.FieldEmail); err != nil {
			return nil, err
		}
	}

	updated, err := deps.Update(ctx, acc.ID, func(a *account.Account) error {
		now := deps.Now()
		if patch.Username != nil && *patch.Username != a.Username {
			if err := a.Rename(*patch.Username, now); err != nil {
				return err
			}
		}
		if patch.Email != nil && *patch.Email != a.Email {
			if err := a.ChangeEmail(*patch.Email, now); err != nil {
				return err
			}
		}
		if patch.FullName != nil && *patch.FullName != a.FullName {
			a.SetFullName(*patch.FullName, now)
		}
		return nil
	})
	if err != nil {
		if field, ok := account.DuplicateField(err); ok {
			return nil, profileConflict(ctx, deps, acc.ID, field)
		}
		if errors.Is(err, account.ErrNotFound) {
			return nil, deps.Errors.NotFound
		}
		return nil, internalOr(ctx, deps.Internal, "update_profile.update", err)
	}

	deps.MetricInc(deps.Metrics.ProfileUpdated)
	deps.EmitAudit(ctx, deps.Events.ProfileUpdate, true, updated.ID, nil, func() map[string]string {
		meta := map[string]string{}
		if patch.Username != nil {
			meta["username"] = "changed"
		}
		if patch.Email != nil {
			meta["email"] = "changed"
		}
		if patch.FullName != nil {
			meta["full_name"] = "changed"
		}
		return meta
	})
	return updated, nil
}

func profilePrecheck(
	ctx context.Context,
	deps UpdateProfileDeps,
	lookup func(context.Context, string) (*account.Account, error),
	value, selfID, field string,
) error {
	other, err := lookup(ctx, value)
	switch {
	case err == nil && other.ID != selfID:
		return profileConflict(ctx, deps, selfID, field)
	case err == nil, errors.Is(err, account.ErrNotFound):
		return nil
	default:
		return internalOr(ctx, deps.Internal, "update_profile.precheck", err)
	}
}

func profileConflict(ctx context.Context, deps UpdateProfileDeps, accountID, field string) error {
	err := deps.Errors.Conflict(field)
	deps.MetricInc(deps.Metrics.ProfileConflict)
	deps.EmitAudit(ctx, deps.Events.ProfileUpdate, false, accountID, err, func() map[string]string {
		return map[string]string{
			"field": field,
		}
	})
	return err
}

func normalizeUpdateProfileDeps(deps *UpdateProfileDeps) {
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
