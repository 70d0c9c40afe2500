package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goAccount/account"
	"github.com/MrEthical07/goAccount/store/memory"
)

var (
	errNotReady     = errors.New("not ready")
	errIncorrect    = errors.New("incorrect credentials")
	errLocked       = errors.New("locked")
	errLimited      = errors.New("rate limited")
	errInvalidTok   = errors.New("invalid token")
	errAlready      = errors.New("already verified")
	errUnchanged    = errors.New("password unchanged")
	errMissing      = errors.New("not found")
	errInternalTest = errors.New("internal")
)

type invalidError struct{ field, reason string }

func (e *invalidError) Error() string { return "invalid " + e.field + ": " + e.reason }

type conflictError struct{ field string }

func (e *conflictError) Error() string { return "conflict on " + e.field }

func invalid(field, reason string) error { return &invalidError{field: field, reason: reason} }

func conflict(field string) error { return &conflictError{field: field} }

func fakeHash(password string) (string, error) { return "fake$" + password, nil }

func fakeVerify(password, digest string) bool {
	return digest == "fake$"+password || digest == "old$"+password
}

type sent struct {
	accountID string
	token     string
}

type audited struct {
	event   string
	success bool
	meta    map[string]string
}

type harness struct {
	t        *testing.T
	store    *memory.Store
	now      time.Time
	ids      int
	tokens   int
	notified []sent
	audits   []audited
	limited  []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		t:     t,
		store: memory.New(),
		now:   time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (h *harness) clock() time.Time { return h.now }

func (h *harness) newID() (string, error) {
	h.ids++
	return fmt.Sprintf("acc-%02d", h.ids), nil
}

func (h *harness) newToken() (string, error) {
	h.tokens++
	return fmt.Sprintf("tok-%02d", h.tokens), nil
}

func (h *harness) notify(_ context.Context, acc *account.Account, token string) {
	h.notified = append(h.notified, sent{accountID: acc.ID, token: token})
}

func (h *harness) audit(_ context.Context, event string, success bool, _ string, _ error, metadata func() map[string]string) {
	rec := audited{event: event, success: success}
	if metadata != nil {
		rec.meta = metadata()
	}
	h.audits = append(h.audits, rec)
}

func (h *harness) rateLimit(_ context.Context, scope string, _ func() map[string]string) {
	h.limited = append(h.limited, scope)
}

func (h *harness) internal(_ context.Context, _ string, _ error) error { return errInternalTest }

func (h *harness) registerDeps() RegisterDeps {
	return RegisterDeps{
		Rules:              PasswordRules{MinLength: 8},
		Now:                h.clock,
		NewID:              h.newID,
		NewToken:           h.newToken,
		HashPassword:       fakeHash,
		GetByUsername:      h.store.GetByUsername,
		GetByEmail:         h.store.GetByEmail,
		Create:             h.store.Create,
		NotifyVerification: h.notify,
		Internal:           h.internal,
		EmitAudit:          h.audit,
		EmitRateLimit:      h.rateLimit,
		Events:             RegisterEvents{Register: "register"},
		Errors: RegisterErrors{
			EngineNotReady: errNotReady,
			RateLimited:    errLimited,
			Invalid:        invalid,
			Conflict:       conflict,
		},
	}
}

func (h *harness) register(username, email, password string) *account.Account {
	h.t.Helper()
	acc, err := RunRegister(context.Background(), RegisterRequest{
		Username:        username,
		Email:           email,
		Password:        password,
		PasswordConfirm: password,
	}, h.registerDeps())
	if err != nil {
		h.t.Fatalf("register %s: %v", username, err)
	}
	return acc
}

func (h *harness) authenticateDeps() AuthenticateDeps {
	return AuthenticateDeps{
		Now:                  h.clock,
		GetByUsernameOrEmail: h.store.GetByUsernameOrEmail,
		Update:               h.store.Update,
		VerifyPassword:       fakeVerify,
		NeedsRehash:          func(d string) bool { return strings.HasPrefix(d, "old$") },
		HashPassword:         fakeHash,
		Internal:             h.internal,
		EmitAudit:            h.audit,
		EmitRateLimit:        h.rateLimit,
		Events: AuthenticateEvents{
			LoginSuccess:     "login_success",
			LoginFailure:     "login_failure",
			LoginRateLimited: "login_rate_limited",
		},
		Errors: AuthenticateErrors{
			EngineNotReady:       errNotReady,
			IncorrectCredentials: errIncorrect,
			AccountLocked:        errLocked,
			RateLimited:          errLimited,
		},
	}
}

func (h *harness) verificationErrors() VerificationErrors {
	return VerificationErrors{
		EngineNotReady:  errNotReady,
		InvalidToken:    errInvalidTok,
		AlreadyVerified: errAlready,
		NotFound:        errMissing,
		RateLimited:     errLimited,
	}
}

func (h *harness) verifyDeps() VerifyEmailDeps {
	return VerifyEmailDeps{
		Now:                    h.clock,
		GetByVerificationToken: h.store.GetByVerificationToken,
		Update:                 h.store.Update,
		Internal:               h.internal,
		EmitAudit:              h.audit,
		Events:                 VerificationEvents{Verify: "verify", Resend: "resend"},
		Errors:                 h.verificationErrors(),
	}
}

func (h *harness) resendDeps() ResendVerificationDeps {
	return ResendVerificationDeps{
		Now:                h.clock,
		GetByID:            h.store.GetByID,
		Update:             h.store.Update,
		NewToken:           h.newToken,
		NotifyVerification: h.notify,
		Internal:           h.internal,
		EmitAudit:          h.audit,
		EmitRateLimit:      h.rateLimit,
		Events:             VerificationEvents{Verify: "verify", Resend: "resend"},
		Errors:             h.verificationErrors(),
	}
}

func (h *harness) resetErrors() PasswordResetErrors {
	return PasswordResetErrors{
		EngineNotReady:    errNotReady,
		InvalidToken:      errInvalidTok,
		PasswordUnchanged: errUnchanged,
		RateLimited:       errLimited,
		Invalid:           invalid,
	}
}

func (h *harness) requestResetDeps() RequestPasswordResetDeps {
	return RequestPasswordResetDeps{
		ResetTTL:      24 * time.Hour,
		Now:           h.clock,
		GetByEmail:    h.store.GetByEmail,
		Update:        h.store.Update,
		NewToken:      h.newToken,
		NotifyReset:   h.notify,
		Internal:      h.internal,
		EmitAudit:     h.audit,
		EmitRateLimit: h.rateLimit,
		Events:        PasswordResetEvents{ResetRequest: "reset_request", ResetComplete: "reset_complete"},
		Errors:        h.resetErrors(),
	}
}

func (h *harness) completeResetDeps() CompletePasswordResetDeps {
	return CompletePasswordResetDeps{
		Rules:           PasswordRules{MinLength: 8},
		Now:             h.clock,
		GetByResetToken: h.store.GetByResetToken,
		Update:          h.store.Update,
		VerifyPassword:  fakeVerify,
		HashPassword:    fakeHash,
		Internal:        h.internal,
		EmitAudit:       h.audit,
		Events:          PasswordResetEvents{ResetRequest: "reset_request", ResetComplete: "reset_complete"},
		Errors:          h.resetErrors(),
	}
}

func (h *harness) changeDeps() ChangePasswordDeps {
	return ChangePasswordDeps{
		Rules:          PasswordRules{MinLength: 8},
		Now:            h.clock,
		GetByID:        h.store.GetByID,
		Update:         h.store.Update,
		VerifyPassword: fakeVerify,
		HashPassword:   fakeHash,
		Internal:       h.internal,
		EmitAudit:      h.audit,
		Events:         ChangePasswordEvents{Change: "password_change"},
		Errors: ChangePasswordErrors{
			EngineNotReady:       errNotReady,
			IncorrectCredentials: errIncorrect,
			PasswordUnchanged:    errUnchanged,
			NotFound:             errMissing,
			Invalid:              invalid,
		},
	}
}

func (h *harness) profileDeps() UpdateProfileDeps {
	return UpdateProfileDeps{
		Now:           h.clock,
		GetByID:       h.store.GetByID,
		GetByUsername: h.store.GetByUsername,
		GetByEmail:    h.store.GetByEmail,
		Update:        h.store.Update,
		Internal:      h.internal,
		EmitAudit:     h.audit,
		Events:        ProfileEvents{ProfileUpdate: "profile_update"},
		Errors: ProfileErrors{
			EngineNotReady: errNotReady,
			NotFound:       errMissing,
			Invalid:        invalid,
			Conflict:       conflict,
		},
	}
}

func (h *harness) lastToken() string {
	h.t.Helper()
	if len(h.notified) == 0 {
		h.t.Fatal("expected a notification")
	}
	return h.notified[len(h.notified)-1].token
}

func notFound(context.Context, string) (*account.Account, error) {
	return nil, account.ErrNotFound
}

func expectInvalid(t *testing.T, err error, field, reason string) {
	t.Helper()
	var ie *invalidError
	if !errors.As(err, &ie) {
		t.Fatalf("expected validation error on %s, got %v", field, err)
	}
	if ie.field != field || ie.reason != reason {
		t.Fatalf("expected %s/%s, got %s/%s", field, reason, ie.field, ie.reason)
	}
}

func expectConflict(t *testing.T, err error, field string) {
	t.Helper()
	var ce *conflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected conflict on %s, got %v", field, err)
	}
	if ce.field != field {
		t.Fatalf("expected conflict on %s, got %s", field, ce.field)
	}
}
