package flows

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/goAccount/account"
)

func TestRegisterCreatesUnverifiedAccountAndNotifies(t *testing.T) {
	h := newHarness(t)
	acc := h.register("alice", " a@x.com ", "Secret123")

	if acc.IsVerified() || !acc.IsActive() {
		t.Fatalf("expected unverified active account, got %s/%s", acc.Verification(), acc.Lock())
	}
	if acc.Email != "a@x.com" {
		t.Fatalf("expected trimmed email, got %q", acc.Email)
	}
	if acc.PasswordHash != "fake$Secret123" {
		t.Fatalf("password stored without hashing: %q", acc.PasswordHash)
	}
	pending, ok := acc.PendingVerificationToken()
	if !ok || pending != h.lastToken() {
		t.Fatalf("notified token %q does not match pending %q", h.lastToken(), pending)
	}
	if _, err := h.store.GetByUsername(context.Background(), "alice"); err != nil {
		t.Fatalf("account not persisted: %v", err)
	}
	if got := h.audits[len(h.audits)-1]; got.event != "register" || !got.success {
		t.Fatalf("unexpected audit %+v", got)
	}
}

func TestRegisterRejectsTakenUsernameAndEmail(t *testing.T) {
	h := newHarness(t)
	h.register("alice", "a@x.com", "Secret123")

	_, err := RunRegister(context.Background(), RegisterRequest{
		Username: "alice", Email: "b@x.com", Password: "Secret123", PasswordConfirm: "Secret123",
	}, h.registerDeps())
	expectConflict(t, err, account.FieldUsername)

	_, err = RunRegister(context.Background(), RegisterRequest{
		Username: "bob", Email: "a@x.com", Password: "Secret123", PasswordConfirm: "Secret123",
	}, h.registerDeps())
	expectConflict(t, err, account.FieldEmail)

	if len(h.notified) != 1 {
		t.Fatalf("conflicting registrations must not notify, got %d notifications", len(h.notified))
	}
}

func TestRegisterMapsRejectedInsertToConflict(t *testing.T) {
	h := newHarness(t)
	h.register("alice", "a@x.com", "Secret123")

	// Pre-checks that miss the collision, as a concurrent request would.
	deps := h.registerDeps()
	deps.GetByUsername = notFound
	deps.GetByEmail = notFound

	_, err := RunRegister(context.Background(), RegisterRequest{
		Username: "alice2", Email: "a@x.com", Password: "Secret123", PasswordConfirm: "Secret123",
	}, deps)
	expectConflict(t, err, account.FieldEmail)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		name   string
		req    RegisterRequest
		field  string
		reason string
	}{
		{"mismatch", RegisterRequest{Username: "alice", Email: "a@x.com", Password: "Secret123", PasswordConfirm: "Secret124"}, FieldPasswordConfirm, ReasonMismatch},
		{"short", RegisterRequest{Username: "alice", Email: "a@x.com", Password: "short", PasswordConfirm: "short"}, FieldPassword, ReasonTooShort},
		{"bad email", RegisterRequest{Username: "alice", Email: "not-an-email", Password: "Secret123", PasswordConfirm: "Secret123"}, FieldEmail, ReasonInvalidFormat},
		{"no username", RegisterRequest{Email: "a@x.com", Password: "Secret123", PasswordConfirm: "Secret123"}, FieldUsername, ReasonRequired},
		{"spaced username", RegisterRequest{Username: "al ice", Email: "a@x.com", Password: "Secret123", PasswordConfirm: "Secret123"}, FieldUsername, ReasonInvalidFormat},
		{"email-shaped username", RegisterRequest{Username: "b@x.com", Email: "a@x.com", Password: "Secret123", PasswordConfirm: "Secret123"}, FieldUsername, ReasonInvalidFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := RunRegister(context.Background(), tc.req, h.registerDeps())
			expectInvalid(t, err, tc.field, tc.reason)
		})
	}
	if h.ids != 0 {
		t.Fatalf("invalid requests must not reach id assignment")
	}
}

func TestRegisterRateLimited(t *testing.T) {
	h := newHarness(t)
	deps := h.registerDeps()
	deps.EnforceLimiter = func(context.Context, string, string) error { return errLimited }

	_, err := RunRegister(context.Background(), RegisterRequest{
		Username: "alice", Email: "a@x.com", Password: "Secret123", PasswordConfirm: "Secret123",
	}, deps)
	if !errors.Is(err, errLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if len(h.limited) != 1 || h.limited[0] != "register" {
		t.Fatalf("expected register rate limit event, got %v", h.limited)
	}
	if _, err := h.store.GetByUsername(context.Background(), "alice"); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("throttled registration must not persist, got %v", err)
	}
}

func TestRegisterStoreFailureIsInternal(t *testing.T) {
	h := newHarness(t)
	deps := h.registerDeps()
	deps.Create = func(context.Context, *account.Account) error { return errors.New("disk on fire") }

	_, err := RunRegister(context.Background(), RegisterRequest{
		Username: "alice", Email: "a@x.com", Password: "Secret123", PasswordConfirm: "Secret123",
	}, deps)
	if !errors.Is(err, errInternalTest) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if len(h.notified) != 0 {
		t.Fatal("failed registration must not notify")
	}
}

func TestRegisterRequiresDependencies(t *testing.T) {
	_, err := RunRegister(context.Background(), RegisterRequest{}, RegisterDeps{
		Errors: RegisterErrors{EngineNotReady: errNotReady},
	})
	if !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}
