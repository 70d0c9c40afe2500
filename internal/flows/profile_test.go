package flows

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/goAccount/account"
)

func ptr(s string) *string { return &s }

func TestUpdateProfileChangesOnlySuppliedFields(t *testing.T) {
	h := newHarness(t)
	acc := h.register("alice", "a@x.com", "Secret123")

	updated, err := RunUpdateProfile(context.Background(), acc.ID, ProfilePatch{FullName: ptr("Alice Liddell")}, h.profileDeps())
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.FullName != "Alice Liddell" || updated.Username != "alice" || updated.Email != "a@x.com" {
		t.Fatalf("unexpected profile %q %q %q", updated.FullName, updated.Username, updated.Email)
	}

	updated, err = RunUpdateProfile(context.Background(), acc.ID, ProfilePatch{Username: ptr("alice2"), Email: ptr("a@x.com")}, h.profileDeps())
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if updated.Username != "alice2" || updated.FullName != "Alice Liddell" {
		t.Fatalf("unexpected profile after rename %q %q", updated.Username, updated.FullName)
	}
	if _, err := h.store.GetByUsername(context.Background(), "alice"); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("old username must be released, got %v", err)
	}
}

func TestUpdateProfileConflicts(t *testing.T) {
	h := newHarness(t)
	alice := h.register("alice", "a@x.com", "Secret123")
	h.register("bob", "b@x.com", "Secret123")

	_, err := RunUpdateProfile(context.Background(), alice.ID, ProfilePatch{Username: ptr("bob")}, h.profileDeps())
	expectConflict(t, err, account.FieldUsername)

	_, err = RunUpdateProfile(context.Background(), alice.ID, ProfilePatch{Email: ptr("b@x.com")}, h.profileDeps())
	expectConflict(t, err, account.FieldEmail)

	deps := h.profileDeps()
	deps.GetByEmail = notFound
	_, err = RunUpdateProfile(context.Background(), alice.ID, ProfilePatch{Email: ptr("b@x.com")}, deps)
	expectConflict(t, err, account.FieldEmail)

	stored, _ := h.store.GetByID(context.Background(), alice.ID)
	if stored.Email != "a@x.com" {
		t.Fatalf("conflicting update must not persist, got %q", stored.Email)
	}
}

func TestUpdateProfileValidationAndMissing(t *testing.T) {
	h := newHarness(t)
	acc := h.register("alice", "a@x.com", "Secret123")

	_, err := RunUpdateProfile(context.Background(), acc.ID, ProfilePatch{Email: ptr("broken")}, h.profileDeps())
	expectInvalid(t, err, FieldEmail, ReasonInvalidFormat)

	_, err = RunUpdateProfile(context.Background(), acc.ID, ProfilePatch{Username: ptr("")}, h.profileDeps())
	expectInvalid(t, err, FieldUsername, ReasonRequired)

	if _, err := RunUpdateProfile(context.Background(), "acc-missing", ProfilePatch{}, h.profileDeps()); !errors.Is(err, errMissing) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetAccountLock(t *testing.T) {
	h := newHarness(t)
	acc := h.register("alice", "a@x.com", "Secret123")

	var reset []string
	deps := SetAccountLockDeps{
		Now:    h.clock,
		Update: h.store.Update,
		ResetLogin: func(_ context.Context, identifier string) error {
			reset = append(reset, identifier)
			return nil
		},
		EmitAudit:         h.audit,
		AuditEvent:        "account_status",
		ErrEngineNotReady: errNotReady,
		ErrNotFound:       errMissing,
	}

	locked, err := RunSetAccountLock(context.Background(), acc.ID, account.Locked, deps)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if locked.IsActive() {
		t.Fatal("expected locked account")
	}
	if len(reset) != 0 {
		t.Fatal("locking must not reset login counters")
	}

	if _, err := RunSetAccountLock(context.Background(), acc.ID, account.Active, deps); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if len(reset) != 2 {
		t.Fatalf("expected counters reset for username and email, got %v", reset)
	}
	last := h.audits[len(h.audits)-1]
	if last.meta["from"] != "locked" || last.meta["to"] != "active" {
		t.Fatalf("unexpected audit metadata %v", last.meta)
	}

	if _, err := RunSetAccountLock(context.Background(), "acc-missing", account.Locked, deps); !errors.Is(err, errMissing) {
		t.Fatalf("expected not found, got %v", err)
	}
}
