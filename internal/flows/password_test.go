package flows

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRequestPasswordResetIsUniform(t *testing.T) {
	h := newHarness(t)
	acc := h.register("alice", "a@x.com", "Secret123")
	h.notified = nil

	if err := RunRequestPasswordReset(context.Background(), "nobody@x.com", h.requestResetDeps()); err != nil {
		t.Fatalf("unknown email must succeed silently, got %v", err)
	}
	if len(h.notified) != 0 {
		t.Fatal("unknown email must not notify")
	}

	if err := RunRequestPasswordReset(context.Background(), "a@x.com", h.requestResetDeps()); err != nil {
		t.Fatalf("known email: %v", err)
	}
	stored, _ := h.store.GetByID(context.Background(), acc.ID)
	window, ok := stored.Recovery()
	if !ok {
		t.Fatal("expected an open recovery window")
	}
	if window.Token != h.lastToken() {
		t.Fatalf("notified token %q differs from stored %q", h.lastToken(), window.Token)
	}
	if want := h.now.Add(24 * time.Hour); !window.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, window.ExpiresAt)
	}
}

func TestRequestPasswordResetThrottledStillUniform(t *testing.T) {
	h := newHarness(t)
	h.register("alice", "a@x.com", "Secret123")
	h.notified = nil

	deps := h.requestResetDeps()
	deps.CheckRequest = func(context.Context, string, string) error { return errLimited }
	if err := RunRequestPasswordReset(context.Background(), "a@x.com", deps); err != nil {
		t.Fatalf("throttled request must look like success, got %v", err)
	}
	if len(h.notified) != 0 {
		t.Fatal("throttled request must not issue a token")
	}

	if err := RunRequestPasswordReset(context.Background(), "nonsense", h.requestResetDeps()); err == nil {
		t.Fatal("expected malformed email to be rejected")
	}
}

func TestCompletePasswordReset(t *testing.T) {
	h := newHarness(t)
	acc := h.register("alice", "a@x.com", "Secret123")
	if err := RunRequestPasswordReset(context.Background(), "a@x.com", h.requestResetDeps()); err != nil {
		t.Fatalf("request: %v", err)
	}
	token := h.lastToken()

	if _, err := RunCompletePasswordReset(context.Background(), token, "Secret123", "Secret123", h.completeResetDeps()); !errors.Is(err, errUnchanged) {
		t.Fatalf("expected password unchanged, got %v", err)
	}
	if _, err := RunCompletePasswordReset(context.Background(), token, "NewSecret1", "NewSecret2", h.completeResetDeps()); err == nil {
		t.Fatal("expected confirmation mismatch to fail")
	}

	updated, err := RunCompletePasswordReset(context.Background(), token, "NewSecret1", "NewSecret1", h.completeResetDeps())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if updated.ID != acc.ID || updated.PasswordHash != "fake$NewSecret1" {
		t.Fatalf("unexpected account after reset: %s %q", updated.ID, updated.PasswordHash)
	}
	if _, ok := updated.Recovery(); ok {
		t.Fatal("recovery window must be closed after use")
	}

	if _, err := RunCompletePasswordReset(context.Background(), token, "Another12", "Another12", h.completeResetDeps()); !errors.Is(err, errInvalidTok) {
		t.Fatalf("consumed token must be invalid, got %v", err)
	}
}

func TestCompletePasswordResetRejectsExpiredToken(t *testing.T) {
	h := newHarness(t)
	h.register("alice", "a@x.com", "Secret123")
	if err := RunRequestPasswordReset(context.Background(), "a@x.com", h.requestResetDeps()); err != nil {
		t.Fatalf("request: %v", err)
	}
	token := h.lastToken()

	h.now = h.now.Add(24 * time.Hour)
	if _, err := RunCompletePasswordReset(context.Background(), token, "NewSecret1", "NewSecret1", h.completeResetDeps()); !errors.Is(err, errInvalidTok) {
		t.Fatalf("expected expired token to be invalid, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	acc := h.register("alice", "a@x.com", "Secret123")

	if _, err := RunChangePassword(context.Background(), acc.ID, "wrongpw", "NewSecret1", "NewSecret1", h.changeDeps()); !errors.Is(err, errIncorrect) {
		t.Fatalf("expected incorrect credentials, got %v", err)
	}
	if _, err := RunChangePassword(context.Background(), "acc-missing", "Secret123", "NewSecret1", "NewSecret1", h.changeDeps()); !errors.Is(err, errMissing) {
		t.Fatalf("expected not found, got %v", err)
	}

	updated, err := RunChangePassword(context.Background(), acc.ID, "Secret123", "NewSecret1", "NewSecret1", h.changeDeps())
	if err != nil {
		t.Fatalf("change: %v", err)
	}
	if updated.PasswordHash != "fake$NewSecret1" {
		t.Fatalf("expected new digest, got %q", updated.PasswordHash)
	}
}

func TestChangePasswordReuseGuardIsOptIn(t *testing.T) {
	h := newHarness(t)
	acc := h.register("alice", "a@x.com", "Secret123")

	if _, err := RunChangePassword(context.Background(), acc.ID, "Secret123", "Secret123", "Secret123", h.changeDeps()); err != nil {
		t.Fatalf("same password must be accepted by default, got %v", err)
	}

	deps := h.changeDeps()
	deps.RejectReuse = true
	if _, err := RunChangePassword(context.Background(), acc.ID, "Secret123", "Secret123", "Secret123", deps); !errors.Is(err, errUnchanged) {
		t.Fatalf("expected password unchanged with reuse guard, got %v", err)
	}
}
