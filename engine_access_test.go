package goAccount

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goAccount/account"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	id := env.registerVerified(t, "alice", "a@x.com", "Secret123")

	acc, err := env.engine.Authenticate(ctx, "alice", "Secret123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	tok, err := env.engine.IssueAccessToken(ctx, acc)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if tok.Type != "bearer" || tok.Token == "" {
		t.Fatalf("unexpected token %+v", tok)
	}
	if want := env.clock.Now().Add(30 * time.Minute); !tok.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, tok.ExpiresAt)
	}

	resolved, err := env.engine.AccountFromAccessToken(ctx, tok.Token)
	if err != nil {
		t.Fatalf("AccountFromAccessToken: %v", err)
	}
	if resolved.ID != id {
		t.Fatalf("expected account %s, got %s", id, resolved.ID)
	}
	if err := env.engine.CheckAccess(resolved, RequireActive|RequireVerified); err != nil {
		t.Fatalf("CheckAccess: %v", err)
	}

	env.clock.Advance(31 * time.Minute)
	if _, err := env.engine.AccountFromAccessToken(ctx, tok.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestAccessTokenForDeletedAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	id := env.register(t, "alice", "a@x.com", "Secret123")

	acc, err := env.engine.GetAccount(ctx, id)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	tok, err := env.engine.IssueAccessToken(ctx, acc)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	if err := env.engine.DeleteAccount(ctx, id); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if _, err := env.engine.AccountFromAccessToken(ctx, tok.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for deleted subject, got %v", err)
	}
	if _, err := env.engine.GetAccount(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := env.engine.DeleteAccount(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricAccessTokenRejected]; got != 1 {
		t.Fatalf("expected one rejected token, got %d", got)
	}
}

func TestAccessTokenAfterUsernameReassigned(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	aliceID := env.registerVerified(t, "alice", "a@x.com", "Secret123")

	acc, err := env.engine.GetAccount(ctx, aliceID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	tok, err := env.engine.IssueAccessToken(ctx, acc)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	if _, err := env.engine.UpdateProfile(ctx, aliceID, ProfileUpdate{Username: strPtr("alice2")}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	carolID := env.register(t, "alice", "carol@x.com", "Secret123")

	resolved, err := env.engine.AccountFromAccessToken(ctx, tok.Token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got account %v err %v", resolved, err)
	}
	if resolved != nil {
		t.Fatalf("old token resolved to %s (carol=%s)", resolved.ID, carolID)
	}

	renamed, err := env.engine.GetAccount(ctx, aliceID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	fresh, err := env.engine.IssueAccessToken(ctx, renamed)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if got, err := env.engine.AccountFromAccessToken(ctx, fresh.Token); err != nil || got.ID != aliceID {
		t.Fatalf("expected fresh token to resolve to alice, got %v err %v", got, err)
	}
}

func TestAccessTokenGarbage(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, token := range []string{"", "not.a.jwt", "a.b.c"} {
		if _, err := env.engine.AccountFromAccessToken(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestCheckAccessOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	now := env.clock.Now()
	acc, err := account.New("id-1", "alice", "a@x.com", "", "digest", now)
	if err != nil {
		t.Fatalf("account.New: %v", err)
	}
	acc.SetLock(account.Locked, now)

	if err := env.engine.CheckAccess(acc, RequireActive|RequireVerified); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked first, got %v", err)
	}
	if err := env.engine.CheckAccess(acc, RequireVerified); !errors.Is(err, ErrNotVerified) {
		t.Fatalf("expected ErrNotVerified, got %v", err)
	}
	if err := env.engine.CheckAccess(acc, 0); err != nil {
		t.Fatalf("no requirement should pass, got %v", err)
	}
	if err := env.engine.CheckAccess(nil, 0); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("nil account should be rejected, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	id := env.registerVerified(t, "alice", "a@x.com", "Secret123")
	env.register(t, "bob", "b@x.com", "Secret123")

	updated, err := env.engine.UpdateProfile(ctx, id, ProfileUpdate{
		Email:    strPtr("alice@x.com"),
		FullName: strPtr("Alice Liddell"),
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.Email != "alice@x.com" || updated.FullName != "Alice Liddell" || updated.Username != "alice" {
		t.Fatalf("unexpected profile %+v", updated)
	}
	if !updated.IsVerified() {
		t.Fatal("changing the email must not reset verification")
	}
	if _, err := env.engine.Authenticate(ctx, "alice@x.com", "Secret123"); err != nil {
		t.Fatalf("login by new email failed: %v", err)
	}

	_, err = env.engine.UpdateProfile(ctx, id, ProfileUpdate{Email: strPtr("b@x.com")})
	var cerr *ConflictError
	if !errors.As(err, &cerr) || cerr.Field != "email" {
		t.Fatalf("expected email conflict, got %v", err)
	}
	_, err = env.engine.UpdateProfile(ctx, id, ProfileUpdate{Username: strPtr("bob")})
	if !errors.As(err, &cerr) || cerr.Field != "username" {
		t.Fatalf("expected username conflict, got %v", err)
	}

	if _, err := env.engine.UpdateProfile(ctx, id, ProfileUpdate{Email: strPtr("broken")}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := env.engine.UpdateProfile(ctx, "missing", ProfileUpdate{FullName: strPtr("x")}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAccountsPaging(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, name := range []string{"a1", "a2", "a3"} {
		env.register(t, name, name+"@x.com", "Secret123")
		env.clock.Advance(time.Second)
	}

	page, err := env.engine.ListAccounts(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(page) != 1 || page[0].Username != "a2" {
		t.Fatalf("unexpected page %v", page)
	}

	all, err := env.engine.ListAccounts(context.Background(), -5, 5000)
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 accounts, got %d", len(all))
	}
}

func TestNilEngineNotReady(t *testing.T) {
	var e *Engine
	if _, err := e.Register(context.Background(), RegisterRequest{}); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.Authenticate(context.Background(), "a", "b"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if err := e.RequestPasswordReset(context.Background(), "a@x.com"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	e.Close()
	if e.AuditDropped() != 0 {
		t.Fatal("nil engine reports no drops")
	}
}

func TestBuildRequiresStoreAndSecret(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected missing store to fail")
	}

	cfg := testConfig()
	cfg.Token.Secret = "short"
	if _, err := New().WithConfig(cfg).WithStore(nil).Build(); err == nil {
		t.Fatal("expected short secret to fail")
	}

	b := New().WithConfig(testConfig()).WithStore(newTestEnv(t, nil).store)
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected a builder to be single use")
	}
}
