package goAccount

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/goAccount/account"
	"github.com/MrEthical07/goAccount/password"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthenticateByUsernameOrEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.register(t, "alice", "a@x.com", "Secret123")

	for _, identifier := range []string{"alice", "a@x.com"} {
		acc, err := env.engine.Authenticate(context.Background(), identifier, "Secret123")
		if err != nil {
			t.Fatalf("Authenticate(%s) failed: %v", identifier, err)
		}
		if acc.ID != id {
			t.Fatalf("Authenticate(%s) returned account %s, want %s", identifier, acc.ID, id)
		}
	}
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "alice", "a@x.com", "Secret123")

	_, wrongPassword := env.engine.Authenticate(context.Background(), "alice", "Secret124")
	_, unknownUser := env.engine.Authenticate(context.Background(), "mallory", "Secret123")
	_, empty := env.engine.Authenticate(context.Background(), "", "")

	for name, err := range map[string]error{"wrong password": wrongPassword, "unknown user": unknownUser, "empty": empty} {
		if err != ErrIncorrectCredentials {
			t.Fatalf("%s: expected ErrIncorrectCredentials, got %v", name, err)
		}
	}
	if PublicMessage(wrongPassword) != "Incorrect username or password" {
		t.Fatalf("unexpected public message %q", PublicMessage(wrongPassword))
	}
}

func TestAuthenticateLockedAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.register(t, "alice", "a@x.com", "Secret123")

	if _, err := env.engine.SetActive(context.Background(), id, false); err != nil {
		t.Fatalf("SetActive(false) failed: %v", err)
	}

	if _, err := env.engine.Authenticate(context.Background(), "alice", "Secret123"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked with correct password, got %v", err)
	}
	if _, err := env.engine.Authenticate(context.Background(), "alice", "Secret124"); !errors.Is(err, ErrIncorrectCredentials) {
		t.Fatalf("lock must not be disclosed before the password is proven, got %v", err)
	}

	if _, err := env.engine.SetActive(context.Background(), id, true); err != nil {
		t.Fatalf("SetActive(true) failed: %v", err)
	}
	if _, err := env.engine.Authenticate(context.Background(), "alice", "Secret123"); err != nil {
		t.Fatalf("expected unlocked account to authenticate, got %v", err)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricAccountLocked] != 1 || snap.Counters[MetricAccountUnlocked] != 1 {
		t.Fatalf("unexpected lock metrics: locked=%d unlocked=%d",
			snap.Counters[MetricAccountLocked], snap.Counters[MetricAccountUnlocked])
	}
}

func TestAuthenticateUnverifiedAccountSucceeds(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "alice", "a@x.com", "Secret123")

	acc, err := env.engine.Authenticate(context.Background(), "alice", "Secret123")
	if err != nil {
		t.Fatalf("unverified accounts may authenticate: %v", err)
	}
	if err := env.engine.CheckAccess(acc, RequireVerified); !errors.Is(err, ErrNotVerified) {
		t.Fatalf("expected ErrNotVerified from CheckAccess, got %v", err)
	}
}

func TestAuthenticateRateLimitedAfterFailures(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.RateLimit.MaxLoginAttempts = 3
	}, withRedis(t))
	id := env.register(t, "alice", "a@x.com", "Secret123")

	for i := 0; i < 3; i++ {
		if _, err := env.engine.Authenticate(context.Background(), "alice", "wrong-pass"); !errors.Is(err, ErrIncorrectCredentials) {
			t.Fatalf("attempt %d: expected ErrIncorrectCredentials, got %v", i, err)
		}
	}
	if _, err := env.engine.Authenticate(context.Background(), "alice", "Secret123"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited after exhausting attempts, got %v", err)
	}

	// Unlocking an account clears its login counters.
	if _, err := env.engine.SetActive(context.Background(), id, false); err != nil {
		t.Fatalf("SetActive(false): %v", err)
	}
	if _, err := env.engine.SetActive(context.Background(), id, true); err != nil {
		t.Fatalf("SetActive(true): %v", err)
	}
	if _, err := env.engine.Authenticate(context.Background(), "alice", "Secret123"); err != nil {
		t.Fatalf("expected counters cleared after unlock, got %v", err)
	}
}

func TestAuthenticateRedisOutageIsInternal(t *testing.T) {
	env := newTestEnv(t, nil, withRedis(t))
	env.register(t, "alice", "a@x.com", "Secret123")
	env.redis.Close()

	if _, err := env.engine.Authenticate(context.Background(), "alice", "Secret123"); !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal while redis is down, got %v", err)
	}
}

func TestAuthenticateUpgradesLegacyDigest(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.register(t, "alice", "a@x.com", "Secret123")

	legacy, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt: %v", err)
	}
	digest, err := legacy.Hash("Secret123")
	if err != nil {
		t.Fatalf("bcrypt hash: %v", err)
	}
	if _, err := env.store.Update(context.Background(), id, func(a *account.Account) error {
		return a.SetPasswordHash(digest, env.clock.Now())
	}); err != nil {
		t.Fatalf("seed legacy digest: %v", err)
	}

	acc, err := env.engine.Authenticate(context.Background(), "alice", "Secret123")
	if err != nil {
		t.Fatalf("legacy digest must still authenticate: %v", err)
	}
	if acc.PasswordHash == digest {
		t.Fatal("expected digest to be upgraded on login")
	}
	if env.engine.MetricsSnapshot().Counters[MetricPasswordRehashed] != 1 {
		t.Fatal("expected rehash to be counted")
	}

	stored, err := env.store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.PasswordHash != acc.PasswordHash {
		t.Fatal("upgraded digest must be persisted")
	}
}

func TestAuthenticateLatencyHistogram(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Metrics.EnableLatencyHistograms = true
	})
	env.register(t, "alice", "a@x.com", "Secret123")
	_, _ = env.engine.Authenticate(context.Background(), "alice", "Secret123")

	var total uint64
	for _, v := range env.engine.MetricsSnapshot().Histograms[MetricAuthenticateLatency] {
		total += v
	}
	if total != 1 {
		t.Fatalf("expected one latency observation, got %d", total)
	}
}
