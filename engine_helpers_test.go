package goAccount

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goAccount/notify"
	"github.com/MrEthical07/goAccount/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-test-secret-test-secret!"

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = testSecret
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Notify.Async = false
	cfg.Notify.FrontendURL = "https://app.example.com"
	cfg.Metrics.Enabled = true
	return cfg
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type outbox struct {
	mu   sync.Mutex
	msgs []notify.Message
	fail error
}

func (o *outbox) Notifier() notify.Notifier {
	return notify.Func(func(_ context.Context, msg notify.Message) error {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.msgs = append(o.msgs, msg)
		return o.fail
	})
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.msgs)
}

func (o *outbox) last(t testing.TB, kind string) notify.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		if o.msgs[i].Kind == kind {
			return o.msgs[i]
		}
	}
	t.Fatalf("no %s notification sent", kind)
	return notify.Message{}
}

type testEnv struct {
	engine *Engine
	store  *memory.Store
	clock  *testClock
	outbox *outbox
	redis  *miniredis.Miniredis
}

type envOption func(*Builder, *testEnv)

func withRedis(t *testing.T) envOption {
	return func(b *Builder, env *testEnv) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		env.redis = mr
		b.WithRedis(client)
	}
}

func withAuditSink(sink AuditSink) envOption {
	return func(b *Builder, _ *testEnv) {
		b.WithAuditSink(sink)
	}
}

func newTestEnv(t testing.TB, mutate func(*Config), opts ...envOption) *testEnv {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	env := &testEnv{
		store:  memory.New(),
		clock:  newTestClock(),
		outbox: &outbox{},
	}
	b := New().
		WithConfig(cfg).
		WithStore(env.store).
		WithNotifier(env.outbox.Notifier()).
		WithClock(env.clock.Now)
	for _, opt := range opts {
		opt(b, env)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func (env *testEnv) register(t testing.TB, username, email, password string) string {
	t.Helper()
	acc, err := env.engine.Register(context.Background(), RegisterRequest{
		Username:        username,
		Email:           email,
		FullName:        "Test " + username,
		Password:        password,
		PasswordConfirm: password,
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", username, err)
	}
	return acc.ID
}

func (env *testEnv) registerVerified(t testing.TB, username, email, password string) string {
	t.Helper()
	id := env.register(t, username, email, password)
	token := env.outbox.last(t, notify.KindVerification).Token
	if _, err := env.engine.VerifyEmail(context.Background(), token); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	return id
}

func strPtr(s string) *string { return &s }
