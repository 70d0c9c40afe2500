// Package storetest is a conformance suite every account.Store must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goAccount/account"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) account.Store

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// NewAccount builds an unverified account with a pending verification token.
func NewAccount(t *testing.T, n int) *account.Account {
	t.Helper()
	acc, err := account.New(
		fmt.Sprintf("00000000-0000-4000-8000-%012d", n),
		fmt.Sprintf("user%d", n),
		fmt.Sprintf("user%d@example.com", n),
		fmt.Sprintf("User %d", n),
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		base.Add(time.Duration(n)*time.Second),
	)
	require.NoError(t, err)
	require.NoError(t, acc.IssueVerificationToken(fmt.Sprintf("verify-token-%d", n), acc.CreatedAt))
	return acc
}

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndLookup", func(t *testing.T) { testCreateAndLookup(t, newStore(t)) })
	t.Run("DuplicateUsernameAndEmail", func(t *testing.T) { testDuplicates(t, newStore(t)) })
	t.Run("UpdateAppliesMutation", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("UpdateAbortsOnCallbackError", func(t *testing.T) { testUpdateAbort(t, newStore(t)) })
	t.Run("UpdateEnforcesUniqueness", func(t *testing.T) { testUpdateUnique(t, newStore(t)) })
	t.Run("TokenLookups", func(t *testing.T) { testTokenLookups(t, newStore(t)) })
	t.Run("DeleteAndList", func(t *testing.T) { testDeleteAndList(t, newStore(t)) })
	t.Run("ConcurrentCreateSingleWinner", func(t *testing.T) { testConcurrentCreate(t, newStore(t)) })
}

func testCreateAndLookup(t *testing.T, s account.Store) {
	ctx := context.Background()
	acc := NewAccount(t, 1)
	require.NoError(t, s.Create(ctx, acc))

	for name, lookup := range map[string]func() (*account.Account, error){
		"id":             func() (*account.Account, error) { return s.GetByID(ctx, acc.ID) },
		"username":       func() (*account.Account, error) { return s.GetByUsername(ctx, "user1") },
		"email":          func() (*account.Account, error) { return s.GetByEmail(ctx, "user1@example.com") },
		"identifier/usr": func() (*account.Account, error) { return s.GetByUsernameOrEmail(ctx, "user1") },
		"identifier/eml": func() (*account.Account, error) { return s.GetByUsernameOrEmail(ctx, "user1@example.com") },
	} {
		got, err := lookup()
		require.NoError(t, err, name)
		assert.Equal(t, acc.ID, got.ID, name)
		assert.Equal(t, acc.Snapshot().PasswordHash, got.PasswordHash, name)
		assert.False(t, got.IsVerified(), name)
		assert.True(t, got.IsActive(), name)
	}

	_, err := s.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, account.ErrNotFound)
	_, err = s.GetByUsernameOrEmail(ctx, "nobody")
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func testDuplicates(t *testing.T, s account.Store) {
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, NewAccount(t, 1)))

	sameUsername := NewAccount(t, 2)
	sameUsername.Username = "user1"
	err := s.Create(ctx, sameUsername)
	require.ErrorIs(t, err, account.ErrDuplicate)
	field, _ := account.DuplicateField(err)
	assert.Equal(t, account.FieldUsername, field)

	sameEmail := NewAccount(t, 3)
	sameEmail.Email = "user1@example.com"
	err = s.Create(ctx, sameEmail)
	require.ErrorIs(t, err, account.ErrDuplicate)
	field, _ = account.DuplicateField(err)
	assert.Equal(t, account.FieldEmail, field)

	list, err := s.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func testUpdate(t *testing.T, s account.Store) {
	ctx := context.Background()
	acc := NewAccount(t, 1)
	require.NoError(t, s.Create(ctx, acc))

	later := base.Add(time.Hour)
	updated, err := s.Update(ctx, acc.ID, func(a *account.Account) error {
		if err := a.ConfirmVerification("verify-token-1", later); err != nil {
			return err
		}
		return a.Rename("renamed", later)
	})
	require.NoError(t, err)
	assert.True(t, updated.IsVerified())
	assert.Equal(t, "renamed", updated.Username)

	got, err := s.GetByUsername(ctx, "renamed")
	require.NoError(t, err)
	assert.True(t, got.IsVerified())
	assert.True(t, got.UpdatedAt.Equal(later))
	_, ok := got.PendingVerificationToken()
	assert.False(t, ok)

	replay, err := s.GetByVerificationToken(ctx, "verify-token-1")
	require.NoError(t, err, "consumed token must still resolve to its account")
	assert.True(t, replay.IsVerified())

	_, err = s.GetByUsername(ctx, "user1")
	assert.ErrorIs(t, err, account.ErrNotFound)

	_, err = s.Update(ctx, "missing", func(*account.Account) error { return nil })
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func testUpdateAbort(t *testing.T, s account.Store) {
	ctx := context.Background()
	acc := NewAccount(t, 1)
	require.NoError(t, s.Create(ctx, acc))

	boom := errors.New("boom")
	_, err := s.Update(ctx, acc.ID, func(a *account.Account) error {
		_ = a.Rename("changed", base)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "user1", got.Username)
}

func testUpdateUnique(t *testing.T, s account.Store) {
	ctx := context.Background()
	a := NewAccount(t, 1)
	b := NewAccount(t, 2)
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))

	_, err := s.Update(ctx, b.ID, func(acc *account.Account) error {
		return acc.ChangeEmail(a.Email, base)
	})
	require.ErrorIs(t, err, account.ErrDuplicate)
	field, _ := account.DuplicateField(err)
	assert.Equal(t, account.FieldEmail, field)

	_, err = s.Update(ctx, b.ID, func(acc *account.Account) error {
		return acc.ChangeEmail(b.Email, base)
	})
	assert.NoError(t, err, "keeping its own email must not conflict")
}

func testTokenLookups(t *testing.T, s account.Store) {
	ctx := context.Background()
	acc := NewAccount(t, 1)
	require.NoError(t, s.Create(ctx, acc))

	got, err := s.GetByVerificationToken(ctx, "verify-token-1")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)
	_, err = s.GetByVerificationToken(ctx, "nope")
	assert.ErrorIs(t, err, account.ErrNotFound)
	_, err = s.GetByVerificationToken(ctx, "")
	assert.ErrorIs(t, err, account.ErrNotFound)

	expires := base.Add(24 * time.Hour)
	_, err = s.Update(ctx, acc.ID, func(a *account.Account) error {
		return a.OpenRecovery("reset-token-1", expires, base)
	})
	require.NoError(t, err)

	got, err = s.GetByResetToken(ctx, "reset-token-1", base.Add(time.Hour))
	require.NoError(t, err)
	w, ok := got.Recovery()
	require.True(t, ok)
	assert.True(t, w.ExpiresAt.Equal(expires))

	_, err = s.GetByResetToken(ctx, "reset-token-1", expires)
	assert.ErrorIs(t, err, account.ErrNotFound, "expired window must not match")
	_, err = s.GetByResetToken(ctx, "other", base)
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func testDeleteAndList(t *testing.T, s account.Store) {
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Create(ctx, NewAccount(t, i)))
	}

	page, err := s.List(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "user2", page[0].Username)
	assert.Equal(t, "user3", page[1].Username)

	victim := NewAccount(t, 3)
	require.NoError(t, s.Delete(ctx, victim.ID))
	assert.ErrorIs(t, s.Delete(ctx, victim.ID), account.ErrNotFound)
	_, err = s.GetByVerificationToken(ctx, "verify-token-3")
	assert.ErrorIs(t, err, account.ErrNotFound, "deleted account tokens must not resolve")

	all, err := s.List(ctx, 0, 100)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	// The freed username and email are reusable.
	require.NoError(t, s.Create(ctx, NewAccount(t, 3)))
}

func testConcurrentCreate(t *testing.T, s account.Store) {
	ctx := context.Background()
	const workers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			acc := NewAccount(t, 100+n)
			acc.Username = "racer"
			err := s.Create(ctx, acc)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, account.ErrDuplicate):
				conflicts++
			default:
				t.Errorf("unexpected create error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
}
