// Package memory is an in-process account.Store. A single mutex serialises
// writes and two maps act as the unique indexes for username and email.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/goAccount/account"
	"github.com/MrEthical07/goAccount/internal"
)

type Store struct {
	mu         sync.RWMutex
	byID       map[string]*account.Account
	byUsername map[string]string
	byEmail    map[string]string
}

func New() *Store {
	return &Store{
		byID:       make(map[string]*account.Account),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

var _ account.Store = (*Store)(nil)

func (s *Store) GetByID(ctx context.Context, id string) (*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloneOf(id)
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloneOf(s.byUsername[username])
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloneOf(s.byEmail[email])
}

// GetByUsernameOrEmail prefers a username match.
func (s *Store) GetByUsernameOrEmail(ctx context.Context, identifier string) (*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byUsername[identifier]; ok {
		return s.cloneOf(id)
	}
	return s.cloneOf(s.byEmail[identifier])
}

func (s *Store) GetByVerificationToken(ctx context.Context, token string) (*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, account.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, acc := range s.byID {
		if acc.MatchesVerificationToken(token) {
			return acc.Clone(), nil
		}
	}
	return nil, account.ErrNotFound
}

func (s *Store) GetByResetToken(ctx context.Context, token string, now time.Time) (*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, account.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, acc := range s.byID {
		w, ok := acc.Recovery()
		if ok && acc.RecoveryOpenAt(now) && internal.TokensEqual(w.Token, token) {
			return acc.Clone(), nil
		}
	}
	return nil, account.ErrNotFound
}

func (s *Store) Create(ctx context.Context, acc *account.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[acc.ID]; ok {
		return account.Duplicate("id")
	}
	if err := s.checkUnique("", acc.Username, acc.Email); err != nil {
		return err
	}
	s.put(acc.Clone())
	return nil
}

func (s *Store) Update(ctx context.Context, id string, fn account.MutateFunc) (*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	if err := s.checkUnique(id, next.Username, next.Email); err != nil {
		return nil, err
	}

	delete(s.byUsername, current.Username)
	delete(s.byEmail, current.Email)
	s.put(next)
	return next.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return account.ErrNotFound
	}
	delete(s.byID, id)
	delete(s.byUsername, acc.Username)
	delete(s.byEmail, acc.Email)
	return nil
}

// List orders by creation time, then id, so paging is stable.
func (s *Store) List(ctx context.Context, skip, limit int) ([]*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	all := make([]*account.Account, 0, len(s.byID))
	for _, acc := range s.byID {
		all = append(all, acc.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	if skip < 0 {
		skip = 0
	}
	if skip >= len(all) {
		return []*account.Account{}, nil
	}
	all = all[skip:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// checkUnique must be called with the write lock held. self is the id allowed
// to already own the values.
func (s *Store) checkUnique(self, username, email string) error {
	if owner, ok := s.byUsername[username]; ok && owner != self {
		return account.Duplicate(account.FieldUsername)
	}
	if owner, ok := s.byEmail[email]; ok && owner != self {
		return account.Duplicate(account.FieldEmail)
	}
	return nil
}

func (s *Store) put(acc *account.Account) {
	s.byID[acc.ID] = acc
	s.byUsername[acc.Username] = acc.ID
	s.byEmail[acc.Email] = acc.ID
}

func (s *Store) cloneOf(id string) (*account.Account, error) {
	acc, ok := s.byID[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return acc.Clone(), nil
}
