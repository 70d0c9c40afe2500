package account

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by lookups that match no account.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicate is matched by every uniqueness violation, see DuplicateError.
	ErrDuplicate = errors.New("account already exists")
)

const (
	FieldUsername = "username"
	FieldEmail    = "email"
)

// DuplicateError names the unique field that rejected a write.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	if e.Field == "" {
		return ErrDuplicate.Error()
	}
	return fmt.Sprintf("%s: %s already taken", ErrDuplicate.Error(), e.Field)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// Duplicate returns a DuplicateError for field.
func Duplicate(field string) error {
	return &DuplicateError{Field: field}
}

// DuplicateField extracts the rejected field from err, if it is a uniqueness violation.
func DuplicateField(err error) (string, bool) {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup.Field, true
	}
	if errors.Is(err, ErrDuplicate) {
		return "", true
	}
	return "", false
}

// MutateFunc edits an account inside Store.Update. Returning an error aborts the write.
type MutateFunc func(*Account) error

// Store persists accounts. Every write is a single-account transaction and
// uniqueness of username and email is enforced by the store at commit.
type Store interface {
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByUsernameOrEmail(ctx context.Context, identifier string) (*Account, error)
	GetByVerificationToken(ctx context.Context, token string) (*Account, error)
	// GetByResetToken matches only while the window is still open at now.
	GetByResetToken(ctx context.Context, token string, now time.Time) (*Account, error)

	// Create inserts acc. A username or email collision returns a DuplicateError.
	Create(ctx context.Context, acc *Account) error
	// Update loads the account, applies fn and persists the result atomically.
	Update(ctx context.Context, id string, fn MutateFunc) (*Account, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, skip, limit int) ([]*Account, error)
}
