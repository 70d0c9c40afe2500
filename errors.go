package goAccount

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is wrapped by every *ValidationError.
	ErrValidation = errors.New("invalid input")
	// ErrConflict is wrapped by every *ConflictError.
	ErrConflict = errors.New("account already exists")
	// ErrIncorrectCredentials is returned for an unknown identifier and for a wrong
	// password alike.
	ErrIncorrectCredentials = errors.New("incorrect username or password")
	// ErrAccountLocked is returned once the caller has proven the password of a locked account.
	ErrAccountLocked = errors.New("account locked")
	// ErrAlreadyVerified is returned when verifying or re-sending for a verified account.
	ErrAlreadyVerified = errors.New("email already verified")
	// ErrNotVerified is returned by CheckAccess when RequireVerified is not met.
	ErrNotVerified = errors.New("email not verified")
	// ErrPasswordUnchanged is returned when the new password matches the current one.
	ErrPasswordUnchanged = errors.New("new password must differ from the current password")
	// ErrInvalidToken covers unknown, superseded, consumed, expired and malformed tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrNotFound is returned when an account id does not resolve.
	ErrNotFound = errors.New("account not found")
	// ErrRateLimited is returned when a throttle rejected the request.
	ErrRateLimited = errors.New("rate limited")
	// ErrInternal hides store, hasher and signer failures from callers. The
	// cause is logged.
	ErrInternal = errors.New("internal error")
	// ErrEngineNotReady is returned by a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ValidationError names the first input field that was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func newValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError names the unique field ("username" or "email") that is already taken.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return e.Field + " already taken"
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func newConflictError(field string) error {
	return &ConflictError{Field: field}
}

// PublicMessage returns the stable, user-facing text for err. Errors outside
// the engine's kinds get a generic message so internals never leak.
func PublicMessage(err error) string {
	var ce *ConflictError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ce) && ce.Field == "username":
		return "Username already taken"
	case errors.As(err, &ce) && ce.Field == "email":
		return "Email already registered"
	case errors.Is(err, ErrConflict):
		return "User already exists in the system"
	case errors.Is(err, ErrValidation):
		return validationMessage(err)
	case errors.Is(err, ErrIncorrectCredentials):
		return "Incorrect username or password"
	case errors.Is(err, ErrAccountLocked):
		return "Your account is currently locked"
	case errors.Is(err, ErrAlreadyVerified):
		return "Email has been verified"
	case errors.Is(err, ErrNotVerified):
		return "Email account not yet verified"
	case errors.Is(err, ErrPasswordUnchanged):
		return "New password must not be the same as the old password"
	case errors.Is(err, ErrInvalidToken):
		return "Invalid or expired token"
	case errors.Is(err, ErrNotFound):
		return "User does not exists"
	case errors.Is(err, ErrRateLimited):
		return "Too many requests, try again later"
	default:
		return "Something went wrong"
	}
}

func validationMessage(err error) string {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return "Invalid request"
	}
	switch ve.Reason {
	case "mismatch":
		return "Password do not match"
	case "too_short":
		return "Password is too short"
	case "too_long":
		return "Password is too long"
	case "required":
		return fmt.Sprintf("The %s field is required", ve.Field)
	default:
		return fmt.Sprintf("The %s field is invalid", ve.Field)
	}
}
