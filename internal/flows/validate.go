package flows

import (
	"net/mail"
	"strings"
	"unicode"
)

// Validation reasons reported alongside the offending field.
const (
	ReasonRequired      = "required"
	ReasonTooShort      = "too_short"
	ReasonTooLong       = "too_long"
	ReasonMismatch      = "mismatch"
	ReasonInvalidFormat = "invalid_format"
)

// Field names reported in validation failures.
const (
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldPasswordConfirm = "password_confirm"
	FieldCurrentPassword = "current_password"
	FieldToken           = "token"
)

// PasswordRules bounds every newly chosen password.
type PasswordRules struct {
	MinLength int
	MaxBytes  int
}

// inputError names the first field that failed validation.
type inputError struct {
	field  string
	reason string
}

func checkNewPassword(rules PasswordRules, password, confirm string) *inputError {
	if password == "" {
		return &inputError{FieldPassword, ReasonRequired}
	}
	if rules.MinLength > 0 && len([]rune(password)) < rules.MinLength {
		return &inputError{FieldPassword, ReasonTooShort}
	}
	if rules.MaxBytes > 0 && len(password) > rules.MaxBytes {
		return &inputError{FieldPassword, ReasonTooLong}
	}
	if confirm != password {
		return &inputError{FieldPasswordConfirm, ReasonMismatch}
	}
	return nil
}

// Usernames are matched exactly, so surrounding or embedded whitespace is rejected
// rather than trimmed. Login resolves an identifier as username first, so a
// username must never look like an email address.
func checkUsername(username string) *inputError {
	if username == "" {
		return &inputError{FieldUsername, ReasonRequired}
	}
	if strings.IndexFunc(username, func(r rune) bool { return r == '@' || unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return &inputError{FieldUsername, ReasonInvalidFormat}
	}
	return nil
}

func checkEmail(email string) *inputError {
	if email == "" {
		return &inputError{FieldEmail, ReasonRequired}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndexByte(email, '@')+1:], ".") {
		return &inputError{FieldEmail, ReasonInvalidFormat}
	}
	return nil
}

// normalizeEmail trims surrounding whitespace. Case is preserved so stored
// addresses match what the owner typed.
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
