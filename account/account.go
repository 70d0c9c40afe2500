package account

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

var (
	// ErrAlreadyVerified is returned by verification transitions on a verified account.
	ErrAlreadyVerified = errors.New("account already verified")
	// ErrTokenMismatch is returned when a supplied token does not match the pending one.
	ErrTokenMismatch = errors.New("token mismatch")
	// ErrCorruptState is returned by Restore for field combinations no transition can produce.
	ErrCorruptState = errors.New("account state is not representable")
	// ErrEmptyField is returned when a required field would become empty.
	ErrEmptyField = errors.New("account field must not be empty")
)

// VerificationStatus is the email-ownership half of the account state.
type VerificationStatus uint8

const (
	// Unverified accounts have not yet proven ownership of their email.
	Unverified VerificationStatus = iota
	// Verified accounts have consumed a verification token. The transition never reverses.
	Verified
)

func (s VerificationStatus) String() string {
	if s == Verified {
		return "verified"
	}
	return "unverified"
}

// LockStatus is the administrative half of the account state.
type LockStatus uint8

const (
	// Active accounts may authenticate.
	Active LockStatus = iota
	// Locked accounts are rejected after a correct password.
	Locked
)

func (s LockStatus) String() string {
	if s == Locked {
		return "locked"
	}
	return "active"
}

// RecoveryWindow is an open password-reset window. Token and expiry always travel together.
type RecoveryWindow struct {
	Token     string
	ExpiresAt time.Time
}

// verification keeps the pending token inside the unverified variant so a
// verified account with a token cannot be built. A verified account keeps
// only the digest of the token it consumed, so a replay can be recognised
// and answered with ErrAlreadyVerified.
type verification struct {
	status         VerificationStatus
	pendingToken   string
	consumedDigest string
}

// TokenDigest is the hex SHA-256 of token, used to recognise consumed tokens.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Account is one registered identity. State fields are private; the
// transition methods below are the only way to change them.
type Account struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	verification verification
	lock         LockStatus
	recovery     *RecoveryWindow
}

// New builds a freshly registered account: unverified, active, no recovery window.
func New(id, username, email, fullName, passwordHash string, now time.Time) (*Account, error) {
	if strings.TrimSpace(id) == "" || username == "" || email == "" || passwordHash == "" {
		return nil, ErrEmptyField
	}
	now = now.UTC()
	return &Account{
		ID:           id,
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Snapshot is the flat, persisted form of an account.
type Snapshot struct {
	ID                  string
	Username            string
	Email               string
	FullName            string
	PasswordHash        string
	IsActive            bool
	IsVerified          bool
	VerificationToken   string
	VerifiedTokenDigest string
	ResetToken          string
	ResetExpiresAt      time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Restore rebuilds an account from its persisted columns.
func Restore(s Snapshot) (*Account, error) {
	if s.ID == "" || s.Username == "" || s.Email == "" || s.PasswordHash == "" {
		return nil, ErrEmptyField
	}
	if s.IsVerified && s.VerificationToken != "" {
		return nil, ErrCorruptState
	}
	if !s.IsVerified && s.VerifiedTokenDigest != "" {
		return nil, ErrCorruptState
	}
	if (s.ResetToken == "") != s.ResetExpiresAt.IsZero() {
		return nil, ErrCorruptState
	}

	a := &Account{
		ID:           s.ID,
		Username:     s.Username,
		Email:        s.Email,
		FullName:     s.FullName,
		PasswordHash: s.PasswordHash,
		CreatedAt:    s.CreatedAt.UTC(),
		UpdatedAt:    s.UpdatedAt.UTC(),
	}
	if s.IsVerified {
		a.verification.status = Verified
		a.verification.consumedDigest = s.VerifiedTokenDigest
	} else {
		a.verification.pendingToken = s.VerificationToken
	}
	if !s.IsActive {
		a.lock = Locked
	}
	if s.ResetToken != "" {
		a.recovery = &RecoveryWindow{Token: s.ResetToken, ExpiresAt: s.ResetExpiresAt.UTC()}
	}
	return a, nil
}

// Snapshot flattens the account for persistence.
func (a *Account) Snapshot() Snapshot {
	s := Snapshot{
		ID:                a.ID,
		Username:          a.Username,
		Email:             a.Email,
		FullName:          a.FullName,
		PasswordHash:      a.PasswordHash,
		IsActive:          a.lock == Active,
		IsVerified:        a.verification.status == Verified,
		VerificationToken: a.verification.pendingToken,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
	s.VerifiedTokenDigest = a.verification.consumedDigest
	if a.recovery != nil {
		s.ResetToken = a.recovery.Token
		s.ResetExpiresAt = a.recovery.ExpiresAt
	}
	return s
}

// Clone returns a deep copy safe to hand to another goroutine.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.recovery != nil {
		w := *a.recovery
		c.recovery = &w
	}
	return &c
}

// Verification returns the verification status.
func (a *Account) Verification() VerificationStatus { return a.verification.status }

// Lock returns the lock status.
func (a *Account) Lock() LockStatus { return a.lock }

// IsVerified reports whether the email address has been proven.
func (a *Account) IsVerified() bool { return a.verification.status == Verified }

// IsActive reports whether the account is unlocked.
func (a *Account) IsActive() bool { return a.lock == Active }

// PendingVerificationToken returns the outstanding verification token, if any.
func (a *Account) PendingVerificationToken() (string, bool) {
	if a.verification.status == Verified || a.verification.pendingToken == "" {
		return "", false
	}
	return a.verification.pendingToken, true
}

// ConsumedVerificationDigest returns the digest of the token that verified
// the account.
func (a *Account) ConsumedVerificationDigest() (string, bool) {
	if a.verification.status != Verified || a.verification.consumedDigest == "" {
		return "", false
	}
	return a.verification.consumedDigest, true
}

// MatchesVerificationToken reports whether token is the pending token or the
// one already consumed.
func (a *Account) MatchesVerificationToken(token string) bool {
	if token == "" {
		return false
	}
	if pending, ok := a.PendingVerificationToken(); ok {
		return subtle.ConstantTimeCompare([]byte(pending), []byte(token)) == 1
	}
	if digest, ok := a.ConsumedVerificationDigest(); ok {
		return subtle.ConstantTimeCompare([]byte(digest), []byte(TokenDigest(token))) == 1
	}
	return false
}

// Recovery returns the recovery window regardless of expiry.
func (a *Account) Recovery() (RecoveryWindow, bool) {
	if a.recovery == nil {
		return RecoveryWindow{}, false
	}
	return *a.recovery, true
}

// RecoveryOpenAt reports whether a reset window is open and unexpired at now.
func (a *Account) RecoveryOpenAt(now time.Time) bool {
	return a.recovery != nil && now.Before(a.recovery.ExpiresAt)
}

// IssueVerificationToken replaces the pending verification token.
func (a *Account) IssueVerificationToken(token string, now time.Time) error {
	if a.verification.status == Verified {
		return ErrAlreadyVerified
	}
	if token == "" {
		return ErrEmptyField
	}
	a.verification.pendingToken = token
	a.touch(now)
	return nil
}

// ConfirmVerification consumes the pending token and marks the account verified.
func (a *Account) ConfirmVerification(token string, now time.Time) error {
	if a.verification.status == Verified {
		return ErrAlreadyVerified
	}
	pending := a.verification.pendingToken
	if pending == "" || subtle.ConstantTimeCompare([]byte(pending), []byte(token)) != 1 {
		return ErrTokenMismatch
	}
	a.verification = verification{status: Verified, consumedDigest: TokenDigest(token)}
	a.touch(now)
	return nil
}

// OpenRecovery opens a reset window, replacing any previous one.
func (a *Account) OpenRecovery(token string, expiresAt, now time.Time) error {
	if token == "" || expiresAt.IsZero() {
		return ErrEmptyField
	}
	a.recovery = &RecoveryWindow{Token: token, ExpiresAt: expiresAt.UTC()}
	a.touch(now)
	return nil
}

// ConsumeRecovery closes the window if token matches and is unexpired at now.
func (a *Account) ConsumeRecovery(token string, now time.Time) error {
	if a.recovery == nil || !now.Before(a.recovery.ExpiresAt) {
		return ErrTokenMismatch
	}
	if subtle.ConstantTimeCompare([]byte(a.recovery.Token), []byte(token)) != 1 {
		return ErrTokenMismatch
	}
	a.CloseRecovery(now)
	return nil
}

// CloseRecovery clears the reset window.
func (a *Account) CloseRecovery(now time.Time) {
	if a.recovery == nil {
		return
	}
	a.recovery = nil
	a.touch(now)
}

// SetPasswordHash replaces the stored digest.
func (a *Account) SetPasswordHash(hash string, now time.Time) error {
	if hash == "" {
		return ErrEmptyField
	}
	a.PasswordHash = hash
	a.touch(now)
	return nil
}

// SetLock moves the account to status. Setting the current status is a no-op.
func (a *Account) SetLock(status LockStatus, now time.Time) {
	if a.lock == status {
		return
	}
	a.lock = status
	a.touch(now)
}

// Rename changes the username. Uniqueness is the store's concern.
func (a *Account) Rename(username string, now time.Time) error {
	if username == "" {
		return ErrEmptyField
	}
	a.Username = username
	a.touch(now)
	return nil
}

// ChangeEmail replaces the address. The verification state is left as is.
func (a *Account) ChangeEmail(email string, now time.Time) error {
	if email == "" {
		return ErrEmptyField
	}
	a.Email = email
	a.touch(now)
	return nil
}

// SetFullName replaces the display name. An empty name clears it.
func (a *Account) SetFullName(name string, now time.Time) {
	a.FullName = name
	a.touch(now)
}

func (a *Account) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	a.UpdatedAt = now.UTC()
}
