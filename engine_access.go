package goAccount

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccount/account"
)

// AccessToken is a signed bearer token naming an account by username and id.
type AccessToken struct {
	Token     string    `json:"access_token"`
	Type      string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Requirement narrows which accounts CheckAccess admits.
type Requirement uint8

const (
	// RequireActive rejects locked accounts with ErrAccountLocked.
	RequireActive Requirement = 1 << iota
	// RequireVerified rejects unverified accounts with ErrNotVerified.
	RequireVerified
)

// IssueAccessToken mints an access token for acc, typically after
// Authenticate, VerifyEmail or CompletePasswordReset succeeded.
func (e *Engine) IssueAccessToken(ctx context.Context, acc *account.Account) (AccessToken, error) {
	if !e.ready() {
		return AccessToken{}, ErrEngineNotReady
	}
	if acc == nil || acc.Username == "" {
		return AccessToken{}, newValidationError("account", "required")
	}

	token, expiresAt, err := e.tokens.MintAccount(acc.Username, acc.ID)
	if err != nil {
		return AccessToken{}, e.internalError(ctx, "access_token.mint", err)
	}
	e.metricInc(MetricAccessTokenIssued)

	return AccessToken{
		Token:     token,
		Type:      "bearer",
		ExpiresAt: expiresAt,
	}, nil
}

// AccountFromAccessToken verifies token and loads the account it names. Every
// failure, including a subject that no longer resolves or now resolves to a
// different account, is ErrInvalidToken.
func (e *Engine) AccountFromAccessToken(ctx context.Context, token string) (*account.Account, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.VerifyClaims(token)
	if err != nil {
		return nil, e.rejectAccessToken(ctx, "", "invalid")
	}

	acc, err := e.store.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, e.rejectAccessToken(ctx, "", "unknown_subject")
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, e.internalError(ctx, "access_token.lookup", err)
	}
	if acc.ID != claims.AccountID {
		return nil, e.rejectAccessToken(ctx, acc.ID, "subject_reassigned")
	}
	return acc, nil
}

func (e *Engine) rejectAccessToken(ctx context.Context, accountID, reason string) error {
	e.metricInc(MetricAccessTokenRejected)
	e.emitAudit(ctx, auditEventAccessTokenRejected, false, accountID, ErrInvalidToken, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return ErrInvalidToken
}

// CheckAccess reports whether acc satisfies req. Locked wins over unverified.
func (e *Engine) CheckAccess(acc *account.Account, req Requirement) error {
	if acc == nil {
		return ErrInvalidToken
	}
	if req&RequireActive != 0 && !acc.IsActive() {
		return ErrAccountLocked
	}
	if req&RequireVerified != 0 && !acc.IsVerified() {
		return ErrNotVerified
	}
	return nil
}
