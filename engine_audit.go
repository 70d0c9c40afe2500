package goAccount

import (
	"context"
	"errors"
)

const (
	auditEventRegister             = "register"
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginRateLimited     = "login_rate_limited"
	auditEventEmailVerify          = "email_verification_confirm"
	auditEventEmailVerifyResend    = "email_verification_resend"
	auditEventPasswordResetRequest = "password_reset_request"
	auditEventPasswordResetConfirm = "password_reset_confirm"
	auditEventPasswordChange       = "password_change"
	auditEventProfileUpdate        = "profile_update"
	auditEventAccountStatusChange  = "account_status_change"
	auditEventAccountDeleted       = "account_deleted"
	auditEventAccessTokenRejected  = "access_token_rejected"
	auditEventRateLimitTriggered   = "rate_limit_triggered"
	auditEventNotificationFailed   = "notification_failed"
)

// AuditErrorCode is the coarse failure class recorded on audit events. It
// never carries the underlying error text.
type AuditErrorCode string

const (
	auditErrValidation           AuditErrorCode = "validation"
	auditErrConflict             AuditErrorCode = "conflict"
	auditErrIncorrectCredentials AuditErrorCode = "incorrect_credentials"
	auditErrAccountLocked        AuditErrorCode = "account_locked"
	auditErrAlreadyVerified      AuditErrorCode = "already_verified"
	auditErrNotVerified          AuditErrorCode = "not_verified"
	auditErrPasswordUnchanged    AuditErrorCode = "password_unchanged"
	auditErrInvalidToken         AuditErrorCode = "invalid_token"
	auditErrNotFound             AuditErrorCode = "not_found"
	auditErrRateLimited          AuditErrorCode = "rate_limited"
	auditErrInternal             AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(
	ctx context.Context,
	scope string,
	metadataBuilder func() map[string]string,
) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", ErrRateLimited, func() map[string]string {
		base := map[string]string{
			"scope": scope,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrConflict):
		return auditErrConflict
	case errors.Is(err, ErrIncorrectCredentials):
		return auditErrIncorrectCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAlreadyVerified):
		return auditErrAlreadyVerified
	case errors.Is(err, ErrNotVerified):
		return auditErrNotVerified
	case errors.Is(err, ErrPasswordUnchanged):
		return auditErrPasswordUnchanged
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	default:
		return auditErrInternal
	}
}
