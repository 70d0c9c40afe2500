package goAccount

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccount/account"
	"github.com/MrEthical07/goAccount/internal/dispatch"
	internalflows "github.com/MrEthical07/goAccount/internal/flows"
	"github.com/MrEthical07/goAccount/internal/limiters"
	"github.com/MrEthical07/goAccount/internal/logging"
	"github.com/MrEthical07/goAccount/internal/rate"
	"github.com/MrEthical07/goAccount/jwt"
	"github.com/MrEthical07/goAccount/notify"
	"github.com/MrEthical07/goAccount/password"
	"github.com/google/uuid"
)

// Engine runs the account lifecycle: registration, authentication, email
// verification, password recovery and profile changes. Build one with
// New().WithConfig(cfg).WithStore(s).Build(). All methods are safe for
// concurrent use.
type Engine struct {
	config              Config
	store               account.Store
	hasher              *password.Hasher
	dummyHash           string
	tokens              *jwt.Manager
	rateLimiter         *rate.Limiter
	registrationLimiter *limiters.RegistrationLimiter
	resetLimiter        *limiters.PasswordResetLimiter
	resendLimiter       *limiters.VerificationResendLimiter
	notifier            notify.Notifier
	notifications       *dispatch.Dispatcher[notify.Message]
	links               notify.Links
	audit               *dispatch.Dispatcher[AuditEvent]
	metrics             *Metrics
	logger              logging.Logger
	clock               func() time.Time
}

// Close drains pending notifications and audit events. The Engine must not be
// used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.notifications.Close()
	e.audit.Close()
}

// AuditDropped returns how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// NotificationsDropped returns how many notifications never reached the notifier
// because the buffer was full.
func (e *Engine) NotificationsDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.notifications.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.hasher != nil && e.tokens != nil
}

// internalError logs the cause and returns the opaque ErrInternal.
func (e *Engine) internalError(ctx context.Context, op string, err error) error {
	if e != nil && e.logger != nil {
		e.logger.Error(ctx, "account operation failed", "op", op, "error", err)
	}
	return ErrInternal
}

func (e *Engine) passwordRules() internalflows.PasswordRules {
	return internalflows.PasswordRules{
		MinLength: e.config.Password.MinLength,
		MaxBytes:  e.config.Password.MaxBytes,
	}
}

func (e *Engine) hashPassword(pw string) (string, error) {
	return e.hasher.Hash(pw)
}

func (e *Engine) verifyPassword(pw, digest string) bool {
	return e.hasher.Verify(pw, digest)
}

// dummyVerify spends one verification against a fixed digest so unknown
// identifiers take as long as wrong passwords.
func (e *Engine) dummyVerify(pw string) {
	if e.dummyHash == "" {
		return
	}
	_ = e.hasher.Verify(pw, e.dummyHash)
}

func (e *Engine) needsRehash(digest string) bool {
	if !e.config.Password.UpgradeOnLogin {
		return false
	}
	return e.hasher.NeedsRehash(digest)
}

func newAccountID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func invalidInput(field, reason string) error {
	return newValidationError(field, reason)
}

func conflictOn(field string) error {
	return newConflictError(field)
}

// mapLimiterError turns throttle rejections into ErrRateLimited. Anything
// else, such as a Redis outage, is returned unchanged for the flow to treat as
// internal.
func (e *Engine) mapLimiterError(err error) error {
	switch {
	case errors.Is(err, rate.ErrRateLimited),
		errors.Is(err, limiters.ErrRegistrationRateLimited),
		errors.Is(err, limiters.ErrResetRateLimited),
		errors.Is(err, limiters.ErrVerificationRateLimited):
		return ErrRateLimited
	default:
		return err
	}
}

/*
====================================
NOTIFICATIONS
====================================
*/

func (e *Engine) notifyVerification(ctx context.Context, acc *account.Account, token string) {
	e.sendNotification(ctx, notify.Message{
		Kind:      notify.KindVerification,
		AccountID: acc.ID,
		Username:  acc.Username,
		Email:     acc.Email,
		Token:     token,
		Link:      e.links.Verification(token),
		Subject:   notify.SubjectVerification,
	})
}

func (e *Engine) notifyReset(ctx context.Context, acc *account.Account, token string) {
	e.sendNotification(ctx, notify.Message{
		Kind:      notify.KindPasswordReset,
		AccountID: acc.ID,
		Username:  acc.Username,
		Email:     acc.Email,
		Token:     token,
		Link:      e.links.PasswordReset(token),
		Subject:   notify.SubjectPasswordReset,
	})
}

// sendNotification runs after the store write committed. Delivery failures
// are logged and counted but never fail the operation.
func (e *Engine) sendNotification(ctx context.Context, msg notify.Message) {
	if e.notifications == nil {
		e.deliverSync(ctx, msg)
		return
	}
	if !e.notifications.Emit(ctx, msg) {
		e.metricInc(MetricNotificationDropped)
		e.logger.Warn(ctx, "notification dropped", "kind", msg.Kind, "account_id", msg.AccountID)
	}
}

// deliverSync waits for delivery until it finishes, the caller's context ends
// or the delivery timeout passes. A send still running when the wait ends
// carries on detached, bounded by the same timeout.
func (e *Engine) deliverSync(ctx context.Context, msg notify.Message) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.deliver(context.WithoutCancel(ctx), msg)
	}()

	timer := time.NewTimer(e.deliveryTimeout())
	defer timer.Stop()
	select {
	case <-done:
	case <-ctx.Done():
		e.logger.Warn(ctx, "notification still in flight", "kind", msg.Kind, "account_id", msg.AccountID, "error", ctx.Err())
	case <-timer.C:
		e.logger.Warn(ctx, "notification still in flight", "kind", msg.Kind, "account_id", msg.AccountID, "error", context.DeadlineExceeded)
	}
}

func (e *Engine) deliveryTimeout() time.Duration {
	if e.config.Notify.DeliveryTimeout > 0 {
		return e.config.Notify.DeliveryTimeout
	}
	return 10 * time.Second
}

func (e *Engine) deliver(ctx context.Context, msg notify.Message) {
	sendCtx, cancel := context.WithTimeout(ctx, e.deliveryTimeout())
	defer cancel()

	if err := notify.Dispatch(sendCtx, e.notifier, msg); err != nil {
		e.metricInc(MetricNotificationFailed)
		e.logger.Error(ctx, "notification delivery failed", "kind", msg.Kind, "account_id", msg.AccountID, "error", err)
		e.emitAudit(ctx, auditEventNotificationFailed, false, msg.AccountID, ErrInternal, func() map[string]string {
			return map[string]string{
				"kind": msg.Kind,
			}
		})
	}
}
