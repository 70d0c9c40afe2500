// Package notify delivers verification and password-reset notifications to an
// outbound collaborator (mailer, queue, log). Delivery is fire-and-forget from
// the caller's point of view; implementations return errors only so the
// engine can log them.
package notify

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

const (
	KindVerification  = "verification"
	KindPasswordReset = "password_reset"

	SubjectVerification  = "Account verification"
	SubjectPasswordReset = "Recover your password"
)

// Message is one outbound notification.
type Message struct {
	Kind      string
	AccountID string
	Username  string
	Email     string
	Token     string
	Link      string
	Subject   string
}

// Notifier receives the two notifications the engine emits.
type Notifier interface {
	VerificationRequested(ctx context.Context, msg Message) error
	PasswordResetRequested(ctx context.Context, msg Message) error
}

// Links builds the user-facing URLs embedded in messages.
type Links struct {
	FrontendURL string
}

// Verification returns {FrontendURL}/verify-email?token=...
func (l Links) Verification(token string) string {
	return l.build("/verify-email", token)
}

// PasswordReset returns {FrontendURL}/reset-password?token=...
func (l Links) PasswordReset(token string) string {
	return l.build("/reset-password", token)
}

func (l Links) build(path, token string) string {
	base := strings.TrimRight(strings.TrimSpace(l.FrontendURL), "/")
	return base + path + "?token=" + url.QueryEscape(token)
}

// Dispatch routes msg to the notifier method matching msg.Kind.
func Dispatch(ctx context.Context, n Notifier, msg Message) error {
	if n == nil {
		return nil
	}
	switch msg.Kind {
	case KindVerification:
		return n.VerificationRequested(ctx, msg)
	case KindPasswordReset:
		return n.PasswordResetRequested(ctx, msg)
	default:
		return errors.New("notify: unknown message kind " + msg.Kind)
	}
}

// Nop discards every message.
type Nop struct{}

func (Nop) VerificationRequested(context.Context, Message) error  { return nil }
func (Nop) PasswordResetRequested(context.Context, Message) error { return nil }

// MultiNotifier fans out to every notifier and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) VerificationRequested(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.VerificationRequested(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiNotifier) PasswordResetRequested(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.PasswordResetRequested(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Func adapts a single function to Notifier; it receives both kinds.
type Func func(ctx context.Context, msg Message) error

func (f Func) VerificationRequested(ctx context.Context, msg Message) error  { return f(ctx, msg) }
func (f Func) PasswordResetRequested(ctx context.Context, msg Message) error { return f(ctx, msg) }
