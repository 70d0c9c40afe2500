package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goAccount/account"
)

// AuditFunc records one audit event. metadata is evaluated only if the event
// is actually emitted.
type AuditFunc func(ctx context.Context, event string, success bool, accountID string, err error, metadata func() map[string]string)

// RateLimitFunc records that scope throttled a request.
type RateLimitFunc func(ctx context.Context, scope string, metadata func() map[string]string)

// NotifyFunc hands a freshly minted token to the outbound collaborator. It
// must not block on delivery.
type NotifyFunc func(ctx context.Context, acc *account.Account, token string)

// InternalFunc logs err for op and returns the opaque error surfaced to callers.
type InternalFunc func(ctx context.Context, op string, err error) error

func noopAudit(context.Context, string, bool, string, error, func() map[string]string) {}

func noopRateLimit(context.Context, string, func() map[string]string) {}

func noopNotify(context.Context, *account.Account, string) {}

func noopMetric(int) {}

func noClientIP(context.Context) string { return "" }

// isContextErr reports cancellation or deadline errors, which are returned as-is.
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// internalOr returns ctx errors untouched and routes everything else through internal.
func internalOr(ctx context.Context, internal InternalFunc, op string, err error) error {
	if isContextErr(err) {
		return err
	}
	return internal(ctx, op, err)
}
