package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications to a slog.Logger. Tokens are logged only
// when IncludeToken is set, which is meant for local development.
type LogNotifier struct {
	Logger       *slog.Logger
	IncludeToken bool
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{Logger: logger}
}

func (n *LogNotifier) VerificationRequested(ctx context.Context, msg Message) error {
	n.log(ctx, msg)
	return nil
}

func (n *LogNotifier) PasswordResetRequested(ctx context.Context, msg Message) error {
	n.log(ctx, msg)
	return nil
}

func (n *LogNotifier) log(ctx context.Context, msg Message) {
	args := []any{
		slog.String("kind", msg.Kind),
		slog.String("account_id", msg.AccountID),
		slog.String("username", msg.Username),
		slog.String("email", msg.Email),
		slog.String("subject", msg.Subject),
	}
	if n.IncludeToken {
		args = append(args, slog.String("link", msg.Link))
	}
	n.Logger.InfoContext(ctx, "notification", args...)
}
