package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the stream key used when none is configured.
const DefaultStream = "goaccount:notifications"

// RedisStreamNotifier appends every notification to a Redis stream so a
// separate mailer process can deliver it.
type RedisStreamNotifier struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

// NewRedisStreamNotifier returns a notifier writing to stream. maxLen > 0
// caps the stream approximately (XADD MAXLEN ~).
func NewRedisStreamNotifier(client redis.UniversalClient, stream string, maxLen int64) (*RedisStreamNotifier, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamNotifier{client: client, stream: stream, maxLen: maxLen}, nil
}

func (n *RedisStreamNotifier) VerificationRequested(ctx context.Context, msg Message) error {
	return n.add(ctx, msg)
}

func (n *RedisStreamNotifier) PasswordResetRequested(ctx context.Context, msg Message) error {
	return n.add(ctx, msg)
}

func (n *RedisStreamNotifier) add(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]any{
			"kind":       msg.Kind,
			"account_id": msg.AccountID,
			"username":   msg.Username,
			"email":      msg.Email,
			"subject":    msg.Subject,
			"link":       msg.Link,
			"token":      msg.Token,
		},
	}
	if n.maxLen > 0 {
		args.MaxLen = n.maxLen
		args.Approx = true
	}
	if err := n.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append notification: %w", err)
	}
	return nil
}
