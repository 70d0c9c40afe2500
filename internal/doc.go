// Package internal holds helpers private to goAccount, chiefly opaque token
// generation.
//
// # Sub-packages
//
//   - dispatch: bounded async fan-out used for audit events and notifications
//   - flows: orchestration for every Engine operation
//   - limiters: per-flow fixed-window limiters built on rate
//   - logging: context-aware slog wrapper
//   - rate: Redis counter primitives
//
// # What this package must NOT do
//
//   - Export types that appear in the public goAccount API.
package internal
