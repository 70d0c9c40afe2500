// Package dispatch provides a bounded, single-worker async dispatcher.
//
// The engine uses it twice: for audit events and for outbound account
// notifications. Both are fire-and-forget; callers never wait on the handler.
//
// # What this package must NOT do
//
//   - Retry failed handler calls.
//   - Start more than one worker goroutine per dispatcher.
package dispatch
