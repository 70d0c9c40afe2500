// Package goAccount is an account lifecycle engine: registration, password
// authentication, email-ownership verification, password recovery and
// authenticated password or profile changes.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goAccount is the public surface. It exposes [Engine], [Builder], [Config],
// the error kinds in errors.go and a few value types (AccessToken,
// ProfileUpdate, MetricsSnapshot). Flow orchestration, throttling and
// dispatch live under internal/ and are never exported. Accounts are
// persisted through the account.Store interface; store/memory, store/sqlite
// and store/postgres implement it.
//
// # What this package must NOT do
//
//   - Hold an account write open while a notification is delivered.
//   - Return store, hasher or signer details to callers. They are logged and
//     surfaced as ErrInternal.
//   - Tell callers whether an identifier or an email exists, outside
//     Register and UpdateProfile conflicts.
//
// # Concurrency
//
// The store's atomic update and its uniqueness constraints are the only
// serialization points. Every transition that depends on a token, an expiry
// or a unique field is re-checked inside the store write.
package goAccount
