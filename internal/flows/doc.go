// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunRegister, RunAuthenticate, RunVerifyEmail, etc.)
// accepts a typed dependency struct and returns results without side-effects
// beyond those dependencies. Flows can be tested with plain func fakes and
// the Engine stays thin.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the account store, password hasher,
// token generator, rate limiters, notifier, audit and metrics. They do NOT own
// any of these resources; ownership stays with the Engine.
//
// Every write goes through the store's Update callback, and any condition the
// write depends on (token match, expiry, current hash) is re-checked inside
// that callback.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goAccount (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency funcs.
package flows
