// Package rate provides Redis fixed-window counters and the login throttle.
//
// # Window semantics
//
// INCR, then EXPIRE on the first hit of a window. Keys are
// <prefix>:<scope>:<kind>:<value>, e.g. ga:login:id:alice.
//
// # What this package must NOT do
//
//   - Implement per-flow policy (that lives in internal/limiters).
//   - Decide what a limited caller sees; flows map ErrRateLimited.
package rate
