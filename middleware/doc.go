// Package middleware adapts goAccount access tokens to net/http.
//
// [Guard] reads the Authorization header, resolves the bearer token with
// Engine.AccountFromAccessToken, checks the route's [goAccount.Requirement]
// and stores the account in the request context. [ClientIP] feeds the peer
// address to the engine's per-IP throttles.
//
// # What this package must NOT do
//
//   - Parse or sign tokens itself.
//   - Touch the account store directly.
package middleware
