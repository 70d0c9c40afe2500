// Package jwt mints and verifies short-lived signed access tokens.
//
// Tokens carry the account username as the "sub" claim, the account id as
// "aid" and an absolute "exp".
// Only symmetric HMAC algorithms are accepted, and the parser pins the
// configured one, so "none" and algorithm-confusion tokens never verify.
// Verification failures are reported through a single error value.
package jwt
