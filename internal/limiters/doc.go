// Package limiters provides per-flow rate limiters built on top of the
// internal/rate primitives.
//
// # Limiters
//
//   - [RegistrationLimiter]: per-IP and per-email throttle for sign-ups.
//   - [PasswordResetLimiter]: per-email and per-IP throttle for reset requests.
//   - [VerificationResendLimiter]: per-account throttle for verification resends.
//
// All limiters are nil-safe: a constructor given no Redis client or a zero
// budget returns nil, and calling any method on a nil receiver returns nil.
//
// # What this package must NOT do
//
//   - Import goAccount or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting; flow functions decide consequences.
package limiters
