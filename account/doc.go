// Package account defines the Account record, its explicit lifecycle state and
// the Store contract the credential engine consumes.
//
// # State
//
// An account is {Unverified, Verified} x {Active, Locked} plus an optional
// RecoveryWindow. A verified account never carries a verification token, and a
// reset token never exists without its expiry. Fields that encode state are
// unexported; callers change them through transition methods only.
//
// # Store
//
// Store implementations must enforce username and email uniqueness at commit
// and report collisions as DuplicateError, so a write that passed an earlier
// existence check still fails cleanly.
package account
