// Package password hashes and verifies passwords.
//
// # Output format
//
// Argon2id digests use PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// bcrypt digests use the usual $2a$/$2b$/$2y$ modular crypt format.
//
// [Hasher] hashes with one preferred [Algorithm] and verifies digests of every
// registered one. [Hasher.NeedsRehash] reports digests produced by another
// algorithm or with weaker parameters so callers can rehash after a successful
// login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Enforce password policy; minimum length and confirmation live in the engine.
//   - Log plaintext passwords.
package password
