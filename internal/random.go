package internal

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"io"
)

// OpaqueTokenBytes is the entropy of verification and reset tokens.
const OpaqueTokenBytes = 32

var errShortRead = errors.New("short random read")

// NewOpaqueToken returns 32 random bytes as unpadded base64url (43 chars).
func NewOpaqueToken() (string, error) {
	return newOpaqueTokenFrom(rand.Reader)
}

func newOpaqueTokenFrom(r io.Reader) (string, error) {
	var raw [OpaqueTokenBytes]byte
	n, err := io.ReadFull(r, raw[:])
	if err != nil {
		return "", err
	}
	if n != OpaqueTokenBytes {
		return "", errShortRead
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// WellFormedOpaqueToken reports whether token could have come from NewOpaqueToken.
// It lets callers skip a store round-trip for obviously bogus input.
func WellFormedOpaqueToken(token string) bool {
	if len(token) != base64.RawURLEncoding.EncodedLen(OpaqueTokenBytes) {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	return err == nil && len(raw) == OpaqueTokenBytes
}

// TokensEqual compares two tokens in constant time.
func TokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
