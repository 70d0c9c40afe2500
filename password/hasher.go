package password

import (
	"errors"
	"fmt"
)

// Algorithm is one concrete digest scheme.
type Algorithm interface {
	ID() string
	Hash(password string) (string, error)
	// Recognizes reports whether digest was produced by this algorithm.
	Recognizes(digest string) bool
	Verify(password, digest string) (bool, error)
	NeedsUpgrade(digest string) (bool, error)
}

// Hasher hashes with a preferred algorithm and verifies digests of any
// registered algorithm, so changing the preferred one keeps old credentials valid.
type Hasher struct {
	preferred Algorithm
	legacy    []Algorithm
}

// NewHasher returns a Hasher that hashes with preferred and also accepts legacy digests.
func NewHasher(preferred Algorithm, legacy ...Algorithm) (*Hasher, error) {
	if preferred == nil {
		return nil, errors.New("preferred password algorithm required")
	}
	h := &Hasher{preferred: preferred}
	for _, alg := range legacy {
		if alg == nil {
			continue
		}
		if alg.ID() == preferred.ID() {
			return nil, fmt.Errorf("algorithm %q registered twice", alg.ID())
		}
		h.legacy = append(h.legacy, alg)
	}
	return h, nil
}

// Preferred returns the id of the algorithm used for new digests.
func (h *Hasher) Preferred() string {
	return h.preferred.ID()
}

func (h *Hasher) Hash(password string) (string, error) {
	return h.preferred.Hash(password)
}

// Verify never returns an error: malformed or unknown digests simply do not verify.
func (h *Hasher) Verify(password, digest string) bool {
	alg := h.algorithmFor(digest)
	if alg == nil {
		return false
	}
	ok, err := alg.Verify(password, digest)
	return err == nil && ok
}

// NeedsRehash is true for digests from a non-preferred algorithm or with
// weaker parameters than the preferred configuration.
func (h *Hasher) NeedsRehash(digest string) bool {
	alg := h.algorithmFor(digest)
	if alg == nil {
		return false
	}
	upgrade, err := alg.NeedsUpgrade(digest)
	if err != nil {
		return false
	}
	return alg.ID() != h.preferred.ID() || upgrade
}

func (h *Hasher) algorithmFor(digest string) Algorithm {
	if h.preferred.Recognizes(digest) {
		return h.preferred
	}
	for _, alg := range h.legacy {
		if alg.Recognizes(digest) {
			return alg
		}
	}
	return nil
}
