package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16

	// DefaultMaxPasswordBytes bounds the input fed to the KDF when no limit is configured.
	DefaultMaxPasswordBytes = 1024

	// AlgorithmArgon2id tags PHC digests produced by Argon2.
	AlgorithmArgon2id = "argon2id"
)

var (
	// ErrPasswordTooLong is returned for inputs above MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")

	errMalformedPHC = errors.New("malformed argon2id digest")
)

// Argon2Config holds the Argon2id cost parameters used for new digests.
type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// MaxPasswordBytes of 0 means DefaultMaxPasswordBytes.
	MaxPasswordBytes int
}

// Argon2 hashes passwords with Argon2id and encodes them in PHC string format.
type Argon2 struct {
	config Argon2Config
	rand   io.Reader
}

type phcDigest struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{config: cfg, rand: rand.Reader}, nil
}

func (a *Argon2) ID() string { return AlgorithmArgon2id }

// Hash returns a salted PHC digest of password. The bytes are used exactly as given.
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(a.rand, salt); err != nil {
		return "", fmt.Errorf("argon2 salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		AlgorithmArgon2id,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Recognizes reports whether digest carries the argon2id tag.
func (a *Argon2) Recognizes(digest string) bool {
	return strings.HasPrefix(digest, "$"+AlgorithmArgon2id+"$")
}

// Verify recomputes the key with the digest's own parameters and compares in constant time.
func (a *Argon2) Verify(password, digest string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	parsed, err := parsePHC(digest)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(password), parsed.salt, parsed.time, parsed.memory, parsed.parallelism, uint32(len(parsed.key)))
	return subtle.ConstantTimeCompare(key, parsed.key) == 1, nil
}

// NeedsUpgrade is true when digest was produced with weaker parameters than the current config.
func (a *Argon2) NeedsUpgrade(digest string) (bool, error) {
	parsed, err := parsePHC(digest)
	if err != nil {
		return false, err
	}

	switch {
	case parsed.memory < a.config.Memory,
		parsed.time < a.config.Time,
		parsed.parallelism < a.config.Parallelism,
		uint32(len(parsed.key)) != a.config.KeyLength:
		return true, nil
	}
	return false, nil
}

func parsePHC(digest string) (*phcDigest, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != AlgorithmArgon2id {
		return nil, errMalformedPHC
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") || version != argon2.Version {
		return nil, fmt.Errorf("%w: version", errMalformedPHC)
	}

	out := &phcDigest{}
	if err := out.parseParams(parts[3]); err != nil {
		return nil, err
	}

	out.salt, err = decodePHCField(parts[4])
	if err != nil || len(out.salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: salt", errMalformedPHC)
	}
	out.key, err = decodePHCField(parts[5])
	if err != nil || len(out.key) < int(minKeyLength) {
		return nil, fmt.Errorf("%w: key", errMalformedPHC)
	}

	return out, nil
}

// decodePHCField accepts both unpadded (PHC canonical) and padded base64.
func decodePHCField(field string) ([]byte, error) {
	if strings.HasSuffix(field, "=") {
		return base64.StdEncoding.DecodeString(field)
	}
	return base64.RawStdEncoding.DecodeString(field)
}

func (d *phcDigest) parseParams(section string) error {
	seen := map[string]bool{}
	for _, pair := range strings.Split(section, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || seen[name] {
			return fmt.Errorf("%w: params", errMalformedPHC)
		}
		seen[name] = true

		switch name {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || uint32(v) < minMemoryKB {
				return fmt.Errorf("%w: memory", errMalformedPHC)
			}
			d.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || uint32(v) < minTimeCost {
				return fmt.Errorf("%w: time", errMalformedPHC)
			}
			d.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || uint8(v) < minParallelism {
				return fmt.Errorf("%w: parallelism", errMalformedPHC)
			}
			d.parallelism = uint8(v)
		default:
			return fmt.Errorf("%w: unknown param %q", errMalformedPHC, name)
		}
	}
	if !seen["m"] || !seen["t"] || !seen["p"] {
		return fmt.Errorf("%w: missing params", errMalformedPHC)
	}
	return nil
}

func (cfg Argon2Config) validate() error {
	if cfg.Memory < minMemoryKB {
		return errors.New("argon2 memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("argon2 time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("argon2 parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("argon2 salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("argon2 key length must be >= 16")
	}
	if cfg.MaxPasswordBytes < 0 {
		return errors.New("argon2 max password bytes must be >= 0")
	}
	return nil
}
