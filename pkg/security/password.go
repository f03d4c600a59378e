package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"

	apperrors "authn-service/pkg/errors"
)

const (
	// MaxPasswordBytes bounds the hashing input.
	MaxPasswordBytes = 512

	argon2Algorithm = "argon2id"

	// Upper bounds applied to parameters read back from stored records, so a
	// tampered row cannot make a single verify allocate unbounded memory.
	maxStoredMemoryKiB  = 1 << 21 // 2 GiB
	maxStoredIterations = 64
	minSaltLength       = 8
	minKeyLength        = 16
)

// ErrPasswordTooLong is returned by Hash for inputs above MaxPasswordBytes.
var ErrPasswordTooLong = errors.New("password exceeds maximum length")

// Argon2Params holds the argon2id cost parameters.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params returns the production cost parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate reports whether the parameters are usable for new hashes.
func (p Argon2Params) Validate() error {
	switch {
	case p.Iterations < 1:
		return errors.New("argon2 iterations must be at least 1")
	case p.Parallelism < 1:
		return errors.New("argon2 parallelism must be at least 1")
	case p.Memory < 8*uint32(p.Parallelism):
		return fmt.Errorf("argon2 memory must be at least %d KiB", 8*uint32(p.Parallelism))
	case p.SaltLength < minSaltLength:
		return fmt.Errorf("argon2 salt length must be at least %d bytes", minSaltLength)
	case p.KeyLength < minKeyLength:
		return fmt.Errorf("argon2 key length must be at least %d bytes", minKeyLength)
	}
	return nil
}

// Argon2Hasher hashes and verifies passwords with argon2id. Records use the
// PHC string format: $argon2id$v=19$m=<KiB>,t=<iter>,p=<par>$<salt>$<key>.
type Argon2Hasher struct {
	params Argon2Params
	dummy  string
	log    *zap.Logger
}

// NewArgon2Hasher creates a hasher and precomputes the dummy record used to
// equalise login timing when no user matches.
func NewArgon2Hasher(params Argon2Params, log *zap.Logger) (*Argon2Hasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	h := &Argon2Hasher{params: params, log: log}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("entropy source unavailable: %w", err)
	}

	dummy, err := h.Hash(base64.RawStdEncoding.EncodeToString(secret))
	if err != nil {
		return nil, fmt.Errorf("failed to precompute dummy hash: %w", err)
	}
	h.dummy = dummy

	return h, nil
}

// Hash derives a new record for plain with a fresh random salt.
func (h *Argon2Hasher) Hash(plain string) (string, error) {
	if len(plain) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(plain), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Algorithm,
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plain matches the stored record. A record that
// cannot be parsed is logged and treated as a mismatch. Inputs above
// MaxPasswordBytes never match; only their first MaxPasswordBytes bytes are
// hashed, against the dummy record, so the cost stays bounded.
func (h *Argon2Hasher) Verify(plain, encoded string) bool {
	if len(plain) > MaxPasswordBytes {
		_, _ = h.verify(plain[:MaxPasswordBytes], h.dummy)
		return false
	}

	ok, err := h.verify(plain, encoded)
	if err != nil {
		h.log.Error("corrupt stored hash", zap.Error(err))
		return false
	}
	return ok
}

// DummyHash returns a valid record that matches no real password.
func (h *Argon2Hasher) DummyHash() string {
	return h.dummy
}

func (h *Argon2Hasher) verify(plain, encoded string) (bool, error) {
	params, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(plain), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

func decodeHash(encoded string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return p, nil, nil, fmt.Errorf("%w: expected 6 segments, got %d", apperrors.ErrCorruptStoredHash, len(parts))
	}

	if parts[1] != argon2Algorithm {
		return p, nil, nil, fmt.Errorf("%w: unsupported algorithm %q", apperrors.ErrCorruptStoredHash, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, fmt.Errorf("%w: bad version segment: %v", apperrors.ErrCorruptStoredHash, err)
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: unsupported version %d", apperrors.ErrCorruptStoredHash, version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return p, nil, nil, fmt.Errorf("%w: bad parameter segment: %v", apperrors.ErrCorruptStoredHash, err)
	}
	if p.Iterations < 1 || p.Iterations > maxStoredIterations ||
		p.Parallelism < 1 ||
		p.Memory < 8*uint32(p.Parallelism) || p.Memory > maxStoredMemoryKiB {
		return p, nil, nil, fmt.Errorf("%w: parameters out of range", apperrors.ErrCorruptStoredHash)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < minSaltLength {
		return p, nil, nil, fmt.Errorf("%w: bad salt", apperrors.ErrCorruptStoredHash)
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) < minKeyLength {
		return p, nil, nil, fmt.Errorf("%w: bad key", apperrors.ErrCorruptStoredHash)
	}

	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))

	return p, salt, key, nil
}
