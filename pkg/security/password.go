package security

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
)

// Algorithm names a password hash driver.
type Algorithm string

const (
	AlgorithmSHA256Crypt Algorithm = "sha256-crypt"
	AlgorithmBcrypt      Algorithm = "bcrypt"
	AlgorithmArgon2id    Algorithm = "argon2id"
)

// PasswordHasher produces and checks self-describing salted password hashes.
// Implementations are safe for concurrent use.
type PasswordHasher interface {
	// Hash returns a fresh record with a new random salt on every call.
	Hash(password string) (string, error)
	// Verify reports whether password matches record. A malformed record
	// yields ErrInvalidHash.
	Verify(password, record string) (bool, error)
	Algorithm() Algorithm
	// Label is the human readable name shown next to a record.
	Label() string
}

// Config selects and tunes the hash driver.
type Config struct {
	Algorithm    Algorithm
	SHA256Rounds int
	BcryptCost   int
	Argon2       Argon2Params
}

// DefaultConfig returns SHA-256 crypt with a conservative round count.
func DefaultConfig() Config {
	return Config{
		Algorithm:    AlgorithmSHA256Crypt,
		SHA256Rounds: DefaultSHA256CryptRounds,
		BcryptCost:   DefaultBcryptCost,
		Argon2:       DefaultArgon2Params(),
	}
}

// NewHasher builds the driver named by cfg.Algorithm.
func NewHasher(cfg Config) (PasswordHasher, error) {
	switch Algorithm(strings.ToLower(string(cfg.Algorithm))) {
	case AlgorithmSHA256Crypt, "":
		return NewSHA256CryptHasher(cfg.SHA256Rounds), nil
	case AlgorithmBcrypt:
		return NewBcryptHasher(cfg.BcryptCost), nil
	case AlgorithmArgon2id:
		return NewArgon2idHasher(cfg.Argon2), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, cfg.Algorithm)
	}
}

const selfTestPassword = "Self-test-1!"

// SelfTest runs a single hash and verify round trip so a missing or broken
// backend is caught at startup instead of on the first submission.
func SelfTest(h PasswordHasher) error {
	record, err := h.Hash(selfTestPassword)
	if err != nil {
		return err
	}
	ok, err := h.Verify(selfTestPassword, record)
	if err != nil {
		return backendError(h.Algorithm(), fmt.Errorf("self-test verify: %w", err))
	}
	if !ok {
		return backendError(h.Algorithm(), fmt.Errorf("self-test verify: record does not match"))
	}
	return nil
}

func randomBytes(r io.Reader, n int) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}
	return b, nil
}
