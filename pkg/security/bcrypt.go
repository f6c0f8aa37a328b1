package security

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = 12

// bcryptHasher salts from crypto/rand inside x/crypto/bcrypt; there is no
// injectable entropy source, so a failing reader only surfaces as a
// generation error.
type bcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a new password hasher using bcrypt
func NewBcryptHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &bcryptHasher{cost: cost}
}

func (b *bcryptHasher) Algorithm() Algorithm { return AlgorithmBcrypt }

func (b *bcryptHasher) Label() string { return "bcrypt" }

func (b *bcryptHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("bcrypt: %w", err)
		}
		return "", backendError(AlgorithmBcrypt, err)
	}
	return string(bytes), nil
}

func (b *bcryptHasher) Verify(password, record string) (bool, error) {
	if !isBcrypt(record) {
		if _, ok := DetectAlgorithm(record); ok {
			return false, ErrAlgorithmMismatch
		}
		return false, ErrInvalidHash
	}

	err := bcrypt.CompareHashAndPassword([]byte(record), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
}

func isBcrypt(record string) bool {
	return strings.HasPrefix(record, "$2a$") ||
		strings.HasPrefix(record, "$2b$") ||
		strings.HasPrefix(record, "$2y$")
}

// DetectAlgorithm inspects the record prefix. It does not validate the record.
func DetectAlgorithm(record string) (Algorithm, bool) {
	switch {
	case strings.HasPrefix(record, sha256CryptPrefix):
		return AlgorithmSHA256Crypt, true
	case strings.HasPrefix(record, argon2idPrefix):
		return AlgorithmArgon2id, true
	case isBcrypt(record):
		return AlgorithmBcrypt, true
	default:
		return "", false
	}
}
