package security

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/GehirnInc/crypt"
	_ "github.com/GehirnInc/crypt/sha256_crypt"
)

const (
	SHA256CryptMinRounds     = 1000
	SHA256CryptMaxRounds     = 999999999
	DefaultSHA256CryptRounds = 535000

	sha256CryptPrefix        = "$5$"
	sha256CryptDefaultRounds = 5000
	sha256CryptSaltLen       = 16

	// crypt(3) base64 alphabet; 64 symbols so a byte mod 64 is unbiased.
	cryptAlphabet = "./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

var errCryptUnavailable = errors.New("sha256-crypt implementation not registered")

type sha256CryptHasher struct {
	rounds int
	rand   io.Reader
}

// NewSHA256CryptHasher creates a hasher producing $5$rounds=<n>$<salt>$<digest>
// records. Out of range round counts fall back to DefaultSHA256CryptRounds.
func NewSHA256CryptHasher(rounds int) PasswordHasher {
	if rounds < SHA256CryptMinRounds || rounds > SHA256CryptMaxRounds {
		rounds = DefaultSHA256CryptRounds
	}
	return &sha256CryptHasher{rounds: rounds, rand: rand.Reader}
}

func (h *sha256CryptHasher) Algorithm() Algorithm { return AlgorithmSHA256Crypt }

func (h *sha256CryptHasher) Label() string { return "SHA-256 (crypt)" }

func (h *sha256CryptHasher) Hash(password string) (string, error) {
	if !crypt.SHA256.Available() {
		return "", backendError(AlgorithmSHA256Crypt, errCryptUnavailable)
	}

	salt, err := cryptSalt(h.rand, sha256CryptSaltLen)
	if err != nil {
		return "", backendError(AlgorithmSHA256Crypt, err)
	}

	setting := fmt.Sprintf("%srounds=%d$%s", sha256CryptPrefix, h.rounds, salt)
	record, err := crypt.SHA256.New().Generate([]byte(password), []byte(setting))
	if err != nil {
		return "", backendError(AlgorithmSHA256Crypt, err)
	}
	return record, nil
}

func (h *sha256CryptHasher) Verify(password, record string) (bool, error) {
	if !strings.HasPrefix(record, sha256CryptPrefix) {
		if _, ok := DetectAlgorithm(record); ok {
			return false, ErrAlgorithmMismatch
		}
		return false, ErrInvalidHash
	}

	rounds, err := sha256CryptRounds(record)
	if err != nil {
		return false, err
	}
	// Refuse records far more expensive than what this process produces.
	if rounds > h.rounds*2 {
		return false, ErrInvalidHash
	}

	if !crypt.SHA256.Available() {
		return false, backendError(AlgorithmSHA256Crypt, errCryptUnavailable)
	}

	err = crypt.SHA256.New().Verify(record, []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, crypt.ErrKeyMismatch):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
}

// sha256CryptRounds extracts the round count from a $5$ record.
// Records without an explicit rounds field use the crypt default.
func sha256CryptRounds(record string) (int, error) {
	parts := strings.Split(record, "$")
	// "", "5", ["rounds=N",] salt, digest
	if len(parts) != 4 && len(parts) != 5 {
		return 0, ErrInvalidHash
	}
	if len(parts) == 4 {
		return sha256CryptDefaultRounds, nil
	}

	v, ok := strings.CutPrefix(parts[2], "rounds=")
	if !ok {
		return 0, ErrInvalidHash
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, ErrInvalidHash
	}
	return n, nil
}

func cryptSalt(r io.Reader, n int) (string, error) {
	raw, err := randomBytes(r, n)
	if err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range raw {
		out[i] = cryptAlphabet[int(b)%len(cryptAlphabet)]
	}
	return string(out), nil
}
