package security

import (
	"errors"
	"fmt"
)

var (
	// ErrHashBackend matches every *HashBackendError via errors.Is.
	ErrHashBackend = errors.New("password hash backend unavailable")

	ErrInvalidHash       = errors.New("invalid password hash")
	ErrUnknownAlgorithm  = errors.New("unknown hash algorithm")
	ErrAlgorithmMismatch = errors.New("hash produced by a different algorithm")
)

// HashBackendError reports that a hash could not be produced because the
// underlying primitive or the secure random source failed. It is never
// recovered by falling back to another algorithm.
type HashBackendError struct {
	Algorithm Algorithm
	Err       error
}

func (e *HashBackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Algorithm, e.Err)
}

func (e *HashBackendError) Unwrap() error {
	return e.Err
}

func (e *HashBackendError) Is(target error) bool {
	return target == ErrHashBackend
}

func backendError(alg Algorithm, err error) error {
	return &HashBackendError{Algorithm: alg, Err: err}
}
