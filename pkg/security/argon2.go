package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"runtime"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2idPrefix = "$argon2id$"
	argon2Version  = argon2.Version
)

// Argon2Params controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params returns 64 MiB, 3 passes, CPU-bound parallelism clamped to [1..4].
func DefaultArgon2Params() Argon2Params {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}
	return Argon2Params{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: uint8(threads), // #nosec G115 -- clamped above
		SaltLength:  16,
		KeyLength:   32,
	}
}

type argon2idHasher struct {
	params Argon2Params
	rand   io.Reader
}

// NewArgon2idHasher creates a hasher producing PHC-style Argon2id records.
// Zero fields are filled from DefaultArgon2Params.
func NewArgon2idHasher(p Argon2Params) PasswordHasher {
	def := DefaultArgon2Params()
	if p.MemoryKiB == 0 {
		p.MemoryKiB = def.MemoryKiB
	}
	if p.Iterations == 0 {
		p.Iterations = def.Iterations
	}
	if p.Parallelism == 0 {
		p.Parallelism = def.Parallelism
	}
	if p.SaltLength < 8 {
		p.SaltLength = def.SaltLength
	}
	if p.KeyLength < 16 {
		p.KeyLength = def.KeyLength
	}
	return &argon2idHasher{params: p, rand: rand.Reader}
}

func (h *argon2idHasher) Algorithm() Algorithm { return AlgorithmArgon2id }

func (h *argon2idHasher) Label() string { return "Argon2id" }

// Hash format:
// $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
func (h *argon2idHasher) Hash(password string) (string, error) {
	salt, err := randomBytes(h.rand, int(h.params.SaltLength))
	if err != nil {
		return "", backendError(AlgorithmArgon2id, err)
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		h.params.Iterations,
		h.params.MemoryKiB,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		h.params.MemoryKiB,
		h.params.Iterations,
		h.params.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

func (h *argon2idHasher) Verify(password, record string) (bool, error) {
	if !strings.HasPrefix(record, argon2idPrefix) {
		if _, ok := DetectAlgorithm(record); ok {
			return false, ErrAlgorithmMismatch
		}
		return false, ErrInvalidHash
	}

	params, salt, expected, err := decodeArgon2id(record)
	if err != nil {
		return false, err
	}
	if !withinReasonableBounds(params, h.params) {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		params.Iterations,
		params.MemoryKiB,
		params.Parallelism,
		params.KeyLength,
	)
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

// withinReasonableBounds accepts older, cheaper parameters but rejects
// records that would cost far more than this process is configured for.
func withinReasonableBounds(got, limits Argon2Params) bool {
	// widen before doubling so large limits cannot wrap around
	if uint64(got.MemoryKiB) > uint64(limits.MemoryKiB)*2 {
		return false
	}
	if uint64(got.Iterations) > uint64(limits.Iterations)*2 {
		return false
	}
	if uint64(got.Parallelism) > uint64(limits.Parallelism)*2 {
		return false
	}
	if got.SaltLength < 8 || got.SaltLength > 64 {
		return false
	}
	if got.KeyLength < 16 || got.KeyLength > 128 {
		return false
	}
	return true
}

func decodeArgon2id(encoded string) (Argon2Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2Version) {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}

	return Argon2Params{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par),        // #nosec G115 -- bounded above
		SaltLength:  uint32(len(salt)), // #nosec G115 -- bounded by withinReasonableBounds
		KeyLength:   uint32(len(key)),  // #nosec G115 -- bounded by withinReasonableBounds
	}, salt, key, nil
}
