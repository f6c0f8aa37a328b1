package security

import (
	"errors"
	"math"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// fastHashers returns every driver tuned for test speed.
func fastHashers() []PasswordHasher {
	return []PasswordHasher{
		NewSHA256CryptHasher(SHA256CryptMinRounds),
		NewBcryptHasher(bcrypt.MinCost),
		NewArgon2idHasher(Argon2Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}),
	}
}

func TestHashAndVerify_RoundTrip(t *testing.T) {
	for _, h := range fastHashers() {
		t.Run(string(h.Algorithm()), func(t *testing.T) {
			first, err := h.Hash("Str0ng!")
			require.NoError(t, err)
			second, err := h.Hash("Str0ng!")
			require.NoError(t, err)

			assert.NotEqual(t, first, second, "salt must differ per call")

			for _, rec := range []string{first, second} {
				ok, err := h.Verify("Str0ng!", rec)
				require.NoError(t, err)
				assert.True(t, ok)
			}

			ok, err := h.Verify("wrong", first)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestSHA256Crypt_RecordFormat(t *testing.T) {
	h := NewSHA256CryptHasher(SHA256CryptMinRounds)

	rec, err := h.Hash("Abcde1!")
	require.NoError(t, err)

	parts := strings.Split(rec, "$")
	require.Len(t, parts, 5, rec)
	assert.Equal(t, "5", parts[1])
	assert.Equal(t, "rounds=1000", parts[2])
	assert.Len(t, parts[3], sha256CryptSaltLen)
	assert.Len(t, parts[4], 43)
	assert.Equal(t, "SHA-256 (crypt)", h.Label())
}

func TestSHA256Crypt_KnownVector(t *testing.T) {
	// Reference vector from the SHA-crypt specification.
	const rec = "$5$rounds=5000$toolongsaltstrin$Un/5jzAHMgOGZ5.mWJpuVolil07guHPvOW8mGRcvxa5"
	h := NewSHA256CryptHasher(5000)

	ok, err := h.Verify("This is just a test", rec)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSHA256Crypt_RejectsExpensiveRecord(t *testing.T) {
	h := NewSHA256CryptHasher(SHA256CryptMinRounds)

	ok, err := h.Verify("x", "$5$rounds=900000$abcdefghijklmnop$Un/5jzAHMgOGZ5.mWJpuVolil07guHPvOW8mGRcvxa5")
	assert.ErrorIs(t, err, ErrInvalidHash)
	assert.False(t, ok)
}

func TestSHA256Crypt_OutOfRangeRoundsUseDefault(t *testing.T) {
	h := NewSHA256CryptHasher(10).(*sha256CryptHasher)
	assert.Equal(t, DefaultSHA256CryptRounds, h.rounds)
}

func TestVerify_InvalidRecord(t *testing.T) {
	for _, h := range fastHashers() {
		ok, err := h.Verify("whatever", "not-a-hash")
		assert.ErrorIs(t, err, ErrInvalidHash, h.Algorithm())
		assert.False(t, ok)
	}
}

func TestVerify_AlgorithmMismatch(t *testing.T) {
	hashers := fastHashers()
	rec, err := hashers[0].Hash("Abcde1!")
	require.NoError(t, err)

	for _, h := range hashers[1:] {
		_, err := h.Verify("Abcde1!", rec)
		assert.ErrorIs(t, err, ErrAlgorithmMismatch, h.Algorithm())
	}
}

func TestHash_EntropyFailureIsBackendError(t *testing.T) {
	failing := iotest.ErrReader(errors.New("entropy exhausted"))

	sha := NewSHA256CryptHasher(SHA256CryptMinRounds).(*sha256CryptHasher)
	sha.rand = failing
	ar := NewArgon2idHasher(Argon2Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1}).(*argon2idHasher)
	ar.rand = failing

	for _, h := range []PasswordHasher{sha, ar} {
		rec, err := h.Hash("Abcde1!")
		assert.Empty(t, rec)
		assert.ErrorIs(t, err, ErrHashBackend, h.Algorithm())

		var be *HashBackendError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, h.Algorithm(), be.Algorithm)
		assert.Contains(t, be.Error(), "entropy exhausted")
	}
}

func TestNewHasher(t *testing.T) {
	cfg := DefaultConfig()
	h, err := NewHasher(cfg)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmSHA256Crypt, h.Algorithm())

	cfg.Algorithm = "BCRYPT"
	h, err = NewHasher(cfg)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmBcrypt, h.Algorithm())

	cfg.Algorithm = AlgorithmArgon2id
	h, err = NewHasher(cfg)
	require.NoError(t, err)
	assert.Equal(t, "Argon2id", h.Label())

	cfg.Algorithm = "md5"
	_, err = NewHasher(cfg)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestSelfTest(t *testing.T) {
	for _, h := range fastHashers() {
		assert.NoError(t, SelfTest(h), h.Algorithm())
	}

	broken := NewSHA256CryptHasher(SHA256CryptMinRounds).(*sha256CryptHasher)
	broken.rand = iotest.ErrReader(errors.New("no entropy"))
	assert.ErrorIs(t, SelfTest(broken), ErrHashBackend)
}

func TestDetectAlgorithm(t *testing.T) {
	cases := map[string]Algorithm{
		"$5$rounds=1000$salt$digest":     AlgorithmSHA256Crypt,
		"$2a$10$abcdefghijklmnopqrstuv":  AlgorithmBcrypt,
		"$argon2id$v=19$m=1,t=1,p=1$a$b": AlgorithmArgon2id,
	}
	for rec, want := range cases {
		got, ok := DetectAlgorithm(rec)
		assert.True(t, ok, rec)
		assert.Equal(t, want, got)
	}

	_, ok := DetectAlgorithm("$6$salt$digest")
	assert.False(t, ok)
}

func TestArgon2id_HighLimitsVerifyOwnRecords(t *testing.T) {
	h := NewArgon2idHasher(Argon2Params{MemoryKiB: 2048, Iterations: 1, Parallelism: 200})

	rec, err := h.Hash("Abcde1!")
	require.NoError(t, err)
	assert.Contains(t, rec, "p=200")

	ok, err := h.Verify("Abcde1!", rec)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWithinReasonableBounds_NoWraparound(t *testing.T) {
	limits := Argon2Params{MemoryKiB: math.MaxUint32, Iterations: math.MaxUint32, Parallelism: math.MaxUint8}
	got := Argon2Params{MemoryKiB: math.MaxUint32, Iterations: 3, Parallelism: math.MaxUint8, SaltLength: 16, KeyLength: 32}
	assert.True(t, withinReasonableBounds(got, limits))

	small := Argon2Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1}
	got = Argon2Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 3, SaltLength: 16, KeyLength: 32}
	assert.False(t, withinReasonableBounds(got, small))
}
