package security

import "testing"

func BenchmarkHash_SHA256CryptDefault(b *testing.B) {
	h := NewSHA256CryptHasher(DefaultSHA256CryptRounds)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := h.Hash("Str0ng!"); err != nil {
			b.Fatalf("Hash error: %v", err)
		}
	}
}

func BenchmarkVerify_SHA256CryptDefault(b *testing.B) {
	h := NewSHA256CryptHasher(DefaultSHA256CryptRounds)
	rec, err := h.Hash("Str0ng!")
	if err != nil {
		b.Fatalf("Hash error: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ok, err := h.Verify("Str0ng!", rec)
		if err != nil || !ok {
			b.Fatalf("Verify failed: ok=%v err=%v", ok, err)
		}
	}
}
