package security

import (
	"testing"

	"github.com/amouradev/amoura-backend/pkg/config"
)

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    64,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerify(t *testing.T) {
	hash, err := HashPassword("correct horse", testPasswordConfig())
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	ok, err := VerifyPassword("correct horse", hash)
	if err != nil || !ok {
		t.Fatalf("verify matching = %t, %v; want true", ok, err)
	}

	ok, err = VerifyPassword("wrong", hash)
	if err != nil || ok {
		t.Fatalf("verify mismatching = %t, %v; want false", ok, err)
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	if _, err := VerifyPassword("pw", "not-a-hash"); err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}

func TestHashRejectsEmptyPassword(t *testing.T) {
	if _, err := HashPassword("", testPasswordConfig()); err == nil {
		t.Fatal("expected error for empty password")
	}
}
