package security_test

import (
	"strings"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/security"
	"golang.org/x/crypto/bcrypt"
)

func fastConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8 * 1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	cfg := fastConfig()

	hash, err := security.HashPassword("very-secure-password", cfg)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if hash == "" || hash == "very-secure-password" || strings.Contains(hash, "very-secure-password") {
		t.Fatalf("hash leaks plaintext: %q", hash)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Fatalf("unexpected hash format %q", hash)
	}

	ok, err := security.VerifyPassword("very-secure-password", hash)
	if err != nil || !ok {
		t.Fatalf("VerifyPassword failed for the correct password: ok=%v err=%v", ok, err)
	}

	ok, err = security.VerifyPassword("bogus-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for invalid password: %v", err)
	}
	if ok {
		t.Fatal("VerifyPassword returned true for incorrect password")
	}
}

func TestHashPasswordIsSalted(t *testing.T) {
	cfg := fastConfig()
	a, err := security.HashPassword("same-password", cfg)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := security.HashPassword("same-password", cfg)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct hashes for the same password")
	}
}

func TestVerifyPasswordBadHash(t *testing.T) {
	for _, encoded := range []string{"not-a-hash", "$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA", "$2a$bogus"} {
		if _, err := security.VerifyPassword("irrelevant", encoded); err == nil {
			t.Fatalf("expected error for malformed hash %q", encoded)
		}
	}
}

func TestVerifyLegacyBcryptAndRehash(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	ok, err := security.VerifyPassword("old-password", string(legacy))
	if err != nil || !ok {
		t.Fatalf("expected legacy hash to verify: ok=%v err=%v", ok, err)
	}
	ok, err = security.VerifyPassword("wrong", string(legacy))
	if err != nil || ok {
		t.Fatalf("expected legacy mismatch: ok=%v err=%v", ok, err)
	}

	cfg := fastConfig()
	if !security.NeedsRehash(string(legacy), cfg) {
		t.Fatal("legacy hashes should need a rehash")
	}
	current, err := security.HashPassword("old-password", cfg)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if security.NeedsRehash(current, cfg) {
		t.Fatal("fresh hash should not need a rehash")
	}
	stronger := cfg
	stronger.ArgonTime = 3
	if !security.NeedsRehash(current, stronger) {
		t.Fatal("weaker parameters should need a rehash")
	}
}

func TestResetToken(t *testing.T) {
	raw, digest, err := security.NewResetToken()
	if err != nil {
		t.Fatalf("NewResetToken: %v", err)
	}
	if raw == "" || digest == "" || raw == digest {
		t.Fatalf("unexpected token pair %q %q", raw, digest)
	}
	if security.HashResetToken(raw) != digest {
		t.Fatal("digest does not match raw token")
	}
	other, _, err := security.NewResetToken()
	if err != nil {
		t.Fatalf("NewResetToken: %v", err)
	}
	if other == raw {
		t.Fatal("expected unique tokens")
	}
}
