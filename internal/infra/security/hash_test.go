package security

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func testHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	hasher, err := NewPasswordHasher(Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewPasswordHasher returned error: %v", err)
	}
	return hasher
}

func TestHashPasswordAndVerifySuccess(t *testing.T) {
	hasher := testHasher(t)
	password := "correct horse battery staple"

	encoded, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	parts := strings.Split(encoded, "$")
	if len(parts) != 5 {
		t.Fatalf("unexpected hash format: %q", encoded)
	}
	if parts[0] != argon2Variant {
		t.Fatalf("unexpected variant: %s", parts[0])
	}
	if parts[2] != "m=8192,t=1,p=1" {
		t.Fatalf("encoded hash does not reflect configured parameters: %s", parts[2])
	}

	ok, err := hasher.Verify(password, encoded)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !ok {
		t.Fatal("Verify returned false for correct password")
	}
}

func TestVerifyPasswordIncorrectPassword(t *testing.T) {
	hasher := testHasher(t)

	encoded, err := hasher.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	ok, err := hasher.Verify("Tr0ub4dor&3", encoded)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if ok {
		t.Fatal("Verify returned true for incorrect password")
	}
}

func TestHashPasswordUsesFreshSalt(t *testing.T) {
	hasher := testHasher(t)

	first, err := hasher.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	second, err := hasher.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct encodings for repeated hashes")
	}
}

func TestVerifyPasswordInvalidFormat(t *testing.T) {
	if _, err := testHasher(t).Verify("password", "invalid-format"); err == nil {
		t.Fatal("Verify expected to return error for invalid format")
	}
}

func TestVerifyPasswordEmptyInputs(t *testing.T) {
	ok, err := testHasher(t).Verify("", "")
	if err != nil {
		t.Fatalf("Verify returned error for empty inputs: %v", err)
	}
	if ok {
		t.Fatal("Verify should return false for empty inputs")
	}
}

func TestVerifyPasswordBcryptHash(t *testing.T) {
	hasher := testHasher(t)
	legacy, err := bcrypt.GenerateFromPassword([]byte("imported-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt.GenerateFromPassword: %v", err)
	}

	ok, err := hasher.Verify("imported-secret", string(legacy))
	if err != nil {
		t.Fatalf("Verify returned error for bcrypt hash: %v", err)
	}
	if !ok {
		t.Fatal("Verify did not validate bcrypt hash")
	}

	ok, err = hasher.Verify("wrong", string(legacy))
	if err != nil {
		t.Fatalf("Verify returned error for bcrypt mismatch: %v", err)
	}
	if ok {
		t.Fatal("Verify accepted wrong password against bcrypt hash")
	}
}

func TestNewPasswordHasherRejectsWeakConfig(t *testing.T) {
	cfg := DefaultArgon2Config()
	cfg.Memory = 1024
	if _, err := NewPasswordHasher(cfg); err == nil {
		t.Fatal("expected error for memory below minimum")
	}
}
