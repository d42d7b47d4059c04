package security

import (
	"errors"
	"testing"
)

func TestPasswordPolicyDefaults(t *testing.T) {
	policy := NewPasswordPolicy(PasswordPolicyConfig{})

	if err := policy.Validate("secret1", "ada@example.com", "Ada Lovelace"); err != nil {
		t.Fatalf("expected password to pass default policy, got %v", err)
	}

	assertViolation(t, policy.Validate("      ", "", ""), "required")
	assertViolation(t, policy.Validate("abc", "", ""), "min_length")
}

func TestPasswordPolicyStrength(t *testing.T) {
	policy := NewPasswordPolicy(PasswordPolicyConfig{MinLength: 8, MinZxcvbnScore: 3})

	assertViolation(t, policy.Validate("password", "", ""), "weak_password")
	if err := policy.Validate("C0mplex!Passphrase#2025", "", ""); err != nil {
		t.Fatalf("expected strong password to pass, got %v", err)
	}
}

func TestCustomPasswordValidator(t *testing.T) {
	validator := NewPasswordValidator(
		MinLengthRule(4),
		RequireLetterRule(),
	)

	if err := validator.Validate("1234"); err == nil {
		t.Fatalf("expected validation error for missing letter")
	}
	if err := validator.Validate("abc"); err == nil {
		t.Fatalf("expected validation error for short password")
	}
	if err := validator.Validate("abc1"); err != nil {
		t.Fatalf("expected password to pass custom validation, got %v", err)
	}
}

func assertViolation(t *testing.T, err error, expectedCode string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected validation error for %s", expectedCode)
	}
	var vErr *PasswordValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected PasswordValidationError, got %T", err)
	}
	if vErr.Code != expectedCode {
		t.Fatalf("expected %s code, got %s", expectedCode, vErr.Code)
	}
}
