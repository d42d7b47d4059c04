package security

import "strings"

const defaultMinPasswordLength = 6

// PasswordPolicyConfig tunes the registration password policy.
type PasswordPolicyConfig struct {
	MinLength      int
	MinZxcvbnScore int
	RequireLetter  bool
}

// PasswordPolicy validates passwords chosen at registration or signup.
type PasswordPolicy struct {
	cfg PasswordPolicyConfig
}

// NewPasswordPolicy builds a policy; a non-positive MinLength falls back to the default.
func NewPasswordPolicy(cfg PasswordPolicyConfig) *PasswordPolicy {
	if cfg.MinLength <= 0 {
		cfg.MinLength = defaultMinPasswordLength
	}
	return &PasswordPolicy{cfg: cfg}
}

// Validate applies the configured rules; email and full name feed the strength estimator.
func (p *PasswordPolicy) Validate(password, email, fullName string) error {
	rules := []PasswordRule{
		RequireNonBlankRule(),
		MinLengthRule(p.cfg.MinLength),
	}
	if p.cfg.RequireLetter {
		rules = append(rules, RequireLetterRule())
	}

	inputs := make([]string, 0, 3)
	if email = strings.TrimSpace(email); email != "" {
		inputs = append(inputs, email)
		if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
			inputs = append(inputs, local)
		}
	}
	if fullName = strings.TrimSpace(fullName); fullName != "" {
		inputs = append(inputs, fullName)
	}
	rules = append(rules, RequirePasswordStrengthRule(p.cfg.MinZxcvbnScore, inputs...))

	return NewPasswordValidator(rules...).Validate(password)
}
