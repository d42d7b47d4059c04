package domain

import (
	"crypto/subtle"
	"time"
)

// OTPPurpose discriminates challenges that share the otps table.
type OTPPurpose string

const (
	OTPPurposeSignup OTPPurpose = "signup"
	OTPPurposeLogin  OTPPurpose = "login"
)

// Valid reports whether the purpose is one the ledger understands.
func (p OTPPurpose) Valid() bool {
	return p == OTPPurposeSignup || p == OTPPurposeLogin
}

// OTPChallenge is a single issued one-time passcode with its own lifecycle.
type OTPChallenge struct {
	ID        int64
	Email     string
	Code      string
	Purpose   OTPPurpose
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// IsExpired reports whether the challenge has elapsed its validity window.
func (c OTPChallenge) IsExpired(at time.Time) bool {
	return !c.ExpiresAt.After(at)
}

// IsPending returns true while the challenge can still be verified or resent.
func (c OTPChallenge) IsPending(at time.Time) bool {
	return !c.Used && !c.IsExpired(at)
}

// Matches compares the supplied code against the stored one in constant time.
func (c OTPChallenge) Matches(code string) bool {
	if len(code) != len(c.Code) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(c.Code)) == 1
}

// Consumable applies the full verification predicate except the email scope,
// which callers enforce through the lookup itself.
func (c OTPChallenge) Consumable(code string, at time.Time) bool {
	return c.IsPending(at) && c.Matches(code)
}

// AccessToken is a signed bearer token handed to the client.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// AccessTokenType is the token_type value returned alongside access tokens.
const AccessTokenType = "bearer"
