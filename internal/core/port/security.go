package port

import "time"

// PasswordHasher derives and checks password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// PasswordPolicy validates a candidate password in the context of the account it protects.
type PasswordPolicy interface {
	Validate(password, email, fullName string) error
}

// TokenIssuer mints and parses bearer access tokens.
type TokenIssuer interface {
	Issue(userID int64) (string, time.Time, error)
	Parse(raw string) (int64, error)
}
