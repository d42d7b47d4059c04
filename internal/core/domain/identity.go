package domain

import (
	"strings"
	"time"
)

// User mirrors the persisted representation in the users table.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	FullName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Sanitized returns a copy of the user without credential material.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	return u
}

// ProfilePatch lists the profile fields a caller may change. Nil means absent.
type ProfilePatch struct {
	FullName *string
	Email    *string
}

// Normalize trims present fields and drops the ones left blank.
func (p ProfilePatch) Normalize() ProfilePatch {
	return ProfilePatch{
		FullName: trimmedOrNil(p.FullName),
		Email:    trimmedOrNil(p.Email),
	}
}

// IsEmpty reports whether the patch carries no field to apply.
func (p ProfilePatch) IsEmpty() bool {
	return p.FullName == nil && p.Email == nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
