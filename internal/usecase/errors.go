package usecase

import "errors"

var (
	// ErrEmailTaken indicates another account already uses the email address.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials indicates the email or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrOTPInvalidOrExpired indicates the challenge is unknown, used, expired or the code is wrong.
	ErrOTPInvalidOrExpired = errors.New("invalid or expired otp")
	// ErrOTPExpired indicates the challenge can no longer be resent.
	ErrOTPExpired = errors.New("otp expired")
	// ErrUserNotFound indicates the user row no longer exists.
	ErrUserNotFound = errors.New("user not found")
	// ErrTaskNotFound indicates the task does not exist or belongs to another user.
	ErrTaskNotFound = errors.New("task not found")
	// ErrNoFieldsToUpdate indicates a profile patch without any field.
	ErrNoFieldsToUpdate = errors.New("no fields to update")
	// ErrInvalidTaskInput indicates a task payload failed validation.
	ErrInvalidTaskInput = errors.New("invalid task input")
	// ErrInvalidInput indicates a required field is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPasswordPolicyViolation indicates the password does not satisfy the policy.
	ErrPasswordPolicyViolation = errors.New("password does not meet requirements")
	// ErrInvalidAccessToken indicates the access token is malformed or its signature is wrong.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the access token has expired.
	ErrExpiredAccessToken = errors.New("access token expired")
)
