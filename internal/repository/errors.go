package repository

import "errors"

var (
	ErrAccountExists   = errors.New("account already exists")
	ErrAccountNotFound = errors.New("account not found")
	ErrChatNotFound    = errors.New("chat not found")
	ErrNotFound        = errors.New("item not found")

	// Verification outcomes, in the order Verify evaluates them.
	ErrCodeNotFound    = errors.New("verification code not found")
	ErrCodeAlreadyUsed = errors.New("verification code already used")
	ErrCodeExpired     = errors.New("verification code expired")
	ErrCodeMismatch    = errors.New("verification code mismatch")

	// ErrStoreUnavailable wraps backend failures that are not a verification outcome.
	ErrStoreUnavailable = errors.New("verification store unavailable")
)
