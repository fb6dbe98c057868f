package models

import "time"

// PasswordResetRequest is the queued instruction for the reset consumer.
// It carries a bcrypt hash, never the plaintext password.
type PasswordResetRequest struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	RequestedAt  time.Time `json:"requested_at"`
}
