package models

import (
	"strings"
	"time"
)

// Account is the identity provider's credential record. It is never returned
// to clients.
type Account struct {
	UserID       string    `json:"user_id" dynamodbav:"user_id"`
	Email        string    `json:"email" dynamodbav:"email"`
	DisplayName  string    `json:"display_name,omitempty" dynamodbav:"display_name,omitempty"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	Disabled     bool      `json:"disabled" dynamodbav:"disabled"`
	CreatedAt    time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

func (a *Account) GetPK() string {
	return AccountPK(a.Email)
}

func (a *Account) GetSK() string {
	return "METADATA"
}

func AccountPK(email string) string {
	return "ACCOUNT#" + NormalizeEmail(email)
}

// NormalizeEmail lower-cases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
