package models

import "time"

// VerificationCode is the one live password-reset code for an email.
type VerificationCode struct {
	Email     string    `json:"email" dynamodbav:"email"`
	Code      string    `json:"code" dynamodbav:"code"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"expires_at"`
	Used      bool      `json:"used" dynamodbav:"used"`
}

func (v *VerificationCode) GetPK() string {
	return "RESET_CODE#" + v.Email
}

func (v *VerificationCode) GetSK() string {
	return "METADATA"
}

// Expired reports whether now is past the absolute deadline.
func (v *VerificationCode) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}
