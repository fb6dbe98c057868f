package models

import "time"

// UserProfile holds non-credential sign-up data.
type UserProfile struct {
	UserID      string    `json:"user_id" dynamodbav:"user_id"`
	FullName    string    `json:"full_name" dynamodbav:"full_name"`
	Email       string    `json:"email" dynamodbav:"email"`
	DateOfBirth string    `json:"date_of_birth" dynamodbav:"date_of_birth"`
	CreatedAt   time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

func UserPK(userID string) string {
	return "USER#" + userID
}
