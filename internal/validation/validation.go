// Package validation holds the local, synchronous input checks shared by the
// sign-up, password-reset and financial-profile flows.
package validation

import (
	"regexp"
	"strings"
	"time"
)

const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
	MinimumAge        = 13

	DateLayout = "2006-01-02"
)

// Error is a recoverable, user-facing validation failure.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrPasswordRequired = &Error{Field: "password", Message: "Password is required"}
	ErrPasswordTooShort = &Error{Field: "password", Message: "Password must be at least 8 characters long"}
	ErrPasswordTooLong  = &Error{Field: "password", Message: "Password must be at most 72 bytes long"}
	ErrPasswordNoUpper  = &Error{Field: "password", Message: "Password must contain at least one uppercase letter"}
	ErrPasswordNoLower  = &Error{Field: "password", Message: "Password must contain at least one lowercase letter"}
	ErrPasswordNoNumber = &Error{Field: "password", Message: "Password must contain at least one number"}
	ErrPasswordMismatch = &Error{Field: "confirm_password", Message: "Passwords do not match"}

	ErrDateOfBirthRequired = &Error{Field: "date_of_birth", Message: "Date of birth is required"}
	ErrDateOfBirthInvalid  = &Error{Field: "date_of_birth", Message: "Date of birth must be in YYYY-MM-DD format"}
	ErrUnderage            = &Error{Field: "date_of_birth", Message: "You must be at least 13 years old to create an account"}

	ErrEmailRequired = &Error{Field: "email", Message: "Email is required"}
	ErrEmailInvalid  = &Error{Field: "email", Message: "Please enter a valid email address"}

	ErrCreditScoreRange  = &Error{Field: "credit_score", Message: "Credit score must be between 300 and 850"}
	ErrAnnualIncomeRange = &Error{Field: "annual_income", Message: "Annual income must be a positive number"}
	ErrDebtToIncomeRange = &Error{Field: "debt_to_income_ratio", Message: "Debt-to-income ratio must be between 0 and 100"}

	ErrPriceRange       = &Error{Field: "price", Message: "Price must be a positive number"}
	ErrDownPaymentRange = &Error{Field: "down_payment", Message: "Down payment must be at least 0 and less than the price"}
	ErrTermRange        = &Error{Field: "term_months", Message: "Term must be between 1 and 120 months"}
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Password checks length (in runes, then in bytes), then uppercase, lowercase and digit presence, and
// reports the first rule that fails.
func Password(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len([]rune(password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	// bcrypt rejects longer input.
	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}

	var hasUpper, hasLower, hasNumber bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		}
	}

	if !hasUpper {
		return ErrPasswordNoUpper
	}
	if !hasLower {
		return ErrPasswordNoLower
	}
	if !hasNumber {
		return ErrPasswordNoNumber
	}
	return nil
}

func PasswordMatch(password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

// Age validates a YYYY-MM-DD date of birth against today. A birthday that
// falls on today counts as a completed year.
func Age(dateOfBirth string, today time.Time) error {
	dateOfBirth = strings.TrimSpace(dateOfBirth)
	if dateOfBirth == "" {
		return ErrDateOfBirthRequired
	}

	birth, err := time.Parse(DateLayout, dateOfBirth)
	if err != nil {
		return ErrDateOfBirthInvalid
	}

	if AgeOn(birth, today) < MinimumAge {
		return ErrUnderage
	}
	return nil
}

// AgeOn returns the number of completed years between birth and today.
func AgeOn(birth, today time.Time) int {
	age := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		age--
	}
	return age
}

func Email(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	if !emailPattern.MatchString(email) {
		return ErrEmailInvalid
	}
	return nil
}

func Financial(creditScore, annualIncome, debtToIncome float64) error {
	if creditScore < 300 || creditScore > 850 {
		return ErrCreditScoreRange
	}
	if annualIncome < 0 {
		return ErrAnnualIncomeRange
	}
	if debtToIncome < 0 || debtToIncome > 100 {
		return ErrDebtToIncomeRange
	}
	return nil
}

// MaxTermMonths bounds financing terms.
const MaxTermMonths = 120

// PaymentPlan checks the inputs of a financed purchase.
func PaymentPlan(price, downPayment float64, termMonths int) error {
	if price <= 0 {
		return ErrPriceRange
	}
	if downPayment < 0 || downPayment >= price {
		return ErrDownPaymentRange
	}
	if termMonths < 1 || termMonths > MaxTermMonths {
		return ErrTermRange
	}
	return nil
}
