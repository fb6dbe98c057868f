package identity

import (
	"errors"
	"fmt"
)

// Provider error codes. The credential gateway maps these onto its own
// taxonomy; any other code is surfaced verbatim.
const (
	CodeEmailInUse    = "auth/email-already-in-use"
	CodeInvalidEmail  = "auth/invalid-email"
	CodeWeakPassword  = "auth/weak-password"
	CodeUserNotFound  = "auth/user-not-found"
	CodeWrongPassword = "auth/wrong-password"
	CodeUserDisabled  = "auth/user-disabled"
	CodeInternal      = "auth/internal-error"
)

type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func internalError(message string, err error) *Error {
	return &Error{Code: CodeInternal, Message: message, Err: err}
}

// CodeOf returns the provider code carried by err, or "" if err is not an *Error.
func CodeOf(err error) string {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Code
	}
	return ""
}
