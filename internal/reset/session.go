// Package reset drives the password-reset workflow: email entry, emailed
// verification code, new password, completion.
package reset

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/nextai/nextai/internal/repository"
	"github.com/nextai/nextai/internal/validation"
)

type Step string

const (
	StepEmailEntry    Step = "email"
	StepCodeEntry     Step = "code"
	StepPasswordEntry Step = "password"
	StepComplete      Step = "complete"
)

var (
	ErrBusy            = errors.New("a submission is already in progress for this session")
	ErrInvalidStep     = errors.New("action not allowed in the current step")
	ErrAccountNotFound = errors.New("no account registered for this email")
	ErrDeliveryFailed  = errors.New("verification code could not be delivered")
	ErrSessionNotFound = errors.New("reset session not found")
)

// Session is one user's progress through the workflow. Use it by pointer.
type Session struct {
	ID        string    `json:"id"`
	Step      Step      `json:"step"`
	Email     string    `json:"email,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`

	inFlight atomic.Bool
}

func NewSession(id string) *Session {
	return &Session{ID: id, Step: StepEmailEntry}
}

func (s *Session) acquire() bool {
	return s.inFlight.CompareAndSwap(false, true)
}

func (s *Session) release() {
	s.inFlight.Store(false)
}

// Message returns the text shown to the user for a workflow failure.
// Backend error text never appears here.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		return verr.Message
	}

	switch {
	case errors.Is(err, ErrAccountNotFound):
		return "No account found with this email address"
	case errors.Is(err, ErrDeliveryFailed):
		return "We could not send the verification code, please try again"
	case errors.Is(err, ErrBusy):
		return "Your previous request is still being processed"
	case errors.Is(err, ErrInvalidStep):
		return "This step is not available right now"
	case errors.Is(err, ErrSessionNotFound):
		return "Your reset session has expired, please start again"
	case errors.Is(err, repository.ErrCodeNotFound):
		return "Verification code not found, please request a new one"
	case errors.Is(err, repository.ErrCodeAlreadyUsed):
		return "This verification code has already been used"
	case errors.Is(err, repository.ErrCodeExpired):
		return "Verification code has expired, please request a new one"
	case errors.Is(err, repository.ErrCodeMismatch):
		return "Invalid verification code"
	default:
		return "Something went wrong, please try again"
	}
}
