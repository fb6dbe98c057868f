package reset

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nextai/nextai/internal/models"
	"github.com/nextai/nextai/internal/repository"
	"github.com/nextai/nextai/internal/validation"
	"github.com/sirupsen/logrus"
)

type Gateway interface {
	AccountExists(ctx context.Context, email string) bool
	SendPasswordResetEmail(ctx context.Context, email string) error
}

type CodeStore interface {
	Issue(ctx context.Context, email, code string) error
	Verify(ctx context.Context, email, code string) error
}

type CodeGenerator interface {
	Generate() (string, error)
}

type CodeSender interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

type RequestQueue interface {
	Enqueue(ctx context.Context, req models.PasswordResetRequest) error
}

type Dependencies struct {
	Gateway   Gateway
	Store     CodeStore
	Generator CodeGenerator
	Sender    CodeSender
	Hasher    PasswordHasher
	Queue     RequestQueue
}

type Workflow struct {
	gateway   Gateway
	store     CodeStore
	generator CodeGenerator
	sender    CodeSender
	hasher    PasswordHasher
	queue     RequestQueue
	logger    *logrus.Logger
	now       func() time.Time
}

func NewWorkflow(deps Dependencies, logger *logrus.Logger) *Workflow {
	return &Workflow{
		gateway:   deps.Gateway,
		store:     deps.Store,
		generator: deps.Generator,
		sender:    deps.Sender,
		hasher:    deps.Hasher,
		queue:     deps.Queue,
		logger:    logger,
		now:       time.Now,
	}
}

// SubmitEmail issues and sends a verification code for an existing account
// and moves the session to code entry.
func (w *Workflow) SubmitEmail(ctx context.Context, s *Session, email string) error {
	return w.run(s, StepEmailEntry, func() error {
		return w.submitEmail(ctx, s, email)
	})
}

// SubmitCode consumes the verification code and moves the session to
// password entry.
func (w *Workflow) SubmitCode(ctx context.Context, s *Session, code string) error {
	return w.run(s, StepCodeEntry, func() error {
		return w.submitCode(ctx, s, code)
	})
}

// SubmitPassword queues the new credential and completes the session.
func (w *Workflow) SubmitPassword(ctx context.Context, s *Session, password, confirm string) error {
	return w.run(s, StepPasswordEntry, func() error {
		return w.submitPassword(ctx, s, password, confirm)
	})
}

// Back returns to the previous step. Entered values are kept.
func (w *Workflow) Back(s *Session) error {
	if !s.acquire() {
		return ErrBusy
	}
	defer s.release()

	switch s.Step {
	case StepCodeEntry:
		s.Step = StepEmailEntry
	case StepPasswordEntry:
		s.Step = StepCodeEntry
	default:
		return ErrInvalidStep
	}

	s.LastError = ""
	s.UpdatedAt = w.now()
	return nil
}

// run enforces the step and the single in-flight submission, and records
// the outcome on the session. A failed action leaves the step unchanged.
func (w *Workflow) run(s *Session, step Step, action func() error) error {
	if !s.acquire() {
		return ErrBusy
	}
	defer s.release()

	if s.Step != step {
		return ErrInvalidStep
	}

	err := action()
	s.LastError = Message(err)
	s.UpdatedAt = w.now()
	return err
}

func (w *Workflow) submitEmail(ctx context.Context, s *Session, email string) error {
	email = models.NormalizeEmail(email)
	if err := validation.Email(email); err != nil {
		return err
	}

	if !w.gateway.AccountExists(ctx, email) {
		return ErrAccountNotFound
	}

	code, err := w.generator.Generate()
	if err != nil {
		w.logger.WithError(err).Error("Failed to generate verification code")
		return fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}

	if err := w.store.Issue(ctx, email, code); err != nil {
		return err
	}

	if err := w.sender.SendVerificationCode(ctx, email, code); err != nil {
		w.logger.WithError(err).Error("Failed to send verification code")
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	if err := w.gateway.SendPasswordResetEmail(ctx, email); err != nil {
		w.logger.WithError(err).Warn("Provider reset email failed")
	}

	s.Email = email
	s.Step = StepCodeEntry
	w.logger.WithField("session_id", s.ID).Info("Verification code issued")
	return nil
}

func (w *Workflow) submitCode(ctx context.Context, s *Session, code string) error {
	code = strings.TrimSpace(code)
	if err := w.store.Verify(ctx, s.Email, code); err != nil {
		w.logger.WithField("session_id", s.ID).WithError(err).Info("Verification code rejected")
		return err
	}

	s.Step = StepPasswordEntry
	return nil
}

func (w *Workflow) submitPassword(ctx context.Context, s *Session, password, confirm string) error {
	if err := validation.Password(password); err != nil {
		return err
	}
	if err := validation.PasswordMatch(password, confirm); err != nil {
		return err
	}

	hash, err := w.hasher.HashPassword(password)
	if err != nil {
		w.logger.WithError(err).Error("Failed to hash new password")
		return fmt.Errorf("failed to hash password: %w", err)
	}

	req := models.PasswordResetRequest{
		ID:           uuid.New().String(),
		Email:        s.Email,
		PasswordHash: hash,
		RequestedAt:  w.now().UTC(),
	}
	if err := w.queue.Enqueue(ctx, req); err != nil {
		return err
	}

	if err := w.gateway.SendPasswordResetEmail(ctx, s.Email); err != nil {
		w.logger.WithError(err).Warn("Backup reset email failed")
	}

	s.Step = StepComplete
	w.logger.WithFields(logrus.Fields{
		"session_id": s.ID,
		"request_id": req.ID,
	}).Info("Password reset requested")
	return nil
}
