// Package identity is the self-hosted identity provider: it owns credential
// storage (bcrypt hashes in DynamoDB) and reports failures with provider
// error codes.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nextai/nextai/internal/models"
	"github.com/nextai/nextai/internal/repository"
	"github.com/nextai/nextai/internal/validation"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	SignInMethodPassword = "password"

	minProviderPasswordLength = 6
	maxProviderPasswordBytes  = 72
)

type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	UpdatePasswordHash(ctx context.Context, email, passwordHash string) error
	Delete(ctx context.Context, email string) error
}

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Provider struct {
	accounts   AccountStore
	mailer     Mailer
	bcryptCost int
	logger     *logrus.Logger
}

func NewProvider(accounts AccountStore, mailer Mailer, bcryptCost int, logger *logrus.Logger) *Provider {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Provider{
		accounts:   accounts,
		mailer:     mailer,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// FetchSignInMethods lists the sign-in methods registered for email.
func (p *Provider) FetchSignInMethods(ctx context.Context, email string) ([]string, error) {
	if err := validation.Email(email); err != nil {
		return nil, newError(CodeInvalidEmail, "The email address is badly formatted.")
	}

	_, err := p.accounts.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, internalError("failed to look up account", err)
	}

	return []string{SignInMethodPassword}, nil
}

func (p *Provider) CreateUser(ctx context.Context, email, password, displayName string) (*models.Account, error) {
	if err := validation.Email(email); err != nil {
		return nil, newError(CodeInvalidEmail, "The email address is badly formatted.")
	}
	if len(password) < minProviderPasswordLength {
		return nil, newError(CodeWeakPassword, "Password should be at least 6 characters.")
	}
	if len(password) > maxProviderPasswordBytes {
		return nil, newError(CodeWeakPassword, "Password should be at most 72 bytes.")
	}

	hash, err := p.HashPassword(password)
	if err != nil {
		return nil, internalError("failed to hash password", err)
	}

	account := &models.Account{
		UserID:       uuid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
	}

	if err := p.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			return nil, newError(CodeEmailInUse, "The email address is already in use by another account.")
		}
		return nil, internalError("failed to create account", err)
	}

	p.logger.WithField("user_id", account.UserID).Info("Account created")
	return account, nil
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*models.Account, error) {
	if err := validation.Email(email); err != nil {
		return nil, newError(CodeInvalidEmail, "The email address is badly formatted.")
	}

	account, err := p.accounts.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, newError(CodeUserNotFound, "There is no user record corresponding to this identifier.")
	}
	if err != nil {
		return nil, internalError("failed to look up account", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, newError(CodeWrongPassword, "The password is invalid.")
	}

	if account.Disabled {
		return nil, newError(CodeUserDisabled, "The user account has been disabled by an administrator.")
	}

	return account, nil
}

// SendPasswordResetEmail sends the provider's own reset notice.
func (p *Provider) SendPasswordResetEmail(ctx context.Context, email string) error {
	if err := validation.Email(email); err != nil {
		return newError(CodeInvalidEmail, "The email address is badly formatted.")
	}

	account, err := p.accounts.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return newError(CodeUserNotFound, "There is no user record corresponding to this identifier.")
	}
	if err != nil {
		return internalError("failed to look up account", err)
	}

	body := fmt.Sprintf("Hello %s,\n\nA password reset was requested for your NextAI account. "+
		"If you did not request it, you can ignore this email.\n", displayNameOr(account))
	if err := p.mailer.Send(ctx, account.Email, "Reset your NextAI password", body); err != nil {
		return internalError("failed to send password reset email", err)
	}

	return nil
}

// UpdatePasswordHash installs an already-hashed credential.
func (p *Provider) UpdatePasswordHash(ctx context.Context, email, passwordHash string) error {
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return internalError("refusing to store a non-bcrypt credential", err)
	}

	if err := p.accounts.UpdatePasswordHash(ctx, email, passwordHash); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return newError(CodeUserNotFound, "There is no user record corresponding to this identifier.")
		}
		return internalError("failed to update password", err)
	}

	return nil
}

// DeleteUser removes the account registered for email.
func (p *Provider) DeleteUser(ctx context.Context, email string) error {
	if err := p.accounts.Delete(ctx, email); err != nil {
		return internalError("failed to delete account", err)
	}
	p.logger.WithField("email", email).Info("Account deleted")
	return nil
}

func (p *Provider) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func displayNameOr(account *models.Account) string {
	if account.DisplayName != "" {
		return account.DisplayName
	}
	return account.Email
}
