package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nextai/nextai/internal/models"
	"github.com/nextai/nextai/internal/repository"
	"github.com/nextai/nextai/internal/validation"
	"github.com/sirupsen/logrus"
)

type SignUpInput struct {
	FullName        string
	Email           string
	DateOfBirth     string
	Password        string
	ConfirmPassword string
}

type AccountService struct {
	gateway  *CredentialGateway
	profiles *repository.ProfileRepository
	logger   *logrus.Logger
	now      func() time.Time
}

func NewAccountService(gateway *CredentialGateway, profiles *repository.ProfileRepository, logger *logrus.Logger) *AccountService {
	return &AccountService{
		gateway:  gateway,
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
	}
}

// SignUp runs the registration checks in order (email, availability, age,
// password, confirmation), creates the account and stores the profile. The
// account is removed again when the profile cannot be stored.
func (s *AccountService) SignUp(ctx context.Context, in SignUpInput) (*AccountHandle, error) {
	email := models.NormalizeEmail(in.Email)

	if err := validation.Email(email); err != nil {
		return nil, err
	}

	if s.gateway.AccountExists(ctx, email) {
		return nil, &AuthError{Kind: AuthEmailInUse, Message: authMessages[AuthEmailInUse]}
	}

	if err := validation.Age(in.DateOfBirth, s.now()); err != nil {
		return nil, err
	}

	if err := validation.Password(in.Password); err != nil {
		return nil, err
	}

	if err := validation.PasswordMatch(in.Password, in.ConfirmPassword); err != nil {
		return nil, err
	}

	fullName := strings.TrimSpace(in.FullName)
	handle, err := s.gateway.CreateAccount(ctx, email, in.Password, fullName)
	if err != nil {
		return nil, err
	}

	profile := &models.UserProfile{
		UserID:      handle.UserID,
		FullName:    fullName,
		Email:       handle.Email,
		DateOfBirth: strings.TrimSpace(in.DateOfBirth),
	}
	if err := s.profiles.SaveProfile(ctx, profile); err != nil {
		logger := s.logger.WithError(err).WithField("user_id", handle.UserID)
		logger.Error("Profile was not saved, rolling back account")
		// Leave no account without a profile so the email can sign up again.
		if rbErr := s.gateway.DeleteAccount(ctx, handle); rbErr != nil {
			logger.WithField("rollback_error", rbErr.Error()).Error("Failed to roll back account")
		}
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	s.logger.WithField("user_id", handle.UserID).Info("User signed up")
	return handle, nil
}

func (s *AccountService) Profile(ctx context.Context, userID string) (*models.UserProfile, error) {
	return s.profiles.GetProfile(ctx, userID)
}

// SaveFinancial validates and stores the financial intake.
func (s *AccountService) SaveFinancial(ctx context.Context, userID string, data *models.FinancialData) error {
	if err := validation.Financial(data.CreditScore, data.AnnualIncome, data.DebtToIncomeRatio); err != nil {
		return err
	}
	return s.profiles.SaveFinancial(ctx, userID, data)
}

func (s *AccountService) Financial(ctx context.Context, userID string) (*models.FinancialData, error) {
	return s.profiles.GetFinancial(ctx, userID)
}
