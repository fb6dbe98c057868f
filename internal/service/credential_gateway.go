package service

import (
	"context"
	"errors"

	"github.com/nextai/nextai/internal/identity"
	"github.com/nextai/nextai/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrTokenRevoked marks a refresh token that was rotated out or signed out.
var ErrTokenRevoked = errors.New("refresh token has been revoked")

type AuthErrorKind int

const (
	AuthOther AuthErrorKind = iota
	AuthEmailInUse
	AuthInvalidEmail
	AuthWeakPassword
	AuthNotFound
	AuthWrongPassword
	AuthDisabled
)

func (k AuthErrorKind) String() string {
	switch k {
	case AuthEmailInUse:
		return "EMAIL_IN_USE"
	case AuthInvalidEmail:
		return "INVALID_EMAIL"
	case AuthWeakPassword:
		return "WEAK_PASSWORD"
	case AuthNotFound:
		return "NOT_FOUND"
	case AuthWrongPassword:
		return "WRONG_PASSWORD"
	case AuthDisabled:
		return "DISABLED"
	default:
		return "AUTH_ERROR"
	}
}

// AuthError is a classified identity failure. Message is safe to show to
// users; for AuthOther it carries the provider's own text.
type AuthError struct {
	Kind    AuthErrorKind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

var authMessages = map[AuthErrorKind]string{
	AuthEmailInUse:    "This email address is already in use",
	AuthInvalidEmail:  "Invalid email address",
	AuthWeakPassword:  "Password is too weak",
	AuthNotFound:      "No account found with this email address",
	AuthWrongPassword: "Incorrect password",
	AuthDisabled:      "This account has been disabled",
}

var providerKinds = map[string]AuthErrorKind{
	identity.CodeEmailInUse:    AuthEmailInUse,
	identity.CodeInvalidEmail:  AuthInvalidEmail,
	identity.CodeWeakPassword:  AuthWeakPassword,
	identity.CodeUserNotFound:  AuthNotFound,
	identity.CodeWrongPassword: AuthWrongPassword,
	identity.CodeUserDisabled:  AuthDisabled,
}

// classify maps a provider failure onto the kinds an operation may report.
// Codes outside allowed become AuthOther with the raw provider message.
func classify(err error, allowed ...AuthErrorKind) *AuthError {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}

	var perr *identity.Error
	if errors.As(err, &perr) {
		if kind, ok := providerKinds[perr.Code]; ok {
			for _, a := range allowed {
				if a == kind {
					return &AuthError{Kind: kind, Message: authMessages[kind], Err: err}
				}
			}
		}
		return &AuthError{Kind: AuthOther, Message: perr.Message, Err: err}
	}

	return &AuthError{Kind: AuthOther, Message: err.Error(), Err: err}
}

func otherError(message string, err error) *AuthError {
	return &AuthError{Kind: AuthOther, Message: message, Err: err}
}

type IdentityProvider interface {
	FetchSignInMethods(ctx context.Context, email string) ([]string, error)
	CreateUser(ctx context.Context, email, password, displayName string) (*models.Account, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.Account, error)
	SendPasswordResetEmail(ctx context.Context, email string) error
	DeleteUser(ctx context.Context, email string) error
}

// AccountHandle identifies a signed-in account.
type AccountHandle struct {
	UserID      string            `json:"user_id"`
	Email       string            `json:"email"`
	DisplayName string            `json:"display_name,omitempty"`
	Tokens      *models.TokenPair `json:"tokens"`
}

type CredentialGateway struct {
	provider      IdentityProvider
	jwtService    *JWTService
	refreshTokens *RefreshTokenService
	logger        *logrus.Logger
}

func NewCredentialGateway(provider IdentityProvider, jwtService *JWTService, refreshTokens *RefreshTokenService, logger *logrus.Logger) *CredentialGateway {
	return &CredentialGateway{
		provider:      provider,
		jwtService:    jwtService,
		refreshTokens: refreshTokens,
		logger:        logger,
	}
}

// AccountExists reports whether any sign-in method is registered for email.
// Provider failures are logged and reported as false, so callers can see a
// false negative while the provider is unavailable.
func (g *CredentialGateway) AccountExists(ctx context.Context, email string) bool {
	methods, err := g.provider.FetchSignInMethods(ctx, email)
	if err != nil {
		g.logger.WithError(err).Warn("Sign-in method lookup failed, treating account as absent")
		return false
	}
	return len(methods) > 0
}

func (g *CredentialGateway) CreateAccount(ctx context.Context, email, password, displayName string) (*AccountHandle, error) {
	account, err := g.provider.CreateUser(ctx, email, password, displayName)
	if err != nil {
		return nil, classify(err, AuthEmailInUse, AuthInvalidEmail, AuthWeakPassword)
	}
	return g.openSession(ctx, account)
}

func (g *CredentialGateway) SignIn(ctx context.Context, email, password string) (*AccountHandle, error) {
	account, err := g.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, classify(err, AuthNotFound, AuthWrongPassword, AuthInvalidEmail, AuthDisabled)
	}
	return g.openSession(ctx, account)
}

func (g *CredentialGateway) SendPasswordResetEmail(ctx context.Context, email string) error {
	if err := g.provider.SendPasswordResetEmail(ctx, email); err != nil {
		return classify(err, AuthNotFound, AuthInvalidEmail)
	}
	return nil
}

// DeleteAccount removes the account behind handle and revokes the session it
// was issued.
func (g *CredentialGateway) DeleteAccount(ctx context.Context, handle *AccountHandle) error {
	if err := g.provider.DeleteUser(ctx, handle.Email); err != nil {
		return otherError("Failed to delete account", err)
	}

	if handle.Tokens == nil {
		return nil
	}
	claims, err := g.jwtService.VerifyTokenType(handle.Tokens.RefreshToken, TokenTypeRefresh)
	if err != nil {
		return otherError("Invalid refresh token", err)
	}
	if err := g.refreshTokens.RevokeFamily(ctx, claims.FamilyID); err != nil {
		return otherError("Failed to revoke session", err)
	}
	return nil
}

// SignOut revokes the refresh token's whole rotation family.
func (g *CredentialGateway) SignOut(ctx context.Context, refreshToken string) error {
	claims, err := g.jwtService.VerifyTokenType(refreshToken, TokenTypeRefresh)
	if err != nil {
		return otherError("Invalid refresh token", err)
	}

	if err := g.refreshTokens.RevokeFamily(ctx, claims.FamilyID); err != nil {
		g.logger.WithError(err).Error("Failed to revoke refresh token family")
		return otherError("Failed to sign out", err)
	}

	g.logger.WithField("user_id", claims.UserID).Info("User signed out")
	return nil
}

// Refresh rotates a refresh token. Each token rotates at most once; presenting
// a consumed or revoked token revokes its family.
func (g *CredentialGateway) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	claims, err := g.jwtService.VerifyTokenType(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, otherError("Invalid refresh token", err)
	}

	if _, err := g.refreshTokens.Consume(ctx, claims.ID, claims.FamilyID); err != nil {
		switch {
		case errors.Is(err, ErrRefreshTokenReused):
			g.logger.WithField("family_id", claims.FamilyID).Warn("Revoked refresh token reused, revoking family")
			if err := g.refreshTokens.RevokeFamily(ctx, claims.FamilyID); err != nil {
				g.logger.WithError(err).Error("Failed to revoke token family")
			}
			return nil, otherError("Refresh token has been revoked", ErrTokenRevoked)
		case errors.Is(err, ErrRefreshTokenNotFound):
			return nil, otherError("Refresh token has been revoked", ErrTokenRevoked)
		}
		g.logger.WithError(err).Error("Failed to consume refresh token")
		return nil, otherError("Failed to refresh session", err)
	}

	issued, err := g.jwtService.IssueTokens(claims.UserID, claims.Email, claims.FamilyID)
	if err != nil {
		return nil, otherError("Failed to refresh session", err)
	}

	if err := g.refreshTokens.Store(ctx, issued.RefreshJTI, claims.UserID, claims.Email, issued.FamilyID, issued.RefreshExpiresAt); err != nil {
		return nil, otherError("Failed to refresh session", err)
	}

	return issued.Pair, nil
}

func (g *CredentialGateway) openSession(ctx context.Context, account *models.Account) (*AccountHandle, error) {
	issued, err := g.jwtService.IssueTokens(account.UserID, account.Email, "")
	if err != nil {
		return nil, otherError("Failed to start session", err)
	}

	if err := g.refreshTokens.Store(ctx, issued.RefreshJTI, account.UserID, account.Email, issued.FamilyID, issued.RefreshExpiresAt); err != nil {
		return nil, otherError("Failed to start session", err)
	}

	return &AccountHandle{
		UserID:      account.UserID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		Tokens:      issued.Pair,
	}, nil
}

// AuthMessage returns the user-facing text for err.
func AuthMessage(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	return "Something went wrong, please try again"
}
