package handlers

import (
	"errors"
	"net/http"

	"github.com/nextai/nextai/internal/identity"
	"github.com/nextai/nextai/internal/service"
	"github.com/sirupsen/logrus"
)

type AuthHandlers struct {
	accounts *service.AccountService
	gateway  *service.CredentialGateway
	logger   *logrus.Logger
}

func NewAuthHandlers(accounts *service.AccountService, gateway *service.CredentialGateway, logger *logrus.Logger) *AuthHandlers {
	return &AuthHandlers{
		accounts: accounts,
		gateway:  gateway,
		logger:   logger,
	}
}

type SignUpRequest struct {
	FullName        string `json:"full_name" validate:"required,max=100"`
	Email           string `json:"email" validate:"max=254"`
	DateOfBirth     string `json:"date_of_birth" validate:"max=32"`
	Password        string `json:"password" validate:"max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"max=128"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *AuthHandlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := decodeRequest(r, &req); err != nil {
		respondWithRequestError(w, err)
		return
	}

	handle, err := h.accounts.SignUp(r.Context(), service.SignUpInput{
		FullName:        req.FullName,
		Email:           req.Email,
		DateOfBirth:     req.DateOfBirth,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.respondWithAccountError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, handle)
}

func (h *AuthHandlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decodeRequest(r, &req); err != nil {
		respondWithRequestError(w, err)
		return
	}

	handle, err := h.gateway.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondWithAccountError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, handle)
}

func (h *AuthHandlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := decodeRequest(r, &req); err != nil {
		respondWithRequestError(w, err)
		return
	}

	pair, err := h.gateway.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.respondWithAccountError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, pair)
}

func (h *AuthHandlers) SignOut(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := decodeRequest(r, &req); err != nil {
		respondWithRequestError(w, err)
		return
	}

	if err := h.gateway.SignOut(r.Context(), req.RefreshToken); err != nil {
		h.respondWithAccountError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Signed out successfully"})
}

func (h *AuthHandlers) respondWithAccountError(w http.ResponseWriter, err error) {
	if respondWithValidationError(w, err) {
		return
	}

	var authErr *service.AuthError
	if !errors.As(err, &authErr) {
		h.logger.WithError(err).Error("Account request failed")
		respondWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong, please try again")
		return
	}

	status, code := authErrorStatus(authErr)
	message := authErr.Message
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).Error("Identity backend failure")
		message = "Something went wrong, please try again"
	}
	respondWithError(w, status, code, message)
}

func authErrorStatus(err *service.AuthError) (int, string) {
	switch err.Kind {
	case service.AuthEmailInUse:
		return http.StatusConflict, "EMAIL_IN_USE"
	case service.AuthInvalidEmail:
		return http.StatusBadRequest, "INVALID_EMAIL"
	case service.AuthWeakPassword:
		return http.StatusBadRequest, "WEAK_PASSWORD"
	case service.AuthNotFound:
		return http.StatusNotFound, "ACCOUNT_NOT_FOUND"
	case service.AuthWrongPassword:
		return http.StatusUnauthorized, "WRONG_PASSWORD"
	case service.AuthDisabled:
		return http.StatusForbidden, "ACCOUNT_DISABLED"
	}

	switch {
	case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrTokenRevoked):
		return http.StatusUnauthorized, "INVALID_TOKEN"
	}

	var perr *identity.Error
	if errors.As(err, &perr) && perr.Code != identity.CodeInternal {
		return http.StatusBadRequest, "AUTH_ERROR"
	}
	return http.StatusInternalServerError, "AUTH_ERROR"
}
