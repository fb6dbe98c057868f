package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/nextai/nextai/internal/repository"
	"github.com/nextai/nextai/internal/reset"
	"github.com/sirupsen/logrus"
)

type ResetHandlers struct {
	workflow *reset.Workflow
	sessions *reset.SessionStore
	logger   *logrus.Logger
}

func NewResetHandlers(workflow *reset.Workflow, sessions *reset.SessionStore, logger *logrus.Logger) *ResetHandlers {
	return &ResetHandlers{
		workflow: workflow,
		sessions: sessions,
		logger:   logger,
	}
}

type ResetEmailRequest struct {
	Email string `json:"email" validate:"max=254"`
}

type ResetCodeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"max=128"`
}

type ResetSessionResponse struct {
	ID        string     `json:"id"`
	Step      reset.Step `json:"step"`
	Email     string     `json:"email,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

type ResetErrorResponse struct {
	Error   ErrorDetail           `json:"error"`
	Session *ResetSessionResponse `json:"session,omitempty"`
}

func newResetSessionResponse(s *reset.Session) *ResetSessionResponse {
	return &ResetSessionResponse{
		ID:        s.ID,
		Step:      s.Step,
		Email:     s.Email,
		LastError: s.LastError,
	}
}

func (h *ResetHandlers) Start(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Create(r.Context())
	if err != nil {
		h.respondWithResetError(w, err, nil)
		return
	}
	respondWithJSON(w, http.StatusCreated, newResetSessionResponse(session))
}

func (h *ResetHandlers) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Load(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondWithResetError(w, err, nil)
		return
	}
	respondWithJSON(w, http.StatusOK, newResetSessionResponse(session))
}

func (h *ResetHandlers) SubmitEmail(w http.ResponseWriter, r *http.Request) {
	var req ResetEmailRequest
	if err := decodeRequest(r, &req); err != nil {
		respondWithRequestError(w, err)
		return
	}
	h.advance(w, r, func(ctx context.Context, s *reset.Session) error {
		return h.workflow.SubmitEmail(ctx, s, req.Email)
	})
}

func (h *ResetHandlers) SubmitCode(w http.ResponseWriter, r *http.Request) {
	var req ResetCodeRequest
	if err := decodeRequest(r, &req); err != nil {
		respondWithRequestError(w, err)
		return
	}
	h.advance(w, r, func(ctx context.Context, s *reset.Session) error {
		return h.workflow.SubmitCode(ctx, s, req.Code)
	})
}

func (h *ResetHandlers) SubmitPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeRequest(r, &req); err != nil {
		respondWithRequestError(w, err)
		return
	}
	h.advance(w, r, func(ctx context.Context, s *reset.Session) error {
		return h.workflow.SubmitPassword(ctx, s, req.Password, req.ConfirmPassword)
	})
}

func (h *ResetHandlers) Back(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, func(ctx context.Context, s *reset.Session) error {
		return h.workflow.Back(s)
	})
}

// advance runs one workflow action under the session lock and persists the
// resulting session.
func (h *ResetHandlers) advance(w http.ResponseWriter, r *http.Request, action func(context.Context, *reset.Session) error) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	unlock, err := h.sessions.Lock(ctx, id)
	if err != nil {
		h.respondWithResetError(w, err, nil)
		return
	}
	defer unlock()

	session, err := h.sessions.Load(ctx, id)
	if err != nil {
		h.respondWithResetError(w, err, nil)
		return
	}

	actionErr := action(ctx, session)

	if err := h.sessions.Save(ctx, session); err != nil {
		h.respondWithResetError(w, err, nil)
		return
	}

	if actionErr != nil {
		h.respondWithResetError(w, actionErr, session)
		return
	}

	respondWithJSON(w, http.StatusOK, newResetSessionResponse(session))
}

func (h *ResetHandlers) respondWithResetError(w http.ResponseWriter, err error, session *reset.Session) {
	status, code := resetErrorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).Error("Password reset request failed")
	}

	resp := ResetErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: reset.Message(err),
			Field:   validationField(err),
		},
	}
	if session != nil {
		resp.Session = newResetSessionResponse(session)
	}
	respondWithJSON(w, status, resp)
}

func resetErrorStatus(err error) (int, string) {
	switch {
	case validationField(err) != "":
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, reset.ErrAccountNotFound):
		return http.StatusNotFound, "ACCOUNT_NOT_FOUND"
	case errors.Is(err, reset.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, reset.ErrBusy):
		return http.StatusConflict, "SESSION_BUSY"
	case errors.Is(err, reset.ErrInvalidStep):
		return http.StatusConflict, "INVALID_STEP"
	case errors.Is(err, reset.ErrDeliveryFailed):
		return http.StatusBadGateway, "DELIVERY_FAILED"
	case errors.Is(err, repository.ErrCodeNotFound):
		return http.StatusBadRequest, "CODE_NOT_FOUND"
	case errors.Is(err, repository.ErrCodeAlreadyUsed):
		return http.StatusBadRequest, "CODE_ALREADY_USED"
	case errors.Is(err, repository.ErrCodeExpired):
		return http.StatusBadRequest, "CODE_EXPIRED"
	case errors.Is(err, repository.ErrCodeMismatch):
		return http.StatusBadRequest, "CODE_MISMATCH"
	case errors.Is(err, repository.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "STORE_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
