package handlers

import (
	"errors"
	"net/http"

	"github.com/nextai/nextai/internal/middleware"
	"github.com/nextai/nextai/internal/models"
	"github.com/nextai/nextai/internal/repository"
	"github.com/nextai/nextai/internal/service"
	"github.com/sirupsen/logrus"
)

type ProfileHandlers struct {
	accounts *service.AccountService
	logger   *logrus.Logger
}

func NewProfileHandlers(accounts *service.AccountService, logger *logrus.Logger) *ProfileHandlers {
	return &ProfileHandlers{
		accounts: accounts,
		logger:   logger,
	}
}

type FinancialRequest struct {
	CreditScore       *float64 `json:"credit_score" validate:"required"`
	AnnualIncome      *float64 `json:"annual_income" validate:"required"`
	DebtToIncomeRatio *float64 `json:"debt_to_income_ratio" validate:"required"`
}

type PaymentPlanRequest struct {
	PaymentType string  `json:"payment_type" validate:"required,oneof=cash finance"`
	Price       float64 `json:"price" validate:"required"`
	DownPayment float64 `json:"down_payment"`
	TermMonths  int     `json:"term_months" validate:"required_if=PaymentType finance"`
}

func (h *ProfileHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
		return
	}

	profile, err := h.accounts.Profile(r.Context(), claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "PROFILE_NOT_FOUND", "Profile not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load profile")
		respondWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load profile")
		return
	}

	respondWithJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandlers) GetFinancial(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
		return
	}

	data, err := h.accounts.Financial(r.Context(), claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "FINANCIAL_DATA_NOT_FOUND", "Financial information not provided yet")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load financial data")
		respondWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load financial information")
		return
	}

	respondWithJSON(w, http.StatusOK, data)
}

func (h *ProfileHandlers) PutFinancial(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
		return
	}

	var req FinancialRequest
	if err := decodeRequest(r, &req); err != nil {
		respondWithRequestError(w, err)
		return
	}

	data := &models.FinancialData{
		CreditScore:       *req.CreditScore,
		AnnualIncome:      *req.AnnualIncome,
		DebtToIncomeRatio: *req.DebtToIncomeRatio,
	}
	if err := h.accounts.SaveFinancial(r.Context(), claims.UserID, data); err != nil {
		if respondWithValidationError(w, err) {
			return
		}
		h.logger.WithError(err).Error("Failed to save financial data")
		respondWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save financial information")
		return
	}

	respondWithJSON(w, http.StatusOK, data)
}

// PlanPayment prices a vehicle purchase as cash or financed against the
// caller's stored credit score.
func (h *ProfileHandlers) PlanPayment(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
		return
	}

	var req PaymentPlanRequest
	if err := decodeRequest(r, &req); err != nil {
		respondWithRequestError(w, err)
		return
	}

	plan, err := h.accounts.PlanPayment(r.Context(), claims.UserID, service.PlanInput{
		PaymentType: req.PaymentType,
		Price:       req.Price,
		DownPayment: req.DownPayment,
		TermMonths:  req.TermMonths,
	})
	if errors.Is(err, repository.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "FINANCIAL_DATA_NOT_FOUND", "Financial information not provided yet")
		return
	}
	if err != nil {
		if respondWithValidationError(w, err) {
			return
		}
		h.logger.WithError(err).Error("Failed to compute payment plan")
		respondWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to compute payment plan")
		return
	}

	respondWithJSON(w, http.StatusOK, plan)
}
