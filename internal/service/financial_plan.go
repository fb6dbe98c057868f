package service

import (
	"context"
	"math"

	"github.com/nextai/nextai/internal/models"
	"github.com/nextai/nextai/internal/validation"
)

const (
	PaymentCash    = "cash"
	PaymentFinance = "finance"
)

type aprTier struct {
	minScore float64
	apr      float64
}

// Tiers run from the best score band down; 850 is the top of the scale.
var aprTiers = []aprTier{
	{minScore: 760, apr: 0.0499},
	{minScore: 700, apr: 0.0599},
	{minScore: 650, apr: 0.0699},
	{minScore: 600, apr: 0.0899},
	{minScore: 300, apr: 0.1199},
}

// InterestRate returns the APR offered for a credit score.
func InterestRate(creditScore float64) (float64, error) {
	if creditScore > 850 {
		return 0, validation.ErrCreditScoreRange
	}
	for _, tier := range aprTiers {
		if creditScore >= tier.minScore {
			return tier.apr, nil
		}
	}
	return 0, validation.ErrCreditScoreRange
}

type PlanInput struct {
	PaymentType string
	Price       float64
	DownPayment float64
	TermMonths  int
}

// FinancePlan amortizes the financed amount over the term at the APR for
// creditScore. The monthly payment is rounded to cents; the total is the
// rounded sum of the unrounded payments plus the down payment.
func FinancePlan(in PlanInput, creditScore float64) (*models.PaymentPlan, error) {
	if err := validation.PaymentPlan(in.Price, in.DownPayment, in.TermMonths); err != nil {
		return nil, err
	}
	apr, err := InterestRate(creditScore)
	if err != nil {
		return nil, err
	}

	principal := in.Price - in.DownPayment
	rate := apr / 12
	n := float64(in.TermMonths)
	monthly := principal * rate / (1 - math.Pow(1+rate, -n))

	return &models.PaymentPlan{
		PaymentType:    PaymentFinance,
		Price:          in.Price,
		DownPayment:    in.DownPayment,
		TermMonths:     in.TermMonths,
		APR:            apr,
		MonthlyPayment: roundCents(monthly),
		TotalPayment:   roundCents(monthly*n) + in.DownPayment,
	}, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// PlanPayment prices a purchase for the user. Cash needs no financial
// profile; financing uses the stored credit score.
func (s *AccountService) PlanPayment(ctx context.Context, userID string, in PlanInput) (*models.PaymentPlan, error) {
	if in.PaymentType == PaymentCash {
		if in.Price <= 0 {
			return nil, validation.ErrPriceRange
		}
		return &models.PaymentPlan{
			PaymentType:  PaymentCash,
			Price:        in.Price,
			TotalPayment: in.Price,
		}, nil
	}

	data, err := s.profiles.GetFinancial(ctx, userID)
	if err != nil {
		return nil, err
	}

	plan, err := FinancePlan(in, data.CreditScore)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", userID).WithField("apr", plan.APR).Debug("Financing plan computed")
	return plan, nil
}
