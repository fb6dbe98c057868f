package models

import "time"

type FinancialData struct {
	CreditScore       float64   `json:"credit_score" dynamodbav:"credit_score"`
	AnnualIncome      float64   `json:"annual_income" dynamodbav:"annual_income"`
	DebtToIncomeRatio float64   `json:"debt_to_income_ratio" dynamodbav:"debt_to_income_ratio"`
	UpdatedAt         time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// PaymentPlan is the cost of buying a vehicle outright or on credit.
type PaymentPlan struct {
	PaymentType    string  `json:"payment_type"`
	Price          float64 `json:"price"`
	DownPayment    float64 `json:"down_payment"`
	TermMonths     int     `json:"term_months,omitempty"`
	APR            float64 `json:"apr,omitempty"`
	MonthlyPayment float64 `json:"monthly_payment,omitempty"`
	TotalPayment   float64 `json:"total_payment"`
}
