package handlers

import (
	"microfin-loans/internal/core/engine"
	"microfin-loans/internal/core/services"
	"microfin-loans/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// CalculatorHandler handles the public loan calculator
type CalculatorHandler struct {
	loanService *services.LoanService
}

// NewCalculatorHandler creates a new calculator handler
func NewCalculatorHandler(loanService *services.LoanService) *CalculatorHandler {
	return &CalculatorHandler{loanService: loanService}
}

// QuoteRequest represents a calculator request
type QuoteRequest struct {
	Principal   decimal.Decimal  `json:"principal" swaggertype:"string" example:"10000.00"`
	AnnualRate  *decimal.Decimal `json:"annual_rate,omitempty" swaggertype:"string" example:"24"`
	TenorMonths int              `json:"tenor_months" example:"12"`
	StartDate   string           `json:"start_date,omitempty" example:"2024-03-15"`
}

// Quote prices a loan and returns its schedule
// @Summary Loan quote
// @Description Monthly installment, totals and schedule for a prospective loan (public)
// @Tags Calculator
// @Accept json
// @Produce json
// @Param body body QuoteRequest true "Loan terms"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /calculator/quote [post]
func (h *CalculatorHandler) Quote(c *fiber.Ctx) error {
	var req QuoteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return handleError(c, err, "Failed to parse start date")
	}

	quote, err := h.loanService.Quote(c.Context(), &services.QuoteInput{
		Principal:   req.Principal,
		AnnualRate:  req.AnnualRate,
		TenorMonths: req.TenorMonths,
		StartDate:   start,
	})
	if err != nil {
		return handleError(c, err, "Failed to compute quote")
	}

	return response.Success(c, "Quote computed successfully", quote)
}

// Policy returns the product limits
// @Summary Loan policy
// @Description Amount and tenor limits plus default rates (public)
// @Tags Calculator
// @Produce json
// @Success 200 {object} response.Response
// @Router /calculator/policy [get]
func (h *CalculatorHandler) Policy(c *fiber.Ctx) error {
	p := h.loanService.Policy()
	return response.Success(c, "Policy retrieved successfully", fiber.Map{
		"min_loan_amount":            p.MinLoanAmount.StringFixed(2),
		"max_loan_amount":            p.MaxLoanAmount.StringFixed(2),
		"min_tenor_months":           p.MinTenorMonths,
		"max_tenor_months":           p.MaxTenorMonths,
		"default_annual_rate":        p.DefaultAnnualRate.String(),
		"default_penalty_grace_days": p.DefaultPenaltyGraceDays,
		"default_penalty_daily_rate": p.DefaultPenaltyDailyRate.String(),
		"currency":                   engine.CurrencyCode,
	})
}
