package handlers

import (
	"strconv"

	"microfin-loans/internal/core/domain"
	"microfin-loans/internal/core/engine"
	"microfin-loans/internal/core/services"
	"microfin-loans/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// RepaymentHandler handles installment and penalty endpoints
type RepaymentHandler struct {
	repaymentService *services.RepaymentService
}

// NewRepaymentHandler creates a new repayment handler
func NewRepaymentHandler(repaymentService *services.RepaymentService) *RepaymentHandler {
	return &RepaymentHandler{repaymentService: repaymentService}
}

// GetByID gets an installment
// @Summary Get repayment
// @Tags Repayments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Repayment ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /repayments/{id} [get]
func (h *RepaymentHandler) GetByID(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid repayment ID")
	}

	rep, err := h.repaymentService.Get(c.Context(), id)
	if err != nil {
		return handleError(c, err, "Failed to get repayment")
	}

	return response.Success(c, "Repayment retrieved successfully", fiber.Map{
		"repayment": rep,
	})
}

// Penalty computes the suggested penalty without storing it
// @Summary Suggested penalty
// @Description Penalty as of today; grace_days and daily_rate override the loan's terms for this call
// @Tags Repayments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Repayment ID"
// @Param grace_days query int false "Grace days override"
// @Param daily_rate query string false "Daily rate override"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /repayments/{id}/penalty [get]
func (h *RepaymentHandler) Penalty(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid repayment ID")
	}
	overrides, err := penaltyOverrides(c)
	if err != nil {
		return handleError(c, err, "Failed to parse overrides")
	}

	quote, err := h.repaymentService.SuggestedPenalty(c.Context(), id, overrides)
	if err != nil {
		return handleError(c, err, "Failed to compute penalty")
	}

	return response.Success(c, "Penalty computed successfully", quote)
}

// ApplyPenalty stores the computed penalty on an installment
// @Summary Apply penalty
// @Description Replaces the stored penalty with today's computed value; repeating it the same day changes nothing (Officer only)
// @Tags Repayments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Repayment ID"
// @Param grace_days query int false "Grace days override"
// @Param daily_rate query string false "Daily rate override"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /repayments/{id}/penalty [post]
func (h *RepaymentHandler) ApplyPenalty(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid repayment ID")
	}
	overrides, err := penaltyOverrides(c)
	if err != nil {
		return handleError(c, err, "Failed to parse overrides")
	}

	res, err := h.repaymentService.ApplyPenalty(c.Context(), id, overrides, actorID(c))
	if err != nil {
		return handleError(c, err, "Failed to apply penalty")
	}

	return response.Success(c, "Penalty applied", res)
}

// Accrue runs the overdue penalty batch now
// @Summary Accrue overdue penalties
// @Description Applies penalties to every overdue installment of disbursed loans (Admin only)
// @Tags Repayments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /repayments/accrue [post]
func (h *RepaymentHandler) Accrue(c *fiber.Ctx) error {
	res, err := h.repaymentService.AccrueOverdue(c.Context())
	if err != nil {
		return handleError(c, err, "Failed to accrue penalties")
	}
	return response.Success(c, "Penalties accrued", res)
}

func penaltyOverrides(c *fiber.Ctx) (*engine.PenaltyOverrides, error) {
	var o engine.PenaltyOverrides
	set := false

	if raw := c.Query("grace_days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return nil, domain.NewValidationError("grace_days", "must be a non-negative integer")
		}
		o.GraceDays = &v
		set = true
	}
	if raw := c.Query("daily_rate"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil || v.IsNegative() {
			return nil, domain.NewValidationError("daily_rate", "must be a non-negative decimal")
		}
		o.DailyRate = &v
		set = true
	}

	if !set {
		return nil, nil
	}
	return &o, nil
}
