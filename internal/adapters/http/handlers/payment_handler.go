package handlers

import (
	"microfin-loans/internal/core/domain"
	"microfin-loans/internal/core/services"
	"microfin-loans/internal/pkg/pagination"
	"microfin-loans/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// PaymentHandler handles payment endpoints
type PaymentHandler struct {
	paymentService *services.PaymentService
	loanService    *services.LoanService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService *services.PaymentService, loanService *services.LoanService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		loanService:    loanService,
	}
}

// PaymentRequest represents a payment entry
type PaymentRequest struct {
	LoanID        uint            `json:"loan_id" example:"1"`
	RepaymentID   *uint           `json:"repayment_id,omitempty"`
	Amount        decimal.Decimal `json:"amount" swaggertype:"string" example:"945.60"`
	PenaltyAmount decimal.Decimal `json:"penalty_amount" swaggertype:"string" example:"0"`
	PaidAt        string          `json:"paid_at,omitempty" example:"2024-04-15"`
	ReferenceNo   string          `json:"reference_no,omitempty"`
	Note          string          `json:"note,omitempty"`
}

// RejectPaymentRequest carries the rejection reason
type RejectPaymentRequest struct {
	Reason string `json:"reason" example:"Receipt unreadable"`
}

func (r *PaymentRequest) input() (*services.PaymentInput, error) {
	paidAt, err := parseDate("paid_at", r.PaidAt)
	if err != nil {
		return nil, err
	}
	return &services.PaymentInput{
		LoanID:        r.LoanID,
		RepaymentID:   r.RepaymentID,
		Amount:        r.Amount,
		PenaltyAmount: r.PenaltyAmount,
		PaidAt:        paidAt,
		ReferenceNo:   r.ReferenceNo,
		Note:          r.Note,
	}, nil
}

// Submit records a payment for review
// @Summary Submit payment
// @Description Borrowers submit payments for their own disbursed loans; officers may submit for any
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body PaymentRequest true "Payment"
// @Success 201 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /payments [post]
func (h *PaymentHandler) Submit(c *fiber.Ctx) error {
	var req PaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	input, err := req.input()
	if err != nil {
		return handleError(c, err, "Failed to parse payment")
	}

	if !isOfficer(c) {
		loan, err := h.loanService.Get(c.Context(), req.LoanID)
		if err != nil {
			return handleError(c, err, "Failed to submit payment")
		}
		if !canSee(c, loan) {
			return handleError(c, domain.ErrLoanNotFound, "Failed to submit payment")
		}
	}

	payment, err := h.paymentService.Submit(c.Context(), input, actorID(c))
	if err != nil {
		return handleError(c, err, "Failed to submit payment")
	}

	return response.Created(c, "Payment submitted for review", fiber.Map{
		"payment": payment,
	})
}

// Record records an officer-entered payment that posts immediately
// @Summary Record payment
// @Description Cash-desk payment, approved and posted in one step (Officer only)
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body PaymentRequest true "Payment"
// @Success 201 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /payments/record [post]
func (h *PaymentHandler) Record(c *fiber.Ctx) error {
	var req PaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	input, err := req.input()
	if err != nil {
		return handleError(c, err, "Failed to parse payment")
	}

	officer := actorID(c)
	if officer == nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	payment, err := h.paymentService.RecordDirect(c.Context(), input, *officer)
	if err != nil {
		return handleError(c, err, "Failed to record payment")
	}

	return response.Created(c, "Payment recorded", fiber.Map{
		"payment": payment,
	})
}

// Pending lists payments awaiting review
// @Summary Pending payments
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Router /payments/pending [get]
func (h *PaymentHandler) Pending(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	payments, total, err := h.paymentService.ListPending(c.Context(), params.Offset, params.Limit)
	if err != nil {
		return handleError(c, err, "Failed to list payments")
	}

	return response.Success(c, "Payments retrieved successfully",
		pagination.NewResponse(payments, params, total))
}

// GetByID gets a payment
// @Summary Get payment
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /payments/{id} [get]
func (h *PaymentHandler) GetByID(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid payment ID")
	}

	payment, err := h.paymentService.Get(c.Context(), id)
	if err != nil {
		return handleError(c, err, "Failed to get payment")
	}
	if payment.Loan != nil && !canSee(c, payment.Loan) {
		return handleError(c, domain.ErrPaymentNotFound, "Failed to get payment")
	}

	return response.Success(c, "Payment retrieved successfully", fiber.Map{
		"payment": payment,
	})
}

// Approve posts a pending payment
// @Summary Approve payment
// @Description Posts the amount to its installment (or the earliest unpaid one) and the loan. A payment resolves once (Officer only)
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /payments/{id}/approve [post]
func (h *PaymentHandler) Approve(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid payment ID")
	}
	officer := actorID(c)
	if officer == nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	payment, err := h.paymentService.Approve(c.Context(), id, *officer)
	if err != nil {
		return handleError(c, err, "Failed to approve payment")
	}

	return response.Success(c, "Payment approved", fiber.Map{
		"payment": payment,
	})
}

// Reject refuses a pending payment
// @Summary Reject payment
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Param body body RejectPaymentRequest true "Reason"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /payments/{id}/reject [post]
func (h *PaymentHandler) Reject(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid payment ID")
	}
	var req RejectPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	officer := actorID(c)
	if officer == nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	payment, err := h.paymentService.Reject(c.Context(), id, *officer, req.Reason)
	if err != nil {
		return handleError(c, err, "Failed to reject payment")
	}

	return response.Success(c, "Payment rejected", fiber.Map{
		"payment": payment,
	})
}

// ByLoan lists a loan's payments
// @Summary Loan payments
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id}/payments [get]
func (h *PaymentHandler) ByLoan(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}
	loan, err := h.loanService.Get(c.Context(), id)
	if err != nil {
		return handleError(c, err, "Failed to list payments")
	}
	if !canSee(c, loan) {
		return handleError(c, domain.ErrLoanNotFound, "Failed to list payments")
	}

	payments, err := h.paymentService.ListByLoan(c.Context(), id)
	if err != nil {
		return handleError(c, err, "Failed to list payments")
	}

	return response.Success(c, "Payments retrieved successfully", fiber.Map{
		"payments": payments,
	})
}
