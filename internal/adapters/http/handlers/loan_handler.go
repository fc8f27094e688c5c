package handlers

import (
	"strconv"

	"microfin-loans/internal/adapters/persistence/models"
	"microfin-loans/internal/core/domain"
	"microfin-loans/internal/core/services"
	"microfin-loans/internal/pkg/pagination"
	"microfin-loans/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// LoanHandler handles loan endpoints
type LoanHandler struct {
	loanService *services.LoanService
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(loanService *services.LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

// ApplyRequest represents a loan application
type ApplyRequest struct {
	BorrowerID       *uint            `json:"borrower_id,omitempty"`
	Principal        decimal.Decimal  `json:"principal" swaggertype:"string" example:"10000.00"`
	AnnualRate       *decimal.Decimal `json:"annual_rate,omitempty" swaggertype:"string" example:"24"`
	TenorMonths      int              `json:"tenor_months" example:"12"`
	ApplicationDate  string           `json:"application_date,omitempty" example:"2024-03-15"`
	PenaltyGraceDays *int             `json:"penalty_grace_days,omitempty"`
	PenaltyDailyRate *decimal.Decimal `json:"penalty_daily_rate,omitempty" swaggertype:"string" example:"0.001"`
	Purpose          string           `json:"purpose,omitempty"`
}

// ChangeStatusRequest represents a lifecycle move
type ChangeStatusRequest struct {
	Status      string `json:"status" example:"under_review"`
	Remark      string `json:"remark,omitempty"`
	ReleaseDate string `json:"release_date,omitempty" example:"2024-03-18"`
}

func loanResponses(loans []*models.Loan) []*models.LoanResponse {
	out := make([]*models.LoanResponse, len(loans))
	for i, l := range loans {
		out[i] = l.ToResponse()
	}
	return out
}

// Apply submits a loan application
// @Summary Apply for a loan
// @Description Officers apply on behalf of borrower_id and may set rate and penalty terms; borrower tokens apply for themselves at policy terms
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ApplyRequest true "Application"
// @Success 201 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /loans [post]
func (h *LoanHandler) Apply(c *fiber.Ctx) error {
	var req ApplyRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	applied, err := parseDate("application_date", req.ApplicationDate)
	if err != nil {
		return handleError(c, err, "Failed to parse application date")
	}

	borrowerID := req.BorrowerID
	if !isOfficer(c) {
		id, ok := tokenBorrowerID(c)
		if !ok {
			return response.Forbidden(c, "Borrower account required")
		}
		borrowerID = &id

		// pricing and penalty terms come from the product policy for self-service applications
		req.AnnualRate = nil
		req.PenaltyGraceDays = nil
		req.PenaltyDailyRate = nil
	}

	loan, err := h.loanService.Apply(c.Context(), &services.ApplyInput{
		BorrowerID:       borrowerID,
		Principal:        req.Principal,
		AnnualRate:       req.AnnualRate,
		TenorMonths:      req.TenorMonths,
		ApplicationDate:  applied,
		PenaltyGraceDays: req.PenaltyGraceDays,
		PenaltyDailyRate: req.PenaltyDailyRate,
		Purpose:          req.Purpose,
		ActorID:          actorID(c),
	})
	if err != nil {
		return handleError(c, err, "Failed to submit application")
	}

	return response.Created(c, "Loan application submitted", fiber.Map{
		"loan": loan.ToResponse(),
	})
}

// List lists loans
// @Summary List loans
// @Description List loans with optional filters (Officer only)
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param status query string false "Loan status"
// @Param borrower_id query int false "Borrower ID"
// @Param search query string false "Reference"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /loans [get]
func (h *LoanHandler) List(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	input := &services.ListInput{
		Page:   params.Page,
		Limit:  params.Limit,
		Status: c.Query("status"),
		Search: c.Query("search"),
	}
	if raw := c.Query("borrower_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return response.BadRequest(c, "Invalid borrower ID")
		}
		uid := uint(id)
		input.BorrowerID = &uid
	}

	out, err := h.loanService.List(c.Context(), input)
	if err != nil {
		return handleError(c, err, "Failed to list loans")
	}

	return response.Success(c, "Loans retrieved successfully",
		pagination.NewResponse(loanResponses(out.Loans), params, out.Total))
}

// MyLoans lists the calling borrower's loans
// @Summary My loans
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /loans/my [get]
func (h *LoanHandler) MyLoans(c *fiber.Ctx) error {
	id, ok := tokenBorrowerID(c)
	if !ok {
		return response.Forbidden(c, "Borrower account required")
	}
	params := pagination.GetParams(c)

	out, err := h.loanService.ListByBorrower(c.Context(), id, params.Page, params.Limit)
	if err != nil {
		return handleError(c, err, "Failed to list loans")
	}

	return response.Success(c, "Loans retrieved successfully",
		pagination.NewResponse(loanResponses(out.Loans), params, out.Total))
}

// Summary returns loan counts per status
// @Summary Loan status summary
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /loans/summary [get]
func (h *LoanHandler) Summary(c *fiber.Ctx) error {
	counts, err := h.loanService.StatusSummary(c.Context())
	if err != nil {
		return handleError(c, err, "Failed to summarize loans")
	}
	return response.Success(c, "Summary retrieved successfully", counts)
}

// GetByID gets a loan
// @Summary Get loan
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id} [get]
func (h *LoanHandler) GetByID(c *fiber.Ctx) error {
	loan, err := h.ownedLoan(c)
	if err != nil {
		return handleError(c, err, "Failed to get loan")
	}

	return response.Success(c, "Loan retrieved successfully", fiber.Map{
		"loan": loan.ToResponse(),
	})
}

// GetByReference gets a loan by its MF-YYYY-NNNN reference
// @Summary Get loan by reference
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param reference path string true "Loan reference"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /loans/reference/{reference} [get]
func (h *LoanHandler) GetByReference(c *fiber.Ctx) error {
	loan, err := h.loanService.GetByReference(c.Context(), c.Params("reference"))
	if err != nil {
		return handleError(c, err, "Failed to get loan")
	}
	if !canSee(c, loan) {
		return handleError(c, domain.ErrLoanNotFound, "Failed to get loan")
	}

	return response.Success(c, "Loan retrieved successfully", fiber.Map{
		"loan": loan.ToResponse(),
	})
}

// ChangeStatus moves a loan through its lifecycle
// @Summary Change loan status
// @Description Disbursement creates the repayment schedule. Repeating the current status is a no-op (Officer only)
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param body body ChangeStatusRequest true "Target status"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /loans/{id}/status [patch]
func (h *LoanHandler) ChangeStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}

	var req ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	release, err := parseDate("release_date", req.ReleaseDate)
	if err != nil {
		return handleError(c, err, "Failed to parse release date")
	}

	res, err := h.loanService.ChangeStatus(c.Context(), id, &services.ChangeStatusInput{
		Status:      domain.LoanStatus(req.Status),
		Remark:      req.Remark,
		ReleaseDate: release,
		ActorID:     actorID(c),
	})
	if err != nil {
		return handleError(c, err, "Failed to change loan status")
	}

	message := "Loan status updated"
	if !res.Changed {
		message = "Loan status unchanged"
	}
	return response.Success(c, message, fiber.Map{
		"loan":       res.Loan.ToResponse(),
		"old_status": res.OldStatus,
		"changed":    res.Changed,
	})
}

// Schedule returns the repayment schedule
// @Summary Loan schedule
// @Description Installments with outstanding, days overdue and suggested penalty as of today
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id}/schedule [get]
func (h *LoanHandler) Schedule(c *fiber.Ctx) error {
	loan, err := h.ownedLoan(c)
	if err != nil {
		return handleError(c, err, "Failed to get schedule")
	}

	schedule, err := h.loanService.Schedule(c.Context(), loan.ID)
	if err != nil {
		return handleError(c, err, "Failed to get schedule")
	}

	return response.Success(c, "Schedule retrieved successfully", schedule)
}

// History returns the loan audit trail
// @Summary Loan history
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id}/history [get]
func (h *LoanHandler) History(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}

	history, err := h.loanService.History(c.Context(), id)
	if err != nil {
		return handleError(c, err, "Failed to get history")
	}

	return response.Success(c, "History retrieved successfully", fiber.Map{
		"history": history,
	})
}

// ownedLoan loads the :id loan if the caller may see it
func (h *LoanHandler) ownedLoan(c *fiber.Ctx) (*models.Loan, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, domain.NewValidationError("id", "invalid loan ID")
	}
	loan, err := h.loanService.Get(c.Context(), id)
	if err != nil {
		return nil, err
	}
	if !canSee(c, loan) {
		return nil, domain.ErrLoanNotFound
	}
	return loan, nil
}

// canSee reports whether the caller is an officer or the loan's borrower
func canSee(c *fiber.Ctx, loan *models.Loan) bool {
	if isOfficer(c) {
		return true
	}
	id, ok := tokenBorrowerID(c)
	return ok && loan.BorrowerID != nil && *loan.BorrowerID == id
}
