package handlers

import (
	"microfin-loans/internal/core/services"
	"microfin-loans/internal/pkg/pagination"
	"microfin-loans/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// BorrowerHandler handles borrower endpoints
type BorrowerHandler struct {
	borrowerService *services.BorrowerService
	loanService     *services.LoanService
}

// NewBorrowerHandler creates a new borrower handler
func NewBorrowerHandler(borrowerService *services.BorrowerService, loanService *services.LoanService) *BorrowerHandler {
	return &BorrowerHandler{
		borrowerService: borrowerService,
		loanService:     loanService,
	}
}

// UpdateBorrowerStatusRequest represents a standing change
type UpdateBorrowerStatusRequest struct {
	Status string `json:"status" example:"delinquent"`
}

// Create registers a borrower
// @Summary Create borrower
// @Description Register a new borrower (Officer only)
// @Tags Borrowers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateBorrowerInput true "Borrower data"
// @Success 201 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /borrowers [post]
func (h *BorrowerHandler) Create(c *fiber.Ctx) error {
	var req services.CreateBorrowerInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	borrower, err := h.borrowerService.Create(c.Context(), &req)
	if err != nil {
		return handleError(c, err, "Failed to create borrower")
	}

	return response.Created(c, "Borrower created successfully", fiber.Map{
		"borrower": borrower,
	})
}

// List lists borrowers
// @Summary List borrowers
// @Description List borrowers with optional status filter and name/code search (Officer only)
// @Tags Borrowers
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param status query string false "Borrower status"
// @Param search query string false "Name or code"
// @Success 200 {object} response.Response
// @Router /borrowers [get]
func (h *BorrowerHandler) List(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	out, err := h.borrowerService.List(c.Context(), c.Query("status"), c.Query("search"), params.Page, params.Limit)
	if err != nil {
		return handleError(c, err, "Failed to list borrowers")
	}

	return response.Success(c, "Borrowers retrieved successfully",
		pagination.NewResponse(out.Borrowers, params, out.Total))
}

// GetByID gets a borrower
// @Summary Get borrower
// @Tags Borrowers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Borrower ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /borrowers/{id} [get]
func (h *BorrowerHandler) GetByID(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid borrower ID")
	}

	borrower, err := h.borrowerService.Get(c.Context(), id)
	if err != nil {
		return handleError(c, err, "Failed to get borrower")
	}

	return response.Success(c, "Borrower retrieved successfully", fiber.Map{
		"borrower": borrower,
	})
}

// UpdateStatus changes a borrower's standing
// @Summary Update borrower status
// @Description Only active borrowers may apply for new loans (Officer only)
// @Tags Borrowers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Borrower ID"
// @Param body body UpdateBorrowerStatusRequest true "New status"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /borrowers/{id}/status [patch]
func (h *BorrowerHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid borrower ID")
	}

	var req UpdateBorrowerStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	borrower, err := h.borrowerService.UpdateStatus(c.Context(), id, req.Status)
	if err != nil {
		return handleError(c, err, "Failed to update borrower")
	}

	return response.Success(c, "Borrower status updated", fiber.Map{
		"borrower": borrower,
	})
}

// Loans lists a borrower's loans
// @Summary Borrower loans
// @Tags Borrowers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Borrower ID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /borrowers/{id}/loans [get]
func (h *BorrowerHandler) Loans(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid borrower ID")
	}
	params := pagination.GetParams(c)

	out, err := h.loanService.ListByBorrower(c.Context(), id, params.Page, params.Limit)
	if err != nil {
		return handleError(c, err, "Failed to list loans")
	}

	return response.Success(c, "Loans retrieved successfully",
		pagination.NewResponse(loanResponses(out.Loans), params, out.Total))
}
