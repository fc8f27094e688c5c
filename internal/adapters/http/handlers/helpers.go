package handlers

import (
	"errors"
	"log"
	"strconv"
	"time"

	"microfin-loans/internal/adapters/persistence/models"
	"microfin-loans/internal/core/domain"
	"microfin-loans/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// errorStatus pairs a service error with its HTTP status and code
type errorStatus struct {
	err    error
	status int
	code   string
}

var errorTable = []errorStatus{
	{domain.ErrLoanNotFound, fiber.StatusNotFound, "loan_not_found"},
	{domain.ErrRepaymentNotFound, fiber.StatusNotFound, "repayment_not_found"},
	{domain.ErrPaymentNotFound, fiber.StatusNotFound, "payment_not_found"},
	{domain.ErrBorrowerNotFound, fiber.StatusNotFound, "borrower_not_found"},
	{domain.ErrNotificationNotFound, fiber.StatusNotFound, "notification_not_found"},
	{domain.ErrNotFound, fiber.StatusNotFound, "not_found"},

	{domain.ErrPaymentAlreadyProcessed, fiber.StatusConflict, "payment_already_processed"},
	{domain.ErrConcurrentUpdate, fiber.StatusConflict, "concurrent_update"},
	{domain.ErrBorrowerAlreadyExists, fiber.StatusConflict, "borrower_exists"},
	{domain.ErrConflict, fiber.StatusConflict, "conflict"},

	{domain.ErrLoanNotDisbursed, fiber.StatusUnprocessableEntity, "loan_not_disbursed"},
	{domain.ErrRepaymentLoanMismatch, fiber.StatusUnprocessableEntity, "repayment_loan_mismatch"},
	{domain.ErrBorrowerNotEligible, fiber.StatusUnprocessableEntity, "borrower_not_eligible"},
}

// handleError maps service errors to HTTP responses. Anything unknown is
// logged and reported as a 500 with the fallback message.
func handleError(c *fiber.Ctx, err error, fallback string) error {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		if errors.Is(verr.Err, domain.ErrIllegalTransition) {
			return response.Fail(c, fiber.StatusUnprocessableEntity, "illegal_transition", verr.Error())
		}
		return response.Invalid(c, verr.Field, verr.Error())
	}
	if errors.Is(err, domain.ErrValidation) {
		return response.Invalid(c, "", err.Error())
	}

	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return response.Fail(c, e.status, e.code, err.Error())
		}
	}

	log.Printf("❌ %s: %v", fallback, err)
	return response.InternalServerError(c, fallback)
}

// paramID reads a numeric path parameter
func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return uint(id), nil
}

// actorID returns the authenticated user ID, if any
func actorID(c *fiber.Ctx) *uint {
	id, ok := c.Locals("userID").(uint)
	if !ok || id == 0 {
		return nil
	}
	return &id
}

// isOfficer reports whether the caller holds an officer or admin role
func isOfficer(c *fiber.Ctx) bool {
	role, _ := c.Locals("role").(string)
	return role == string(domain.RoleOfficer) || role == string(domain.RoleAdmin)
}

// tokenBorrowerID returns the borrower a borrower token acts for
func tokenBorrowerID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals("borrowerID").(uint)
	return id, ok && id != 0
}

// scopedBorrowerID resolves whose inbox a request reads: borrowers always get
// their own, officers name one with ?borrower_id=.
func scopedBorrowerID(c *fiber.Ctx) (uint, bool) {
	if id, ok := tokenBorrowerID(c); ok && !isOfficer(c) {
		return id, true
	}
	if isOfficer(c) {
		id, err := strconv.ParseUint(c.Query("borrower_id"), 10, 32)
		if err == nil && id > 0 {
			return uint(id), true
		}
	}
	return 0, false
}

// parseDate parses an optional YYYY-MM-DD value
func parseDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(models.DateFormat, value)
	if err != nil {
		return nil, domain.NewValidationError(field, "must be a date in YYYY-MM-DD format")
	}
	return &t, nil
}
