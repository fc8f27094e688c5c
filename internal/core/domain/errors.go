package domain

import "errors"

// Common domain errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrValidation     = errors.New("validation failed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// Loan errors
var (
	ErrLoanNotFound          = errors.New("loan not found")
	ErrIllegalTransition     = errors.New("illegal loan status transition")
	ErrInvalidLoanStatus     = errors.New("invalid loan status")
	ErrConcurrentUpdate      = errors.New("loan was modified concurrently")
	ErrLoanNotDisbursed      = errors.New("loan is not disbursed")
	ErrRepaymentNotFound     = errors.New("repayment not found")
	ErrRepaymentLoanMismatch = errors.New("repayment does not belong to loan")
)

// Payment errors
var (
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrPaymentAlreadyProcessed = errors.New("payment already processed")
)

// Borrower errors
var (
	ErrBorrowerNotFound      = errors.New("borrower not found")
	ErrBorrowerAlreadyExists = errors.New("borrower already exists")
	ErrInvalidBorrowerStatus = errors.New("invalid borrower status")
	ErrBorrowerNotEligible   = errors.New("borrower is not eligible for a new loan")
)

// Notification errors
var (
	ErrNotificationNotFound = errors.New("notification not found")
)

// ValidationError describes bad input to the engine or an illegal lifecycle
// transition. It matches ErrValidation under errors.Is and unwraps to Err
// when a more specific sentinel applies.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Is reports ErrValidation as a match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
