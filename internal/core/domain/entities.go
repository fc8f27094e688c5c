package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents the caller's role carried in access tokens
type Role string

const (
	RoleBorrower Role = "BORROWER"
	RoleOfficer  Role = "OFFICER"
	RoleAdmin    Role = "ADMIN"
)

// LoanStatus is the lifecycle state of a loan
type LoanStatus string

const (
	LoanStatusNewApplication LoanStatus = "new_application"
	LoanStatusUnderReview    LoanStatus = "under_review"
	LoanStatusApproved       LoanStatus = "approved"
	LoanStatusForRelease     LoanStatus = "for_release"
	LoanStatusDisbursed      LoanStatus = "disbursed"
	LoanStatusClosed         LoanStatus = "closed"
	LoanStatusRejected       LoanStatus = "rejected"
	LoanStatusCancelled      LoanStatus = "cancelled"
	LoanStatusRestructured   LoanStatus = "restructured"
)

// LoanStatuses lists every status in lifecycle order.
var LoanStatuses = []LoanStatus{
	LoanStatusNewApplication,
	LoanStatusUnderReview,
	LoanStatusApproved,
	LoanStatusForRelease,
	LoanStatusDisbursed,
	LoanStatusClosed,
	LoanStatusRejected,
	LoanStatusCancelled,
	LoanStatusRestructured,
}

// ParseLoanStatus validates a raw status string
func ParseLoanStatus(s string) (LoanStatus, error) {
	v := LoanStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range LoanStatuses {
		if v == known {
			return v, nil
		}
	}
	return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown loan status %q", s), Err: ErrInvalidLoanStatus}
}

// Label returns a human readable status name
func (s LoanStatus) Label() string {
	parts := strings.Split(string(s), "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

// BorrowerStatus is the standing of a borrower
type BorrowerStatus string

const (
	BorrowerStatusActive      BorrowerStatus = "active"
	BorrowerStatusInactive    BorrowerStatus = "inactive"
	BorrowerStatusDelinquent  BorrowerStatus = "delinquent"
	BorrowerStatusClosed      BorrowerStatus = "closed"
	BorrowerStatusBlacklisted BorrowerStatus = "blacklisted"
)

// ParseBorrowerStatus validates a raw borrower status string
func ParseBorrowerStatus(s string) (BorrowerStatus, error) {
	switch v := BorrowerStatus(strings.ToLower(strings.TrimSpace(s))); v {
	case BorrowerStatusActive, BorrowerStatusInactive, BorrowerStatusDelinquent,
		BorrowerStatusClosed, BorrowerStatusBlacklisted:
		return v, nil
	}
	return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown borrower status %q", s), Err: ErrInvalidBorrowerStatus}
}

// PaymentStatus is the review state of a payment
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
)

// PaymentSource records who entered a payment
type PaymentSource string

const (
	PaymentSourceBorrower PaymentSource = "borrower"
	PaymentSourceAdmin    PaymentSource = "admin"
)

// Notification types delivered to borrowers
const (
	NotificationLoanSubmitted     = "loan_submitted"
	NotificationLoanStatusChanged = "loan_status_changed"
	NotificationPaymentApproved   = "payment_approved"
	NotificationPaymentRejected   = "payment_rejected"
	NotificationPaymentReminder   = "payment_reminder"
	NotificationPenaltyApplied    = "penalty_applied"
)

// Event types published to the event bus
const (
	EventLoanSubmitted     = "loan.submitted"
	EventLoanStatusChanged = "loan.status_changed"
	EventPaymentApproved   = "payment.approved"
	EventPaymentRejected   = "payment.rejected"
	EventPenaltyApplied    = "penalty.applied"
)

// Event is a domain event raised by a state change
type Event struct {
	ID          uuid.UUID      `json:"id"`
	Type        string         `json:"type"`
	AggregateID uint           `json:"aggregate_id"`
	Reference   string         `json:"reference,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// NewEvent creates an event with a fresh ID
func NewEvent(eventType string, aggregateID uint, reference string, at time.Time, payload map[string]any) Event {
	return Event{
		ID:          uuid.New(),
		Type:        eventType,
		AggregateID: aggregateID,
		Reference:   reference,
		OccurredAt:  at.UTC(),
		Payload:     payload,
	}
}

// LoanStatusChanged is the payload handed to the notification collaborator
// whenever a loan actually changes status.
type LoanStatusChanged struct {
	LoanID     uint
	Reference  string
	BorrowerID *uint
	OldStatus  LoanStatus
	NewStatus  LoanStatus
}

// FormatLoanReference renders a loan reference in MF-YYYY-NNNN form.
func FormatLoanReference(year, seq int) string {
	return fmt.Sprintf("MF-%04d-%04d", year, seq)
}

// ParseLoanReference splits a loan reference into year and sequence.
func ParseLoanReference(ref string) (year, seq int, err error) {
	parts := strings.Split(ref, "-")
	if len(parts) != 3 || parts[0] != "MF" || len(parts[1]) != 4 || len(parts[2]) < 4 {
		return 0, 0, NewValidationError("reference", fmt.Sprintf("malformed loan reference %q", ref))
	}
	if year, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, NewValidationError("reference", fmt.Sprintf("malformed loan reference %q", ref))
	}
	if seq, err = strconv.Atoi(parts[2]); err != nil || seq < 1 {
		return 0, 0, NewValidationError("reference", fmt.Sprintf("malformed loan reference %q", ref))
	}
	return year, seq, nil
}
