package engine

import (
	"fmt"

	"microfin-loans/internal/core/domain"
)

// TransitionResult tells the caller whether a status write is needed
type TransitionResult int

const (
	// Changed means the loan moves to the target status and side effects fire.
	Changed TransitionResult = iota
	// NoChange means target equals current; nothing is written or notified.
	NoChange
)

var transitions = map[domain.LoanStatus][]domain.LoanStatus{
	domain.LoanStatusNewApplication: {
		domain.LoanStatusUnderReview, domain.LoanStatusRejected, domain.LoanStatusCancelled,
	},
	domain.LoanStatusUnderReview: {
		domain.LoanStatusApproved, domain.LoanStatusRejected, domain.LoanStatusCancelled,
	},
	domain.LoanStatusApproved: {
		domain.LoanStatusForRelease, domain.LoanStatusRejected, domain.LoanStatusCancelled,
	},
	domain.LoanStatusForRelease: {
		domain.LoanStatusDisbursed, domain.LoanStatusRejected, domain.LoanStatusCancelled,
	},
	domain.LoanStatusDisbursed: {
		domain.LoanStatusClosed, domain.LoanStatusRestructured, domain.LoanStatusRejected, domain.LoanStatusCancelled,
	},
	domain.LoanStatusClosed:       nil,
	domain.LoanStatusRejected:     nil,
	domain.LoanStatusCancelled:    nil,
	domain.LoanStatusRestructured: nil,
}

// Transition validates moving a loan from one status to another.
func Transition(from, to domain.LoanStatus) (TransitionResult, error) {
	if _, ok := transitions[to]; !ok {
		return NoChange, &domain.ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("unknown loan status %q", to),
			Err:     domain.ErrInvalidLoanStatus,
		}
	}
	if from == to {
		return NoChange, nil
	}
	if !CanTransition(from, to) {
		return NoChange, &domain.ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("cannot change loan status from %s to %s", from, to),
			Err:     domain.ErrIllegalTransition,
		}
	}
	return Changed, nil
}

// CanTransition reports whether to is a legal next status for from.
func CanTransition(from, to domain.LoanStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTransitions lists the statuses reachable from s in one step.
func AllowedTransitions(s domain.LoanStatus) []domain.LoanStatus {
	next := transitions[s]
	out := make([]domain.LoanStatus, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s domain.LoanStatus) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}
