package engine_test

import (
	"errors"
	"testing"
	"time"

	"microfin-loans/internal/core/domain"
	"microfin-loans/internal/core/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_ForwardPath(t *testing.T) {
	path := []domain.LoanStatus{
		domain.LoanStatusNewApplication,
		domain.LoanStatusUnderReview,
		domain.LoanStatusApproved,
		domain.LoanStatusForRelease,
		domain.LoanStatusDisbursed,
		domain.LoanStatusClosed,
	}

	for i := 1; i < len(path); i++ {
		res, err := engine.Transition(path[i-1], path[i])
		require.NoError(t, err, "%s -> %s", path[i-1], path[i])
		assert.Equal(t, engine.Changed, res)
	}
}

func TestTransition_IllegalMovesRejected(t *testing.T) {
	tests := []struct {
		from, to domain.LoanStatus
	}{
		{domain.LoanStatusClosed, domain.LoanStatusApproved},
		{domain.LoanStatusNewApplication, domain.LoanStatusDisbursed},
		{domain.LoanStatusNewApplication, domain.LoanStatusApproved},
		{domain.LoanStatusApproved, domain.LoanStatusUnderReview},
		{domain.LoanStatusRejected, domain.LoanStatusUnderReview},
		{domain.LoanStatusCancelled, domain.LoanStatusNewApplication},
		{domain.LoanStatusRestructured, domain.LoanStatusDisbursed},
		{domain.LoanStatusUnderReview, domain.LoanStatusRestructured},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			res, err := engine.Transition(tt.from, tt.to)
			require.Error(t, err)
			assert.Equal(t, engine.NoChange, res)
			assert.True(t, errors.Is(err, domain.ErrValidation))
			assert.True(t, errors.Is(err, domain.ErrIllegalTransition))
		})
	}
}

func TestTransition_SameStatusIsNoChange(t *testing.T) {
	for _, s := range domain.LoanStatuses {
		res, err := engine.Transition(s, s)
		require.NoError(t, err)
		assert.Equal(t, engine.NoChange, res)
	}
}

func TestTransition_RejectAndCancelFromAnyOpenState(t *testing.T) {
	for _, s := range domain.LoanStatuses {
		if engine.IsTerminal(s) {
			continue
		}
		assert.True(t, engine.CanTransition(s, domain.LoanStatusRejected), string(s))
		assert.True(t, engine.CanTransition(s, domain.LoanStatusCancelled), string(s))
	}
}

func TestTransition_UnknownTarget(t *testing.T) {
	_, err := engine.Transition(domain.LoanStatusNewApplication, domain.LoanStatus("paid_off"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidLoanStatus))
}

func TestIsTerminal(t *testing.T) {
	terminal := map[domain.LoanStatus]bool{
		domain.LoanStatusClosed:       true,
		domain.LoanStatusRejected:     true,
		domain.LoanStatusCancelled:    true,
		domain.LoanStatusRestructured: true,
	}
	for _, s := range domain.LoanStatuses {
		assert.Equal(t, terminal[s], engine.IsTerminal(s), string(s))
		assert.Equal(t, terminal[s], len(engine.AllowedTransitions(s)) == 0, string(s))
	}
}

func TestAllowedTransitions_ReturnsCopy(t *testing.T) {
	next := engine.AllowedTransitions(domain.LoanStatusNewApplication)
	require.NotEmpty(t, next)
	next[0] = domain.LoanStatusClosed

	assert.False(t, engine.CanTransition(domain.LoanStatusNewApplication, domain.LoanStatusClosed))
}

func TestStatusMessage_OneTemplatePerStatus(t *testing.T) {
	release := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	summary := engine.LoanSummary{
		Reference:   "MF-2024-0007",
		Principal:   dec("10000"),
		Installment: dec("945.60"),
		TenorMonths: 12,
		ReleaseDate: &release,
	}

	titles := map[domain.LoanStatus]string{
		domain.LoanStatusUnderReview:  "Application Under Review",
		domain.LoanStatusApproved:     "Loan Approved!",
		domain.LoanStatusForRelease:   "Loan Ready for Release",
		domain.LoanStatusDisbursed:    "Loan Disbursed",
		domain.LoanStatusClosed:       "Loan Fully Paid",
		domain.LoanStatusRejected:     "Loan Application Rejected",
		domain.LoanStatusCancelled:    "Loan Cancelled",
		domain.LoanStatusRestructured: "Loan Restructured",
	}

	seen := map[string]bool{}
	for status, title := range titles {
		m := engine.StatusMessage(status, summary)
		assert.Equal(t, title, m.Title)
		assert.Equal(t, domain.NotificationLoanStatusChanged, m.Type)
		assert.Contains(t, m.Body, "MF-2024-0007")
		assert.False(t, seen[m.Body], "duplicate body for %s", status)
		seen[m.Body] = true

		again := engine.StatusMessage(status, summary)
		assert.Equal(t, m, again)
	}

	disbursed := engine.StatusMessage(domain.LoanStatusDisbursed, summary)
	assert.Contains(t, disbursed.Body, "PHP 10,000.00")
	assert.Contains(t, disbursed.Body, "March 15, 2024")
	assert.Contains(t, disbursed.Body, "PHP 945.60")
}

func TestSubmittedMessage(t *testing.T) {
	m := engine.SubmittedMessage(engine.LoanSummary{Reference: "MF-2024-0001", Principal: dec("3500"), TenorMonths: 6})
	assert.Equal(t, domain.NotificationLoanSubmitted, m.Type)
	assert.Equal(t, "Loan Application Submitted", m.Title)
	assert.Contains(t, m.Body, "PHP 3,500.00")
}

func TestRejectedMessage_IncludesReason(t *testing.T) {
	m := engine.StatusMessage(domain.LoanStatusRejected, engine.LoanSummary{Reference: "MF-2024-0002", Remark: "incomplete documents"})
	assert.Contains(t, m.Body, "incomplete documents")
}
