package services_test

import (
	"testing"
	"time"

	"microfin-loans/internal/adapters/persistence/models"
	"microfin-loans/internal/core/domain"
	"microfin-loans/internal/core/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoanService_Apply(t *testing.T) {
	f := newFixture(t)
	b := f.borrower(t)

	loan := f.standardLoan(t, b.ID)

	assert.Equal(t, "MF-2024-0001", loan.Reference)
	assert.Equal(t, string(domain.LoanStatusNewApplication), loan.Status)
	assert.Equal(t, "945.60", loan.MonthlyInstallment.StringFixed(2))
	assert.Equal(t, "2025-03-15", loan.MaturityDate.Format(models.DateFormat))
	assert.True(t, loan.IsActive)
	assert.Equal(t, "0.00", loan.TotalPaid.StringFixed(2))

	second := f.standardLoan(t, b.ID)
	assert.Equal(t, "MF-2024-0002", second.Reference)

	assert.Equal(t, int64(2), f.notificationCount(t, b.ID))
	assert.Equal(t, []string{domain.EventLoanSubmitted, domain.EventLoanSubmitted}, f.events.Types())

	history, err := f.loans.History(f.ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.HistoryCreate, history[0].Action)
}

func TestLoanService_ApplyValidation(t *testing.T) {
	f := newFixture(t)
	b := f.borrower(t)

	tests := []struct {
		name      string
		principal string
		tenor     int
		field     string
	}{
		{"below minimum", "3000", 12, "principal"},
		{"above maximum", "60000", 12, "principal"},
		{"tenor too long", "10000", 24, "tenor_months"},
		{"zero tenor", "10000", 0, "tenor_months"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.loans.Apply(f.ctx, &services.ApplyInput{
				BorrowerID:  &b.ID,
				Principal:   dec(tt.principal),
				TenorMonths: tt.tenor,
			})
			require.ErrorIs(t, err, domain.ErrValidation)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	assert.Equal(t, int64(0), f.notificationCount(t, b.ID))
}

func TestLoanService_ApplyBorrowerChecks(t *testing.T) {
	f := newFixture(t)

	missing := uint(999)
	_, err := f.loans.Apply(f.ctx, &services.ApplyInput{BorrowerID: &missing, Principal: dec("10000"), TenorMonths: 12})
	assert.ErrorIs(t, err, domain.ErrBorrowerNotFound)

	b := f.borrower(t)
	_, err = f.borrowers.UpdateStatus(f.ctx, b.ID, "blacklisted")
	require.NoError(t, err)

	_, err = f.loans.Apply(f.ctx, &services.ApplyInput{BorrowerID: &b.ID, Principal: dec("10000"), TenorMonths: 12})
	assert.ErrorIs(t, err, domain.ErrBorrowerNotEligible)
}

func TestLoanService_ForwardPathNotifiesOncePerStep(t *testing.T) {
	f := newFixture(t)
	b := f.borrower(t)
	loan := f.standardLoan(t, b.ID)
	require.Equal(t, int64(1), f.notificationCount(t, b.ID))

	steps := []domain.LoanStatus{
		domain.LoanStatusUnderReview,
		domain.LoanStatusApproved,
		domain.LoanStatusForRelease,
		domain.LoanStatusDisbursed,
		domain.LoanStatusClosed,
	}
	for i, st := range steps {
		res, err := f.loans.ChangeStatus(f.ctx, loan.ID, &services.ChangeStatusInput{Status: st})
		require.NoError(t, err, st)
		assert.True(t, res.Changed)
		assert.Equal(t, string(st), res.Loan.Status)
		assert.Equal(t, int64(i+2), f.notificationCount(t, b.ID), st)
	}

	closed, err := f.loans.Get(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.False(t, closed.IsActive)
	assert.Equal(t, 6, closed.Version)

	history, err := f.loans.History(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.Len(t, history, 6)
}

func TestLoanService_NoChangeIsSilent(t *testing.T) {
	f := newFixture(t)
	b := f.borrower(t)
	loan := f.standardLoan(t, b.ID)

	res, err := f.loans.ChangeStatus(f.ctx, loan.ID, &services.ChangeStatusInput{Status: domain.LoanStatusNewApplication})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, domain.LoanStatusNewApplication, res.OldStatus)

	assert.Equal(t, int64(1), f.notificationCount(t, b.ID))
	assert.Equal(t, []string{domain.EventLoanSubmitted}, f.events.Types())
}

func TestLoanService_IllegalTransition(t *testing.T) {
	f := newFixture(t)
	b := f.borrower(t)
	loan := f.standardLoan(t, b.ID)

	_, err := f.loans.ChangeStatus(f.ctx, loan.ID, &services.ChangeStatusInput{Status: domain.LoanStatusDisbursed})
	require.ErrorIs(t, err, domain.ErrIllegalTransition)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.loans.ChangeStatus(f.ctx, loan.ID, &services.ChangeStatusInput{Status: "paid_off"})
	assert.ErrorIs(t, err, domain.ErrInvalidLoanStatus)

	_, err = f.loans.ChangeStatus(f.ctx, 999, &services.ChangeStatusInput{Status: domain.LoanStatusUnderReview})
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)

	unchanged, err := f.loans.Get(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.LoanStatusNewApplication), unchanged.Status)
	assert.Equal(t, int64(1), f.notificationCount(t, b.ID))
}

func TestLoanService_RejectWithRemark(t *testing.T) {
	f := newFixture(t)
	b := f.borrower(t)
	loan := f.standardLoan(t, b.ID)

	res, err := f.loans.ChangeStatus(f.ctx, loan.ID, &services.ChangeStatusInput{
		Status: domain.LoanStatusRejected,
		Remark: "incomplete documents",
	})
	require.NoError(t, err)
	assert.Equal(t, "incomplete documents", res.Loan.Remark)
	assert.False(t, res.Loan.IsActive)

	list, _, err := f.notifier.List(f.ctx, b.ID, false, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Loan Application Rejected", list[0].Title)
	assert.Contains(t, list[0].Message, "Reason: incomplete documents")

	_, err = f.loans.ChangeStatus(f.ctx, loan.ID, &services.ChangeStatusInput{Status: domain.LoanStatusUnderReview})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

func TestLoanService_DisbursementMaterializesSchedule(t *testing.T) {
	f := newFixture(t)
	b := f.borrower(t)
	loan := f.standardLoan(t, b.ID)

	before, err := f.loans.Schedule(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, before.Projected)
	assert.Len(t, before.Lines, 12)

	release := time.Date(2024, time.March, 18, 0, 0, 0, 0, time.UTC)
	for _, st := range []domain.LoanStatus{domain.LoanStatusUnderReview, domain.LoanStatusApproved, domain.LoanStatusForRelease} {
		_, err := f.loans.ChangeStatus(f.ctx, loan.ID, &services.ChangeStatusInput{Status: st})
		require.NoError(t, err)
	}
	res, err := f.loans.ChangeStatus(f.ctx, loan.ID, &services.ChangeStatusInput{
		Status:      domain.LoanStatusDisbursed,
		ReleaseDate: &release,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Loan.ReleaseDate)
	assert.Equal(t, "2024-03-18", res.Loan.ReleaseDate.Format(models.DateFormat))
	assert.Equal(t, "10000.00", res.Loan.TotalDisbursed.StringFixed(2))

	reps, err := f.store.Repayments.ListByLoan(f.ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, reps, 12)
	assert.Equal(t, 1, reps[0].Sequence)
	assert.Equal(t, "2024-04-15", reps[0].DueDate.Format(models.DateFormat))
	assert.Equal(t, "2025-03-15", reps[11].DueDate.Format(models.DateFormat))
	for _, r := range reps {
		assert.Equal(t, "945.60", r.AmountDue.StringFixed(2))
	}

	sched, err := f.loans.Schedule(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.False(t, sched.Projected)
	assert.Equal(t, "11347.20", sched.TotalDue.StringFixed(2))
	assert.Equal(t, "11347.20", sched.TotalOutstanding.StringFixed(2))

	msgs, _, err := f.notifier.List(f.ctx, b.ID, false, 0, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Loan Disbursed", msgs[0].Title)
	assert.Contains(t, msgs[0].Message, "March 18, 2024")
}

func TestLoanService_ScheduleShowsOverdue(t *testing.T) {
	f := newFixture(t)
	b := f.borrower(t)
	loan := f.standardLoan(t, b.ID)
	f.disburse(t, loan.ID)

	f.clock.Set(2024, time.April, 25)
	sched, err := f.loans.Schedule(f.ctx, loan.ID)
	require.NoError(t, err)

	first := sched.Lines[0]
	assert.Equal(t, 10, first.DaysOverdue)
	assert.Equal(t, "9.46", first.SuggestedPenalty.StringFixed(2))
	assert.Equal(t, 0, sched.Lines[1].DaysOverdue)
	assert.Equal(t, "0.00", sched.Lines[1].SuggestedPenalty.StringFixed(2))
}

func TestLoanService_GetByReference(t *testing.T) {
	f := newFixture(t)
	b := f.borrower(t)
	loan := f.standardLoan(t, b.ID)

	got, err := f.loans.GetByReference(f.ctx, "MF-2024-0001")
	require.NoError(t, err)
	assert.Equal(t, loan.ID, got.ID)

	_, err = f.loans.GetByReference(f.ctx, "MF-2024-0099")
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)

	_, err = f.loans.GetByReference(f.ctx, "LN-1")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLoanService_ListAndSummary(t *testing.T) {
	f := newFixture(t)
	b := f.borrower(t)
	first := f.standardLoan(t, b.ID)
	f.standardLoan(t, b.ID)

	_, err := f.loans.ChangeStatus(f.ctx, first.ID, &services.ChangeStatusInput{Status: domain.LoanStatusUnderReview})
	require.NoError(t, err)

	out, err := f.loans.List(f.ctx, &services.ListInput{Status: "under_review"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Total)
	assert.Equal(t, first.ID, out.Loans[0].ID)

	_, err = f.loans.List(f.ctx, &services.ListInput{Status: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidLoanStatus)

	mine, err := f.loans.ListByBorrower(f.ctx, b.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine.Total)

	counts, err := f.loans.StatusSummary(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["new_application"])
	assert.Equal(t, int64(1), counts["under_review"])
	assert.Equal(t, int64(0), counts["disbursed"])
}

func TestLoanService_Quote(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)

	q, err := f.loans.Quote(f.ctx, &services.QuoteInput{Principal: dec("10000"), TenorMonths: 12, StartDate: &start})
	require.NoError(t, err)
	assert.Equal(t, "945.60", q.Installment.StringFixed(2))
	assert.Equal(t, "11347.20", q.TotalPayable.StringFixed(2))
	assert.Equal(t, "1347.20", q.TotalInterest.StringFixed(2))
	assert.Equal(t, "2024-02-29", q.Schedule[0].DueDate.Format(models.DateFormat))
	assert.Equal(t, "2025-01-31", q.MaturityDate)
}
