package services_test

import (
	"testing"
	"time"

	"microfin-loans/internal/adapters/persistence/models"
	"microfin-loans/internal/core/domain"
	"microfin-loans/internal/core/engine"
	"microfin-loans/internal/core/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func firstRepayment(t *testing.T, f *fixture, loanID uint) *models.Repayment {
	t.Helper()
	reps, err := f.store.Repayments.ListByLoan(f.ctx, loanID)
	require.NoError(t, err)
	require.NotEmpty(t, reps)
	return reps[0]
}

func TestRepaymentService_SuggestedPenalty(t *testing.T) {
	f := newFixture(t)
	b := f.borrower(t)
	loan := f.standardLoan(t, b.ID)
	f.disburse(t, loan.ID)
	rep := firstRepayment(t, f, loan.ID)

	f.clock.Set(2024, time.April, 20)

	q, err := f.repayments.SuggestedPenalty(f.ctx, rep.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, q.DaysOverdue)
	assert.Equal(t, "945.60", q.Outstanding.StringFixed(2))
	assert.Equal(t, "4.73", q.Penalty.StringFixed(2))
	assert.Equal(t, "2024-04-15", q.DueDate)
	assert.Equal(t, "2024-04-20", q.AsOf)

	grace := 3
	q, err = f.repayments.SuggestedPenalty(f.ctx, rep.ID, &engine.PenaltyOverrides{GraceDays: &grace})
	require.NoError(t, err)
	assert.Equal(t, "1.89", q.Penalty.StringFixed(2))

	rate := dec("0.002")
	q, err = f.repayments.SuggestedPenalty(f.ctx, rep.ID, &engine.PenaltyOverrides{DailyRate: &rate})
	require.NoError(t, err)
	assert.Equal(t, "9.46", q.Penalty.StringFixed(2))

	// nothing was stored
	stored, err := f.repayments.Get(f.ctx, rep.ID)
	require.NoError(t, err)
	assert.True(t, stored.PenaltyApplied.IsZero())

	_, err = f.repayments.SuggestedPenalty(f.ctx, 999, nil)
	assert.ErrorIs(t, err, domain.ErrRepaymentNotFound)
}

func TestRepaymentService_ApplyPenaltyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	b := f.borrower(t)
	loan := f.standardLoan(t, b.ID)
	f.disburse(t, loan.ID)
	rep := firstRepayment(t, f, loan.ID)
	notified := f.notificationCount(t, b.ID)

	f.clock.Set(2024, time.April, 20)

	res, err := f.repayments.ApplyPenalty(f.ctx, rep.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "4.73", res.Delta.StringFixed(2))
	assert.Equal(t, "4.73", res.Repayment.PenaltyApplied.StringFixed(2))
	assert.Equal(t, notified+1, f.notificationCount(t, b.ID))

	again, err := f.repayments.ApplyPenalty(f.ctx, rep.ID, nil, nil)
	require.NoError(t, err)
	assert.True(t, again.Delta.IsZero())

	current, err := f.loans.Get(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "4.73", current.TotalPenalties.StringFixed(2))
	assert.Equal(t, notified+1, f.notificationCount(t, b.ID))

	// a later day grows the stored penalty by the difference only
	f.clock.Set(2024, time.April, 25)
	later, err := f.repayments.ApplyPenalty(f.ctx, rep.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "4.73", later.Delta.StringFixed(2))
	assert.Equal(t, "9.46", later.Repayment.PenaltyApplied.StringFixed(2))

	current, err = f.loans.Get(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "9.46", current.TotalPenalties.StringFixed(2))
	assert.Equal(t, notified+1, f.notificationCount(t, b.ID))

	history, err := f.loans.History(f.ctx, loan.ID)
	require.NoError(t, err)
	penalties := 0
	for _, h := range history {
		if h.Action == models.HistoryPenalty {
			penalties++
		}
	}
	assert.Equal(t, 2, penalties)
}

func TestRepaymentService_ApplyPenaltyRequiresDisbursedLoan(t *testing.T) {
	f := newFixture(t)
	b := f.borrower(t)
	loan := f.standardLoan(t, b.ID)
	f.disburse(t, loan.ID)
	rep := firstRepayment(t, f, loan.ID)

	_, err := f.loans.ChangeStatus(f.ctx, loan.ID, &services.ChangeStatusInput{Status: domain.LoanStatusClosed})
	require.NoError(t, err)

	f.clock.Set(2024, time.April, 20)
	_, err = f.repayments.ApplyPenalty(f.ctx, rep.ID, nil, nil)
	assert.ErrorIs(t, err, domain.ErrLoanNotDisbursed)
}

func TestRepaymentService_AccrueOverdue(t *testing.T) {
	f := newFixture(t)
	b := f.borrower(t)
	loan := f.standardLoan(t, b.ID)
	f.disburse(t, loan.ID)

	// never disbursed, has no installments
	f.standardLoan(t, b.ID)

	f.clock.Set(2024, time.May, 20)

	res, err := f.repayments.AccrueOverdue(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scanned)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 0, res.Failed)
	// #1: 35 days → 33.10, #2: 5 days → 4.73
	assert.Equal(t, "37.83", res.Delta.StringFixed(2))

	again, err := f.repayments.AccrueOverdue(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Scanned)
	assert.Equal(t, 0, again.Updated)
	assert.True(t, again.Delta.IsZero())

	current, err := f.loans.Get(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "37.83", current.TotalPenalties.StringFixed(2))
}

func TestPenaltyCron_SendDueReminders(t *testing.T) {
	f := newFixture(t)
	b := f.borrower(t)
	loan := f.standardLoan(t, b.ID)
	f.disburse(t, loan.ID)
	before := f.notificationCount(t, b.ID)

	cron := services.NewPenaltyCron(f.repayments, f.notifier, f.clock, engine.ManilaLocation(), "", 3)

	f.clock.Set(2024, time.April, 12)
	sent, err := cron.SendDueReminders(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	list, _, err := f.notifier.List(f.ctx, b.ID, false, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "Payment Reminder", list[0].Title)
	assert.Contains(t, list[0].Message, "April 15, 2024")

	f.clock.Set(2024, time.April, 13)
	sent, err = cron.SendDueReminders(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Equal(t, before+1, f.notificationCount(t, b.ID))
}

func TestPenaltyCron_RunOnce(t *testing.T) {
	f := newFixture(t)
	b := f.borrower(t)
	loan := f.standardLoan(t, b.ID)
	f.disburse(t, loan.ID)

	cron := services.NewPenaltyCron(f.repayments, f.notifier, f.clock, nil, services.DefaultPenaltySchedule, 0)
	f.clock.Set(2024, time.April, 20)
	cron.RunOnce(f.ctx)

	current, err := f.loans.Get(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "4.73", current.TotalPenalties.StringFixed(2))
}

func TestPenaltyCron_StartRejectsBadSchedule(t *testing.T) {
	f := newFixture(t)

	bad := services.NewPenaltyCron(f.repayments, f.notifier, f.clock, nil, "not a schedule", 0)
	assert.Error(t, bad.Start())

	good := services.NewPenaltyCron(f.repayments, f.notifier, f.clock, nil, "", 0)
	require.NoError(t, good.Start())
	good.Stop()
}
