package engine_test

import (
	"testing"
	"time"

	"microfin-loans/internal/core/engine"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func terms(grace int, rate string) *engine.LoanTerms {
	return &engine.LoanTerms{PenaltyGraceDays: grace, PenaltyDailyRate: dec(rate)}
}

func TestComputePenalty_TenDaysOverdue(t *testing.T) {
	rep := engine.RepaymentView{
		DueDate:    date(2024, time.January, 1),
		AmountDue:  dec("1000.00"),
		AmountPaid: decimal.Zero,
	}

	penalty := engine.ComputePenalty(rep, terms(0, "0.001"), date(2024, time.January, 11))
	assert.Equal(t, "10.00", penalty.StringFixed(2))
}

func TestComputePenalty_GraceBoundary(t *testing.T) {
	rep := engine.RepaymentView{
		DueDate:   date(2024, time.January, 1),
		AmountDue: dec("1000.00"),
	}
	loan := terms(3, "0.001")

	for day := 1; day <= 4; day++ {
		p := engine.ComputePenalty(rep, loan, date(2024, time.January, day))
		assert.True(t, p.IsZero(), "day %d inside grace", day)
	}

	p := engine.ComputePenalty(rep, loan, date(2024, time.January, 5))
	assert.True(t, p.IsPositive())
	assert.Equal(t, "1.00", p.StringFixed(2))
}

func TestComputePenalty_Idempotent(t *testing.T) {
	rep := engine.RepaymentView{
		DueDate:    date(2024, time.February, 15),
		AmountDue:  dec("945.60"),
		AmountPaid: dec("100.00"),
	}
	loan := terms(2, "0.0015")
	today := date(2024, time.March, 20)

	first := engine.ComputePenalty(rep, loan, today)
	second := engine.ComputePenalty(rep, loan, today)
	assert.True(t, first.Equal(second))
	// 845.60 * 0.0015 * (34 - 2) = 40.5888
	assert.Equal(t, "40.59", first.StringFixed(2))
}

func TestComputePenalty_ZeroCases(t *testing.T) {
	rep := engine.RepaymentView{
		DueDate:   date(2024, time.January, 1),
		AmountDue: dec("1000.00"),
	}
	today := date(2024, time.February, 1)

	assert.True(t, engine.ComputePenalty(rep, nil, today).IsZero(), "no owning loan")
	assert.True(t, engine.ComputePenalty(rep, terms(0, "0"), today).IsZero(), "zero rate")
	assert.True(t, engine.ComputePenalty(rep, terms(0, "-0.001"), today).IsZero(), "negative rate")
	assert.True(t, engine.ComputePenalty(rep, terms(0, "0.001"), date(2023, time.December, 25)).IsZero(), "not yet due")

	paid := rep
	paid.AmountPaid = dec("1200.00")
	assert.True(t, engine.ComputePenalty(paid, terms(0, "0.001"), today).IsZero(), "overpaid")
}

func TestComputePenalty_Overrides(t *testing.T) {
	rep := engine.RepaymentView{
		DueDate:   date(2024, time.January, 1),
		AmountDue: dec("1000.00"),
	}
	loan := terms(0, "0.001")
	today := date(2024, time.January, 11)

	p := engine.ComputePenalty(rep, loan, today, engine.WithDailyRate(dec("0.002")))
	assert.Equal(t, "20.00", p.StringFixed(2))

	p = engine.ComputePenalty(rep, loan, today, engine.WithGraceDays(10))
	assert.True(t, p.IsZero())

	grace := 5
	rate := dec("0.01")
	overrides := &engine.PenaltyOverrides{GraceDays: &grace, DailyRate: &rate}
	p = engine.ComputePenalty(rep, loan, today, overrides.Options()...)
	assert.Equal(t, "50.00", p.StringFixed(2))

	var none *engine.PenaltyOverrides
	assert.Empty(t, none.Options())
}

func TestComputePenalty_IgnoresTimeOfDay(t *testing.T) {
	loc := engine.ManilaLocation()
	rep := engine.RepaymentView{
		DueDate:   date(2024, time.January, 1),
		AmountDue: dec("1000.00"),
	}
	loan := terms(0, "0.001")

	early := engine.ComputePenalty(rep, loan, time.Date(2024, time.January, 11, 0, 1, 0, 0, loc))
	late := engine.ComputePenalty(rep, loan, time.Date(2024, time.January, 11, 23, 59, 0, 0, loc))
	assert.True(t, early.Equal(late))
	assert.Equal(t, "10.00", late.StringFixed(2))
}

func TestOutstanding_NeverNegative(t *testing.T) {
	tests := []struct {
		due, paid, want string
	}{
		{"1000.00", "0", "1000.00"},
		{"1000.00", "400.50", "599.50"},
		{"1000.00", "1000.00", "0.00"},
		{"1000.00", "1000.01", "0.00"},
		{"945.60", "2000", "0.00"},
		{"100.005", "0", "100.01"},
	}
	for _, tt := range tests {
		got := engine.Outstanding(dec(tt.due), dec(tt.paid))
		assert.False(t, got.IsNegative())
		assert.Equal(t, tt.want, got.StringFixed(2), "%s - %s", tt.due, tt.paid)
	}
}

func TestDaysOverdue(t *testing.T) {
	due := date(2024, time.February, 28)
	assert.Equal(t, 0, engine.DaysOverdue(due, date(2024, time.February, 1)))
	assert.Equal(t, 0, engine.DaysOverdue(due, due))
	assert.Equal(t, 1, engine.DaysOverdue(due, date(2024, time.February, 29)))
	assert.Equal(t, 2, engine.DaysOverdue(due, date(2024, time.March, 1)))
	assert.Equal(t, 366, engine.DaysOverdue(due, date(2025, time.February, 28)))
}
