package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanTerms are the loan-level penalty settings
type LoanTerms struct {
	PenaltyGraceDays int
	PenaltyDailyRate decimal.Decimal
}

// RepaymentView is the slice of a repayment the penalty math needs
type RepaymentView struct {
	DueDate    time.Time
	AmountDue  decimal.Decimal
	AmountPaid decimal.Decimal
}

// Outstanding returns the unpaid remainder of the installment.
func (r RepaymentView) Outstanding() decimal.Decimal {
	return Outstanding(r.AmountDue, r.AmountPaid)
}

// PenaltyOverrides replace the loan's own grace days or daily rate for a
// single computation. Nil fields defer to the loan.
type PenaltyOverrides struct {
	GraceDays *int             `json:"grace_days,omitempty"`
	DailyRate *decimal.Decimal `json:"daily_rate,omitempty"`
}

// PenaltyOption customizes a single ComputePenalty call
type PenaltyOption func(*PenaltyOverrides)

// WithGraceDays overrides the loan's grace period.
func WithGraceDays(days int) PenaltyOption {
	return func(o *PenaltyOverrides) { o.GraceDays = &days }
}

// WithDailyRate overrides the loan's daily penalty rate.
func WithDailyRate(rate decimal.Decimal) PenaltyOption {
	return func(o *PenaltyOverrides) { o.DailyRate = &rate }
}

// Options converts the overrides to call options.
func (o *PenaltyOverrides) Options() []PenaltyOption {
	if o == nil {
		return nil
	}
	var opts []PenaltyOption
	if o.GraceDays != nil {
		opts = append(opts, WithGraceDays(*o.GraceDays))
	}
	if o.DailyRate != nil {
		opts = append(opts, WithDailyRate(*o.DailyRate))
	}
	return opts
}

// ComputePenalty returns the penalty accrued on a repayment as of today:
//
//	round(outstanding * dailyRate * max(0, daysOverdue - grace), 2)
//
// A nil loan yields zero. The function never mutates its inputs, so calling
// it repeatedly for display is safe.
func ComputePenalty(rep RepaymentView, loan *LoanTerms, today time.Time, opts ...PenaltyOption) decimal.Decimal {
	if loan == nil {
		return decimal.Zero
	}

	var o PenaltyOverrides
	for _, opt := range opts {
		opt(&o)
	}

	grace := loan.PenaltyGraceDays
	if o.GraceDays != nil {
		grace = *o.GraceDays
	}
	if grace < 0 {
		grace = 0
	}
	rate := loan.PenaltyDailyRate
	if o.DailyRate != nil {
		rate = *o.DailyRate
	}

	billable := DaysOverdue(rep.DueDate, today) - grace
	if billable <= 0 || !rate.IsPositive() {
		return decimal.Zero
	}

	return RoundMoney(rep.Outstanding().Mul(rate).Mul(decimal.NewFromInt(int64(billable))))
}

// Outstanding is max(0, amountDue - amountPaid) rounded to 2 decimals.
func Outstanding(amountDue, amountPaid decimal.Decimal) decimal.Decimal {
	diff := amountDue.Sub(amountPaid)
	if diff.IsNegative() {
		return decimal.Zero
	}
	return RoundMoney(diff)
}

// DaysOverdue counts whole calendar days from dueDate to today, floored at
// zero. Both arguments are reduced to their calendar dates first, so the time
// of day never matters. dueDate is read as a civil date (its own Y/M/D);
// today should come from a Clock in the reference timezone.
func DaysOverdue(dueDate, today time.Time) int {
	due := DateOnly(dueDate)
	now := DateOnly(today)
	if !now.After(due) {
		return 0
	}
	return int(now.Sub(due).Hours() / 24)
}
