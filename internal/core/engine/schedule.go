package engine

import (
	"time"

	"microfin-loans/internal/core/domain"

	"github.com/shopspring/decimal"
)

// Installment is one row of a repayment schedule
type Installment struct {
	Sequence int             `json:"sequence"`
	DueDate  time.Time       `json:"due_date"`
	Amount   decimal.Decimal `json:"amount"`
}

// GenerateSchedule expands an installment amount into tenorMonths dated
// installments. Each due date falls on the start date's day of month, clamped
// to the last day of shorter months (Jan 31 -> Feb 29 in a leap year, never a
// March rollover). Every installment carries the same rounded amount; the last
// one is not adjusted for rounding drift.
func GenerateSchedule(startDate time.Time, tenorMonths int, installmentAmount decimal.Decimal) ([]Installment, error) {
	if tenorMonths <= 0 {
		return nil, domain.NewValidationError("tenor_months", "must be greater than zero")
	}
	if installmentAmount.IsNegative() {
		return nil, domain.NewValidationError("installment_amount", "must not be negative")
	}

	amount := RoundMoney(installmentAmount)
	schedule := make([]Installment, 0, tenorMonths)
	for i := 1; i <= tenorMonths; i++ {
		schedule = append(schedule, Installment{
			Sequence: i,
			DueDate:  AddMonthsClamped(startDate, i),
			Amount:   amount,
		})
	}
	return schedule, nil
}

// MaturityDate is the due date of the final installment, computed without
// generating the schedule.
func MaturityDate(startDate time.Time, tenorMonths int) time.Time {
	return AddMonthsClamped(startDate, tenorMonths)
}

// AddMonthsClamped moves t forward by months, keeping its day of month but
// clamping to the target month's last day. The result is midnight in t's
// location.
func AddMonthsClamped(t time.Time, months int) time.Time {
	loc := t.Location()
	y, m, d := t.Date()

	candidate := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, loc)
	if last := DaysInMonth(candidate.Year(), candidate.Month()); d > last {
		d = last
	}
	return time.Date(candidate.Year(), candidate.Month(), d, 0, 0, 0, 0, loc)
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DateOnly strips the time of day, keeping the calendar date of t in its own
// location and carrying it as UTC midnight. Date-only columns are stored in
// this form so drivers never shift them across a day boundary.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
