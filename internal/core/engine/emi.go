package engine

import (
	"microfin-loans/internal/core/domain"

	"github.com/shopspring/decimal"
)

// MonthlyRate converts an annual percentage (24 = 24%/year) to a monthly
// fraction (0.02).
func MonthlyRate(annualRatePercent decimal.Decimal) decimal.Decimal {
	return annualRatePercent.Div(twelve).Div(hundred)
}

// CalculateEMI returns the fixed monthly installment that amortizes principal
// over tenorMonths at annualRatePercent:
//
//	EMI = P * r * (1+r)^n / ((1+r)^n - 1),  r = annual / 12 / 100
//
// A zero rate, or a denominator that evaluates to zero, falls back to
// straight-line division. The result is rounded half-up to 2 decimals.
// Amount and tenor bounds are policy and are not checked here.
func CalculateEMI(principal, annualRatePercent decimal.Decimal, tenorMonths int) (decimal.Decimal, error) {
	if !principal.IsPositive() {
		return decimal.Zero, domain.NewValidationError("principal", "must be greater than zero")
	}
	if annualRatePercent.IsNegative() {
		return decimal.Zero, domain.NewValidationError("annual_rate", "must not be negative")
	}
	if tenorMonths <= 0 {
		return decimal.Zero, domain.NewValidationError("tenor_months", "must be greater than zero")
	}

	n := decimal.NewFromInt(int64(tenorMonths))
	r := MonthlyRate(annualRatePercent)
	if r.IsZero() {
		return straightLine(principal, n), nil
	}

	factor := one.Add(r).Pow(n)
	denominator := factor.Sub(one)
	if denominator.IsZero() {
		return straightLine(principal, n), nil
	}

	return RoundMoney(principal.Mul(r).Mul(factor).Div(denominator)), nil
}

func straightLine(principal, n decimal.Decimal) decimal.Decimal {
	return RoundMoney(principal.Div(n))
}

// TotalPayable is the sum of a schedule of tenorMonths equal installments.
func TotalPayable(installment decimal.Decimal, tenorMonths int) decimal.Decimal {
	return RoundMoney(installment).Mul(decimal.NewFromInt(int64(tenorMonths)))
}
