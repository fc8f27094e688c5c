package engine

import (
	"fmt"

	"microfin-loans/internal/core/domain"

	"github.com/shopspring/decimal"
)

// Policy holds the product limits and defaults applied to new loans
type Policy struct {
	MinLoanAmount           decimal.Decimal
	MaxLoanAmount           decimal.Decimal
	MinTenorMonths          int
	MaxTenorMonths          int
	DefaultAnnualRate       decimal.Decimal
	DefaultPenaltyGraceDays int
	DefaultPenaltyDailyRate decimal.Decimal
}

// DefaultPolicy returns the stock product settings.
func DefaultPolicy() Policy {
	return Policy{
		MinLoanAmount:           decimal.NewFromInt(3500),
		MaxLoanAmount:           decimal.NewFromInt(50000),
		MinTenorMonths:          1,
		MaxTenorMonths:          18,
		DefaultAnnualRate:       decimal.NewFromInt(24),
		DefaultPenaltyGraceDays: 0,
		DefaultPenaltyDailyRate: decimal.RequireFromString("0.001"),
	}
}

// ValidateApplication checks an application's principal and tenor against
// the configured ranges.
func (p Policy) ValidateApplication(principal decimal.Decimal, tenorMonths int) error {
	if !principal.IsPositive() {
		return domain.NewValidationError("principal", "must be greater than zero")
	}
	if principal.LessThan(p.MinLoanAmount) || principal.GreaterThan(p.MaxLoanAmount) {
		return domain.NewValidationError("principal", fmt.Sprintf("must be between %s and %s",
			p.MinLoanAmount.StringFixed(2), p.MaxLoanAmount.StringFixed(2)))
	}
	if tenorMonths < p.MinTenorMonths || tenorMonths > p.MaxTenorMonths {
		return domain.NewValidationError("tenor_months", fmt.Sprintf("must be between %d and %d months",
			p.MinTenorMonths, p.MaxTenorMonths))
	}
	return nil
}

// Validate checks the policy itself for inconsistent limits.
func (p Policy) Validate() error {
	switch {
	case p.MinLoanAmount.IsNegative() || p.MaxLoanAmount.LessThan(p.MinLoanAmount):
		return fmt.Errorf("invalid loan amount range %s-%s", p.MinLoanAmount, p.MaxLoanAmount)
	case p.MinTenorMonths < 1 || p.MaxTenorMonths < p.MinTenorMonths:
		return fmt.Errorf("invalid tenor range %d-%d", p.MinTenorMonths, p.MaxTenorMonths)
	case p.DefaultAnnualRate.IsNegative():
		return fmt.Errorf("default annual rate must not be negative")
	case p.DefaultPenaltyGraceDays < 0:
		return fmt.Errorf("default penalty grace days must not be negative")
	case p.DefaultPenaltyDailyRate.IsNegative():
		return fmt.Errorf("default penalty daily rate must not be negative")
	}
	return nil
}
