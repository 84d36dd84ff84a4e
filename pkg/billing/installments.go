package billing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Contract violation errors for the installment calculator
var (
	ErrInvalidInstallmentCount = errors.New("invalid installment count")
	ErrInvalidAmount           = errors.New("amount must be positive")
)

// MonthlyInterestRate is the compound interest rate applied to installment
// plans longer than the interest-free tier.
var MonthlyInterestRate = decimal.NewFromFloat(0.025)

// interestFreeMax is the largest installment count with no interest
const interestFreeMax = 3

// validInstallmentCounts enumerates the supported installment options
var validInstallmentCounts = map[int]bool{
	1: true, 2: true, 3: true, 4: true, 5: true, 6: true, 12: true,
}

// ValidInstallmentCount reports whether count is a supported option
func ValidInstallmentCount(count int) bool {
	return validInstallmentCounts[count]
}

// HasInterest reports whether the given installment count accrues interest
func HasInterest(count int) bool {
	return count > interestFreeMax
}

// ComputeInstallment computes the per-installment and total amounts for an
// annual plan paid in count parts. Counts of 1-3 split the base amount
// exactly; counts of 4, 5, 6 and 12 compound MonthlyInterestRate per
// installment. All arithmetic stays at full precision; rounding happens only
// at the presentation boundary via RoundPresentation.
func ComputeInstallment(baseAmount decimal.Decimal, count int) (*Installment, error) {
	if !ValidInstallmentCount(count) {
		return nil, ErrInvalidInstallmentCount
	}
	if baseAmount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	countDec := decimal.NewFromInt(int64(count))

	if !HasInterest(count) {
		return &Installment{
			Count:          count,
			PerInstallment: baseAmount.Div(countDec),
			Total:          baseAmount,
			InterestPaid:   decimal.Zero,
		}, nil
	}

	factor := decimal.NewFromInt(1).Add(MonthlyInterestRate).Pow(countDec)
	total := baseAmount.Mul(factor)

	return &Installment{
		Count:          count,
		PerInstallment: total.Div(countDec),
		Total:          total,
		InterestPaid:   total.Sub(baseAmount),
	}, nil
}

// RoundPresentation rounds a full-precision amount to currency precision
// (two decimal places) for display or charging.
func RoundPresentation(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}
