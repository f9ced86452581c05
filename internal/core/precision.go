// Package core holds the ledger's domain types and the precision engine that
// every monetary value passes through.
//
// This file contains the precision engine: amount validation, canonical
// two-decimal half-up rounding, exact summation and input parsing.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal digits every stored amount carries.
const Scale = 2

// ValidateAmount rejects amounts that are not strictly positive or that carry
// more than Scale decimal digits. It never rounds: 10.123 is an error here and
// only becomes 10.12 through Format after validation has passed.
//
// The zero value of decimal.Decimal stands for a missing amount and is
// rejected as non-positive.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w (got %s)", ErrInvalidAmount, amount.String())
	}
	if AmountScale(amount) > Scale {
		return fmt.Errorf("%w (got %s)", ErrAmountPrecision, amount.String())
	}
	return nil
}

// Format rounds amount to exactly Scale digits, ties away from zero.
//
//	Format(10.555)  -> 10.56
//	Format(100.123) -> 100.12
//	Format(-0.005)  -> -0.01
func Format(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Scale)
}

// CalculateSum adds the amounts of txs exactly and returns the formatted
// total. A nil or empty slice yields 0.00.
func CalculateSum(txs []Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.Amount)
	}
	return Format(sum)
}

// AmountScale returns the number of digits after the decimal point as written,
// so "10.10" has scale 2 and "10" has scale 0.
func AmountScale(amount decimal.Decimal) int {
	if exp := amount.Exponent(); exp < 0 {
		return int(-exp)
	}
	return 0
}

// ParseAmount converts user input into a decimal without rounding.
//
// It accepts both dot (12.34) and comma (12,34) separators. The sign is kept,
// so "-5" parses fine and is later refused by ValidateAmount.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty amount", ErrValidation)
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: cannot parse amount %q", ErrValidation, s)
	}
	return d, nil
}
