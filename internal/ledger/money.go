package ledger

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// RawAmountMultiplier converts between display amounts and raw fixed-point
// amounts. All arithmetic inside the ledger happens on raw int64 values; a
// display value exists only at the API boundary.
const RawAmountMultiplier = 100

// Money is an amount in raw minor units (e.g., cents) tagged with a currency
// code. No floats are stored.
type Money struct {
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
}

func (m Money) IsPositive() bool { return m.Amount > 0 }
func (m Money) IsZero() bool     { return m.Amount == 0 }

// Display returns the human-readable amount (raw / 100).
func (m Money) Display() float64 { return Display(m.Amount) }

// Neg returns the negated amount in the same currency.
func (m Money) Neg() Money { return Money{Currency: m.Currency, Amount: -m.Amount} }

// Add sums two amounts of the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Currency: m.Currency, Amount: m.Amount + other.Amount}, nil
}

// Sub subtracts an amount of the same currency.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Currency: m.Currency, Amount: m.Amount - other.Amount}, nil
}

func (m Money) String() string {
	return FormatAmount(m.Amount) + " " + m.Currency
}

// FromDisplay converts a display amount to raw minor units, rounding half-up.
func FromDisplay(amount float64) int64 {
	return int64(math.Floor(amount*RawAmountMultiplier + 0.5))
}

// Display converts a raw amount to its display value.
func Display(raw int64) float64 {
	return float64(raw) / RawAmountMultiplier
}

// ParseAmount converts a human-entered decimal string ("12.34") to raw minor
// units without going through a float. Fractions below the smallest unit are
// rounded half-up.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	shifted := d.Shift(2)
	if shifted.IsInteger() {
		return shifted.IntPart(), nil
	}
	// floor(x + 0.5) gives half-up for both signs, matching FromDisplay.
	return shifted.Add(decimal.New(5, -1)).Floor().IntPart(), nil
}

// FormatAmount renders a raw amount with exactly two decimal places.
func FormatAmount(raw int64) string {
	return decimal.New(raw, -2).StringFixed(2)
}
