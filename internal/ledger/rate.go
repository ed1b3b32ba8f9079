package ledger

import "math"

// CurrencyRate is a source→destination conversion factor. It shares the
// fixed-point convention of the rest of the ledger but is used by reporting
// and export collaborators only; the mutation path never converts amounts.
// Treat a rate as immutable once it has been used in a computation.
type CurrencyRate struct {
	ID      int64
	Version uint64

	Source      string
	Destination string
	Rate        float64
}

// NewCurrencyRate creates a conversion rate.
func NewCurrencyRate(source, destination string, rate float64) *CurrencyRate {
	return &CurrencyRate{
		Source:      source,
		Destination: destination,
		Rate:        rate,
	}
}

// Convert converts a raw amount in the source currency to a display amount in
// the destination currency.
func (r *CurrencyRate) Convert(raw int64) float64 {
	return math.Round(float64(raw)*r.Rate) / RawAmountMultiplier
}

// ConvertRaw converts a raw amount in the source currency to a raw amount in
// the destination currency.
func (r *CurrencyRate) ConvertRaw(raw int64) int64 {
	return int64(math.Round(float64(raw) * r.Rate))
}
