package ledger

import "testing"

func TestCurrencyRateConvert(t *testing.T) {
	rate := NewCurrencyRate("USD", "EUR", 0.85)

	// 500.00 USD -> 425.00 EUR
	if got := rate.Convert(50000); got != 425.00 {
		t.Fatalf("Convert(50000)=%v, want 425.00", got)
	}
	if got := rate.ConvertRaw(50000); got != 42500 {
		t.Fatalf("ConvertRaw(50000)=%d, want 42500", got)
	}
}

func TestCurrencyRateConvertRounds(t *testing.T) {
	rate := NewCurrencyRate("USD", "JPY", 1.2345)

	// 1.00 * 1.2345 = 123.45 raw, rounds to 123.
	if got := rate.ConvertRaw(100); got != 123 {
		t.Fatalf("ConvertRaw(100)=%d, want 123", got)
	}
	if got := rate.Convert(100); got != 1.23 {
		t.Fatalf("Convert(100)=%v, want 1.23", got)
	}
}
