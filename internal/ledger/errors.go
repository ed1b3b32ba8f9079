package ledger

import "errors"

var (
	// ErrConcurrentModification indicates an optimistic-concurrency conflict:
	// the transaction was updated elsewhere since the caller last read it.
	// The caller must re-fetch and retry the merge.
	ErrConcurrentModification = errors.New("transaction was already updated by someone else")

	ErrNotFound         = errors.New("not found")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrCurrencyMismatch = errors.New("currency mismatch")
)
