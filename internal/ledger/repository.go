package ledger

import "context"

// Repository is the persistence collaborator the core consumes. The store
// assigns stable integer IDs on first durable save, bumps a transaction's
// version on every committed mutation (backing the optimistic-concurrency
// merge contract), and can recompute a cached balance at the SQL level.
type Repository interface {
	// LoadBook restores the owner's full book with the index rebuilt.
	LoadBook(ctx context.Context, owner string) (*Book, error)

	// SaveAccount persists the account, assigning an ID on first save. The
	// cached balance is stored alongside.
	SaveAccount(ctx context.Context, owner string, account *Account) error

	// SaveTransaction persists the transaction and its components, assigning
	// IDs on first save. On update the stored version must match the
	// in-memory one; a mismatch fails with ErrConcurrentModification and the
	// caller re-reads and re-merges. On success the version is bumped both in
	// the store and on the entity.
	SaveTransaction(ctx context.Context, owner string, tx *Transaction) error

	// DeleteTransaction removes the transaction with its components.
	DeleteTransaction(ctx context.Context, owner string, tx *Transaction) error

	// RecalculateBalance rewrites the stored account balance as the sum of
	// its components and returns the corrected value.
	RecalculateBalance(ctx context.Context, owner string, accountID int64) (int64, error)

	// SaveRate upserts a currency conversion rate.
	SaveRate(ctx context.Context, rate *CurrencyRate) error

	// Rates lists all stored conversion rates.
	Rates(ctx context.Context) ([]*CurrencyRate, error)

	Close() error
}
