package main

import (
	"context"
	"fmt"

	"finbook.org/internal/audit"
	"finbook.org/internal/auth"
	"finbook.org/internal/config"
	"finbook.org/internal/ids"
	"finbook.org/internal/ledger"
	"finbook.org/internal/notify"
	"finbook.org/internal/obs"
	"finbook.org/internal/store/pg"
	"finbook.org/internal/store/sqlite"
)

// openRepository resolves the configuration and opens the selected backend.
// The caller owns the returned repository and must Close it.
func openRepository(configPath string) (*config.Config, ledger.Repository, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	var repo ledger.Repository
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		repo, err = pg.Open(cfg.Database.DSN)
	case config.DriverSQLite:
		repo, err = sqlite.Open(cfg.Database.DSN)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
	}
	return cfg, repo, nil
}

// credentialStore exposes the credential surface of the opened backend.
func credentialStore(repo ledger.Repository) (auth.CredentialStore, error) {
	creds, ok := repo.(auth.CredentialStore)
	if !ok {
		return nil, fmt.Errorf("store does not support credentials")
	}
	return creds, nil
}

// resolveOwner picks the owner from the flag if set, the configuration
// otherwise. Every command is scoped to one owner's book.
func resolveOwner(flagValue string, cfg *config.Config) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if cfg.Owner != "" {
		return cfg.Owner, nil
	}
	return "", fmt.Errorf("owner is required: pass -owner or set it in the config")
}

// commandContext builds the per-invocation context carrying the owner and a
// fresh request id for audit correlation.
func commandContext(owner string) context.Context {
	ctx := auth.ContextWithOwner(context.Background(), owner)
	return audit.WithRequestID(ctx, ids.New())
}

// observeBook attaches an event stream feeding the mutation metrics, so the
// ledger counters reflect what the command actually did.
func observeBook(ctx context.Context, book *ledger.Book) {
	stream := notify.New()
	book.SetEventStream(stream)
	obs.ObserveEvents(ctx, stream)
}

// persistBook stores a freshly built book: accounts first so postings can
// reference store-assigned IDs, then transactions, then rates. Account
// balances are final before the first save because the book is fully built
// in memory.
func persistBook(ctx context.Context, repo ledger.Repository, owner string, book *ledger.Book, rates []*ledger.CurrencyRate) error {
	for _, account := range book.Accounts() {
		if err := repo.SaveAccount(ctx, owner, account); err != nil {
			return fmt.Errorf("save account %q: %w", account.Name, err)
		}
	}
	for _, tx := range book.Transactions() {
		if err := repo.SaveTransaction(ctx, owner, tx); err != nil {
			return fmt.Errorf("save transaction %q: %w", tx.Description, err)
		}
	}
	for _, rate := range rates {
		if err := repo.SaveRate(ctx, rate); err != nil {
			return fmt.Errorf("save rate %s/%s: %w", rate.Source, rate.Destination, err)
		}
	}
	return nil
}
