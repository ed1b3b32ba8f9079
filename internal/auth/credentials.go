package auth

import "context"

// CredentialStore persists owner login credentials. Both storage backends
// implement it alongside the ledger repository contract.
type CredentialStore interface {
	// SaveCredential stores (or replaces) the owner's password hash.
	SaveCredential(ctx context.Context, owner, passwordHash string) error
	// CredentialHash returns the stored hash for the owner.
	CredentialHash(ctx context.Context, owner string) (string, error)
}
