package ledger

// Account is a named balance holder in a single currency. Its balance is a
// cached derived value: at all times it equals the sum of the raw amounts of
// every component currently attached to it. The cache is adjusted eagerly
// through ApplyBalanceDelta on every component change and is never recomputed
// lazily from history; Book.RecalculateBalance is the only sanctioned direct
// writer (a recovery path for drift).
type Account struct {
	ID             int64
	Name           string
	IncludeInTotal bool

	currency   string
	rawBalance int64
}

// NewAccount creates an account with a zero balance. The account is counted
// towards the owner's total by default.
func NewAccount(name, currency string) *Account {
	return &Account{
		Name:           name,
		IncludeInTotal: true,
		currency:       currency,
	}
}

// RestoredAccount reconstructs an account from persisted state, including its
// cached balance. Intended for persistence loaders only.
func RestoredAccount(id int64, name, currency string, rawBalance int64, includeInTotal bool) *Account {
	return &Account{
		ID:             id,
		Name:           name,
		IncludeInTotal: includeInTotal,
		currency:       currency,
		rawBalance:     rawBalance,
	}
}

// ApplyBalanceDelta adds delta to the cached balance. This is the single
// choke-point through which all balance changes flow; it never fails, and the
// caller is responsible for invoking it exactly once per component change.
func (a *Account) ApplyBalanceDelta(delta int64) {
	a.rawBalance += delta
}

// Currency returns the account currency code.
func (a *Account) Currency() string { return a.currency }

// RawBalance returns the cached balance in raw minor units.
func (a *Account) RawBalance() int64 { return a.rawBalance }

// Balance returns the cached balance as a display amount.
func (a *Account) Balance() float64 { return Display(a.rawBalance) }

// setRawBalance overwrites the cached balance. Reserved for bulk
// recalculation; everything else goes through ApplyBalanceDelta.
func (a *Account) setRawBalance(raw int64) {
	a.rawBalance = raw
}

// sameAccount reports whether two account references denote the same entity:
// by pointer before the store assigned IDs, by ID afterwards.
func sameAccount(a, b *Account) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.ID != 0 && b.ID != 0 && a.ID == b.ID
}
