package ledger

// Component is a single signed amount applied to one account. A component is
// exclusively owned by its transaction (it lives and dies with it) and holds a
// non-owning reference to its account. While attached, its raw amount
// contributes exactly once to the account's cached balance.
type Component struct {
	ID int64

	account     *Account
	transaction *Transaction
	rawAmount   int64
}

// NewComponent constructs a component without touching any account balance.
// The ledger effect happens when the component is attached to a transaction
// via AddComponent; structural creation and ledger effect stay distinct.
func NewComponent(account *Account, transaction *Transaction, rawAmount int64) *Component {
	return &Component{
		account:     account,
		transaction: transaction,
		rawAmount:   rawAmount,
	}
}

// Account returns the referenced account, or nil for an unbudgeted component.
func (c *Component) Account() *Account { return c.account }

// Transaction returns the owning transaction, or nil for a detached component.
func (c *Component) Transaction() *Transaction { return c.transaction }

// RawAmount returns the component amount in raw minor units.
func (c *Component) RawAmount() int64 { return c.rawAmount }

// Amount returns the component amount as a display value.
func (c *Component) Amount() float64 { return Display(c.rawAmount) }

// setRawAmount is a pure setter. Callers propagating a balance delta must
// read the old amount first.
func (c *Component) setRawAmount(raw int64) {
	c.rawAmount = raw
}

func (c *Component) setAccount(account *Account) {
	c.account = account
}

func (c *Component) setTransaction(transaction *Transaction) {
	c.transaction = transaction
}

// sameComponent reports whether two component references denote the same
// entity: by pointer before the store assigned IDs, by ID afterwards.
func sameComponent(a, b *Component) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.ID != 0 && b.ID != 0 && a.ID == b.ID
}
