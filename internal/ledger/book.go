package ledger

import (
	"sort"
	"sync"
	"time"

	"finbook.org/internal/notify"
)

// Book is the per-owner aggregate: it owns the accounts and transactions of
// one user and is the mutation surface collaborators call into. Book
// operations are guarded by a mutex so every mutation (set update plus
// balance propagation) appears atomic to a concurrent reader; there is no
// blocking, timeout or cancellation inside the aggregate itself.
//
// The book maintains an explicit account→components index instead of live
// back-pointers from accounts. It is rebuilt on load and updated
// incrementally by the Book-level mutation operations.
type Book struct {
	mu sync.RWMutex

	owner        string
	accounts     []*Account
	transactions []*Transaction
	index        map[*Account][]*Component
	events       *notify.Stream
}

// NewBook creates an empty book for the owner.
func NewBook(owner string) *Book {
	return &Book{
		owner: owner,
		index: make(map[*Account][]*Component),
	}
}

// Owner returns the owning user identifier.
func (b *Book) Owner() string { return b.owner }

// SetEventStream attaches a mutation event stream. A nil stream disables
// notifications.
func (b *Book) SetEventStream(s *notify.Stream) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = s
}

func (b *Book) publish(op string, tx *Transaction, accounts []*Account, raw int64) {
	if b.events == nil {
		return
	}
	evt := notify.Event{
		Op:        op,
		Owner:     b.owner,
		RawAmount: raw,
		Timestamp: time.Now().UTC(),
	}
	if tx != nil {
		evt.TransactionID = tx.ID
	}
	for _, a := range accounts {
		if a != nil {
			evt.AccountIDs = append(evt.AccountIDs, a.ID)
		}
	}
	b.events.Publish(evt)
}

// NewAccount creates and registers an account.
func (b *Book) NewAccount(name, currency string) (*Account, error) {
	if currency == "" {
		return nil, ErrInvalidCurrency
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	a := NewAccount(name, currency)
	b.accounts = append(b.accounts, a)
	b.index[a] = nil
	return a, nil
}

// RestoreAccount registers a loaded account. Intended for persistence
// loaders only.
func (b *Book) RestoreAccount(a *Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts = append(b.accounts, a)
	if _, ok := b.index[a]; !ok {
		b.index[a] = nil
	}
}

// Accounts returns a copy of the account list.
func (b *Book) Accounts() []*Account {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Account, len(b.accounts))
	copy(out, b.accounts)
	return out
}

// AccountByID finds a registered account by its store-assigned ID.
func (b *Book) AccountByID(id int64) (*Account, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, a := range b.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

// AddTransaction registers a transaction and indexes its components. The
// components' balance effects were already applied when they were attached.
func (b *Book) AddTransaction(tx *Transaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.containsTransaction(tx) {
		return
	}
	b.transactions = append(b.transactions, tx)
	b.indexComponents(tx)
	b.publish(notify.OpTransactionAdd, tx, tx.Accounts(), tx.RawAmount())
}

// RestoreTransaction registers a loaded transaction. Intended for
// persistence loaders only.
func (b *Book) RestoreTransaction(tx *Transaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.containsTransaction(tx) {
		return
	}
	b.transactions = append(b.transactions, tx)
	b.indexComponents(tx)
}

// RemoveTransaction detaches all of the transaction's components (reversing
// their balance effects) and unregisters it. Removing an unknown transaction
// is a silent no-op.
func (b *Book) RemoveTransaction(tx *Transaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := -1
	for j, existing := range b.transactions {
		if sameTransaction(existing, tx) {
			i = j
			break
		}
	}
	if i < 0 {
		return
	}
	removed := b.transactions[i]
	accounts := removed.Accounts()
	for _, c := range removed.Components() {
		b.unindexComponent(c.Account(), c)
	}
	removed.RemoveAllComponents()
	b.transactions = append(b.transactions[:i], b.transactions[i+1:]...)
	b.publish(notify.OpTransactionRemove, removed, accounts, 0)
}

// Transactions returns a copy of the transaction list.
func (b *Book) Transactions() []*Transaction {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Transaction, len(b.transactions))
	copy(out, b.transactions)
	return out
}

// TransactionByID finds a registered transaction by its store-assigned ID.
func (b *Book) TransactionByID(id int64) (*Transaction, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, tx := range b.transactions {
		if tx.ID == id {
			return tx, nil
		}
	}
	return nil, ErrNotFound
}

// AddComponent creates a component against the account, attaches it to the
// transaction (applying the balance effect) and indexes it.
func (b *Book) AddComponent(tx *Transaction, account *Account, rawAmount int64) *Component {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := NewComponent(account, tx, rawAmount)
	tx.AddComponent(c)
	b.indexComponent(account, c)
	b.publish(notify.OpComponentAdd, tx, []*Account{account}, rawAmount)
	return c
}

// RemoveComponent detaches the component from the transaction, reversing its
// balance effect and removing it from the index. Unattached components are a
// silent no-op.
func (b *Book) RemoveComponent(tx *Transaction, c *Component) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !componentAttached(tx, c) {
		return
	}
	account := c.Account()
	raw := c.RawAmount()
	tx.RemoveComponent(c)
	b.unindexComponent(account, c)
	b.publish(notify.OpComponentRemove, tx, []*Account{account}, raw)
}

// UpdateComponentAmount changes an attached component's amount and propagates
// the difference to the account balance.
func (b *Book) UpdateComponentAmount(tx *Transaction, c *Component, rawAmount int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !componentAttached(tx, c) {
		return
	}
	tx.UpdateComponentAmount(c, rawAmount)
	b.publish(notify.OpComponentUpdateAmount, tx, []*Account{c.Account()}, rawAmount)
}

// UpdateComponentAccount moves an attached component to another account and
// reindexes it.
func (b *Book) UpdateComponentAccount(tx *Transaction, c *Component, account *Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !componentAttached(tx, c) {
		return
	}
	old := c.Account()
	tx.UpdateComponentAccount(c, account)
	b.unindexComponent(old, c)
	b.indexComponent(account, c)
	b.publish(notify.OpComponentUpdateAccount, tx, []*Account{old, account}, c.RawAmount())
}

// RecalculateBalance recomputes the account's cached balance from scratch as
// the sum over all components currently referencing it, bypassing the
// incremental-delta mechanism. It exists to repair drift from partial
// failures or externally imported data and is the only sanctioned direct
// writer of the cached balance. The account's index entry is rebuilt along
// the way.
func (b *Book) RecalculateBalance(account *Account) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.containsAccount(account) {
		return 0, ErrNotFound
	}
	var sum int64
	var bucket []*Component
	for _, tx := range b.transactions {
		for _, c := range tx.ComponentsForAccount(account) {
			sum += c.RawAmount()
			bucket = append(bucket, c)
		}
	}
	account.setRawBalance(sum)
	b.index[account] = bucket
	b.publish(notify.OpBalanceRecalculate, nil, []*Account{account}, sum)
	return sum, nil
}

// AllTags returns every tag used by the book's transactions, sorted.
func (b *Book) AllTags() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, tx := range b.transactions {
		for _, tag := range tx.Tags() {
			seen[tag] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// TransactionsForAccount returns the transactions with at least one component
// referencing the account, in registration order.
func (b *Book) TransactionsForAccount(account *Account) []*Transaction {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*Transaction
	for _, tx := range b.transactions {
		if len(tx.ComponentsForAccount(account)) > 0 {
			out = append(out, tx)
		}
	}
	return out
}

// TotalForCurrency returns the summed cached balance of the accounts counted
// towards the owner's total in the given currency.
func (b *Book) TotalForCurrency(currency string) int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var sum int64
	for _, a := range b.accounts {
		if a.IncludeInTotal && a.Currency() == currency {
			sum += a.RawBalance()
		}
	}
	return sum
}

// RebuildIndex reconstructs the account→components index from the
// transaction list. Persistence loaders call it after restoring a book.
func (b *Book) RebuildIndex() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.index = make(map[*Account][]*Component, len(b.accounts))
	for _, a := range b.accounts {
		b.index[a] = nil
	}
	for _, tx := range b.transactions {
		b.indexComponents(tx)
	}
}

// componentsFor returns the indexed components for the account.
func (b *Book) componentsFor(account *Account) []*Component {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bucket := b.index[account]
	out := make([]*Component, len(bucket))
	copy(out, bucket)
	return out
}

func (b *Book) containsTransaction(tx *Transaction) bool {
	for _, existing := range b.transactions {
		if sameTransaction(existing, tx) {
			return true
		}
	}
	return false
}

func (b *Book) containsAccount(account *Account) bool {
	for _, existing := range b.accounts {
		if sameAccount(existing, account) {
			return true
		}
	}
	return false
}

func (b *Book) indexComponents(tx *Transaction) {
	for _, c := range tx.Components() {
		b.indexComponent(c.Account(), c)
	}
}

func (b *Book) indexComponent(account *Account, c *Component) {
	if account == nil {
		return
	}
	b.index[account] = append(b.index[account], c)
}

func (b *Book) unindexComponent(account *Account, c *Component) {
	if account == nil {
		return
	}
	bucket := b.index[account]
	for i, existing := range bucket {
		if sameComponent(existing, c) {
			b.index[account] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}

func componentAttached(tx *Transaction, c *Component) bool {
	if tx == nil || c == nil {
		return false
	}
	for _, existing := range tx.Components() {
		if sameComponent(existing, c) {
			return true
		}
	}
	return false
}

// sameTransaction reports whether two transaction references denote the same
// entity: by pointer before the store assigned IDs, by ID afterwards.
func sameTransaction(a, b *Transaction) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.ID != 0 && b.ID != 0 && a.ID == b.ID
}
