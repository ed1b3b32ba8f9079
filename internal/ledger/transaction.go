package ledger

import (
	"sort"
	"time"
)

// TransactionType classifies a transaction. A freshly constructed transaction
// is Undefined until the creator classifies it; switching between
// ExpenseIncome and Transfer later is permitted and re-runs the amount
// recomputation.
type TransactionType int

const (
	TypeUndefined TransactionType = iota
	TypeExpenseIncome
	TypeTransfer
)

func (t TransactionType) String() string {
	switch t {
	case TypeExpenseIncome:
		return "expenseincome"
	case TypeTransfer:
		return "transfer"
	default:
		return "undefined"
	}
}

// Transaction owns a set of components and drives balance updates on their
// accounts. Its raw amount is derived from the components after every
// mutation and is never set independently. Version backs the
// optimistic-concurrency merge contract; it is bumped by the persistence
// collaborator on every committed save.
//
// Transaction methods are not synchronized. The surrounding collaborator
// serializes all mutations to a given transaction; Book-level operations are
// the guarded mutation surface.
type Transaction struct {
	ID          int64
	Version     uint64
	Owner       string
	Description string
	Date        time.Time

	typ        TransactionType
	tags       map[string]struct{}
	components []*Component
	amount     int64
}

// NewTransaction creates a transaction with no components.
func NewTransaction(owner, description string, tags []string, date time.Time, typ TransactionType) *Transaction {
	t := &Transaction{
		Owner:       owner,
		Description: description,
		Date:        date,
		typ:         typ,
		tags:        make(map[string]struct{}, len(tags)),
	}
	for _, tag := range tags {
		if tag != "" {
			t.tags[tag] = struct{}{}
		}
	}
	return t
}

// NewExpenseIncome creates a plain expense/income transaction.
func NewExpenseIncome(owner, description string, tags []string, date time.Time) *Transaction {
	return NewTransaction(owner, description, tags, date, TypeExpenseIncome)
}

// NewTransfer creates a transfer between the owner's own accounts.
func NewTransfer(owner, description string, tags []string, date time.Time) *Transaction {
	return NewTransaction(owner, description, tags, date, TypeTransfer)
}

// RestoredTransaction reconstructs a transaction shell from persisted state.
// Components are attached afterwards with RestoreComponent. Intended for
// persistence loaders only.
func RestoredTransaction(id int64, version uint64, owner, description string, tags []string, date time.Time, typ TransactionType) *Transaction {
	t := NewTransaction(owner, description, tags, date, typ)
	t.ID = id
	t.Version = version
	return t
}

// RestoreComponent attaches a loaded component without touching the account
// balance (the cached balance was persisted alongside the account). Intended
// for persistence loaders only.
func (t *Transaction) RestoreComponent(id int64, account *Account, rawAmount int64) *Component {
	c := NewComponent(account, t, rawAmount)
	c.ID = id
	t.components = append(t.components, c)
	t.recomputeAmount()
	return c
}

// Type returns the transaction type.
func (t *Transaction) Type() TransactionType { return t.typ }

// SetType reclassifies the transaction and re-derives its amount.
func (t *Transaction) SetType(typ TransactionType) {
	t.typ = typ
	t.recomputeAmount()
}

// Tags returns the tags in sorted order.
func (t *Transaction) Tags() []string {
	out := make([]string, 0, len(t.tags))
	for tag := range t.tags {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// SetTags replaces the tag set.
func (t *Transaction) SetTags(tags ...string) {
	t.tags = make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if tag != "" {
			t.tags[tag] = struct{}{}
		}
	}
}

// AddTag adds a single tag.
func (t *Transaction) AddTag(tag string) {
	if tag == "" {
		return
	}
	if t.tags == nil {
		t.tags = make(map[string]struct{})
	}
	t.tags[tag] = struct{}{}
}

// HasTag reports whether the transaction carries the tag.
func (t *Transaction) HasTag(tag string) bool {
	_, ok := t.tags[tag]
	return ok
}

func (t *Transaction) indexOf(c *Component) int {
	for i, existing := range t.components {
		if sameComponent(existing, c) {
			return i
		}
	}
	return -1
}

// AddComponent attaches a component, applies its amount to the account
// balance and re-derives the transaction amount. Adding a component that is
// already attached is a no-op.
func (t *Transaction) AddComponent(c *Component) {
	if c == nil || t.indexOf(c) >= 0 {
		return
	}
	c.setTransaction(t)
	t.components = append(t.components, c)
	if c.account != nil {
		c.account.ApplyBalanceDelta(c.rawAmount)
	}
	t.recomputeAmount()
}

// AddComponents attaches a list of components.
func (t *Transaction) AddComponents(components []*Component) {
	for _, c := range components {
		t.AddComponent(c)
	}
}

// RemoveComponent reverses the component's balance effect and detaches it
// from both the transaction and its account, leaving it an orphan available
// for disposal. Removing a component that is not attached is a silent no-op:
// callers may race to remove an already-removed component.
func (t *Transaction) RemoveComponent(c *Component) {
	i := t.indexOf(c)
	if i < 0 {
		return
	}
	removed := t.components[i]
	if removed.account != nil {
		removed.account.ApplyBalanceDelta(-removed.rawAmount)
	}
	removed.setAccount(nil)
	removed.setTransaction(nil)
	t.components = append(t.components[:i], t.components[i+1:]...)
	t.recomputeAmount()
}

// RemoveAllComponents detaches every component, reversing all balance
// effects.
func (t *Transaction) RemoveAllComponents() {
	for _, c := range t.components {
		if c.account != nil {
			c.account.ApplyBalanceDelta(-c.rawAmount)
		}
		c.setAccount(nil)
		c.setTransaction(nil)
	}
	t.components = nil
	t.recomputeAmount()
}

// UpdateComponentAmount sets a new raw amount for an attached component and
// applies the difference to the account balance. The delta is derived from
// the old amount so the change is applied exactly once. A component that is
// not attached is a silent no-op.
func (t *Transaction) UpdateComponentAmount(c *Component, rawAmount int64) {
	i := t.indexOf(c)
	if i < 0 {
		return
	}
	target := t.components[i]
	delta := rawAmount - target.rawAmount
	target.setRawAmount(rawAmount)
	t.recomputeAmount()
	if target.account != nil {
		target.account.ApplyBalanceDelta(delta)
	}
}

// UpdateComponentAccount moves an attached component to another account,
// reversing the old account's balance and applying the amount to the new one.
// A nil new account leaves the component unbudgeted: the reversal still
// happens but no new delta is applied.
func (t *Transaction) UpdateComponentAccount(c *Component, account *Account) {
	i := t.indexOf(c)
	if i < 0 {
		return
	}
	target := t.components[i]
	if target.account != nil {
		target.account.ApplyBalanceDelta(-target.rawAmount)
	}
	target.setAccount(account)
	if target.account != nil {
		target.account.ApplyBalanceDelta(target.rawAmount)
	}
}

// recomputeAmount derives the transaction amount from its components.
// ExpenseIncome is the signed sum. Transfer is the larger of total inflow and
// total outflow magnitude, which represents the transfer's nominal size even
// when the legs differ due to cross-currency conversion. Undefined keeps the
// prior value and is always invalid for reporting.
func (t *Transaction) recomputeAmount() {
	switch t.typ {
	case TypeExpenseIncome:
		var sum int64
		for _, c := range t.components {
			sum += c.rawAmount
		}
		t.amount = sum
	case TypeTransfer:
		var positive, negative int64
		for _, c := range t.components {
			if c.rawAmount > 0 {
				positive += c.rawAmount
			} else {
				negative += c.rawAmount
			}
		}
		if positive > -negative {
			t.amount = positive
		} else {
			t.amount = -negative
		}
	}
}

// RawAmount returns the derived transaction amount in raw minor units.
func (t *Transaction) RawAmount() int64 { return t.amount }

// Amount returns the derived transaction amount as a display value.
func (t *Transaction) Amount() float64 { return Display(t.amount) }

// IsAmountValid reports whether the transaction balances. ExpenseIncome is
// always valid. A transfer is valid when its components span more than one
// currency (conversion cost or gain is expected) or when the signed sum of
// all components is exactly zero. Undefined is always invalid. The result is
// advisory: the transaction stays usable either way, and collaborators
// surface an invalid transfer as unbalanced before persisting.
func (t *Transaction) IsAmountValid() bool {
	switch t.typ {
	case TypeExpenseIncome:
		return true
	case TypeTransfer:
		var sum int64
		commonCurrency := ""
		for _, c := range t.components {
			if c.account != nil {
				if commonCurrency == "" {
					commonCurrency = c.account.Currency()
				} else if c.account.Currency() != commonCurrency {
					return true
				}
			}
			sum += c.rawAmount
		}
		return sum == 0
	default:
		return false
	}
}

// Merge copies type, description, tags and date from another transaction
// instance. It fails with ErrConcurrentModification when the versions differ:
// silently ignoring a stale overwrite would corrupt shared ledger state.
// Components are never merged; structural changes go through the explicit
// component operations.
func (t *Transaction) Merge(other *Transaction) error {
	if t.Version != other.Version {
		return ErrConcurrentModification
	}
	t.typ = other.typ
	t.Description = other.Description
	t.tags = make(map[string]struct{}, len(other.tags))
	for tag := range other.tags {
		t.tags[tag] = struct{}{}
	}
	t.Date = other.Date
	t.recomputeAmount()
	return nil
}

// Clone produces a new unsaved transaction for the same owner with a fresh
// date and freshly constructed components mirroring the original's
// account/amount pairs. The clone's components are attached through the
// normal path, so they contribute to the account balances like any other
// transaction.
func (t *Transaction) Clone() *Transaction {
	clone := NewTransaction(t.Owner, t.Description, t.Tags(), time.Now(), t.typ)
	for _, c := range t.components {
		clone.AddComponent(NewComponent(c.account, clone, c.rawAmount))
	}
	return clone
}

// Components returns a copy of the component list.
func (t *Transaction) Components() []*Component {
	out := make([]*Component, len(t.components))
	copy(out, t.components)
	return out
}

// ComponentsForAccount returns the components referencing the account.
func (t *Transaction) ComponentsForAccount(account *Account) []*Component {
	var out []*Component
	for _, c := range t.components {
		if sameAccount(c.account, account) {
			out = append(out, c)
		}
	}
	return out
}

// Accounts returns the distinct accounts affected by this transaction.
func (t *Transaction) Accounts() []*Account {
	var out []*Account
	for _, c := range t.components {
		if c.account == nil {
			continue
		}
		if !containsAccount(out, c.account) {
			out = append(out, c.account)
		}
	}
	return out
}

// FromAccounts returns the accounts money was transferred from (negative
// legs). Empty for anything but a transfer.
func (t *Transaction) FromAccounts() []*Account {
	if t.typ != TypeTransfer {
		return nil
	}
	var out []*Account
	for _, c := range t.components {
		if c.rawAmount < 0 && c.account != nil && !containsAccount(out, c.account) {
			out = append(out, c.account)
		}
	}
	return out
}

// ToAccounts returns the accounts money was transferred to (positive legs).
// Empty for anything but a transfer.
func (t *Transaction) ToAccounts() []*Account {
	if t.typ != TypeTransfer {
		return nil
	}
	var out []*Account
	for _, c := range t.components {
		if c.rawAmount > 0 && c.account != nil && !containsAccount(out, c.account) {
			out = append(out, c.account)
		}
	}
	return out
}

// Currencies returns the distinct currencies used by this transaction's
// components.
func (t *Transaction) Currencies() []string {
	var out []string
	for _, c := range t.components {
		if c.account == nil {
			continue
		}
		cur := c.account.Currency()
		found := false
		for _, existing := range out {
			if existing == cur {
				found = true
				break
			}
		}
		if !found {
			out = append(out, cur)
		}
	}
	return out
}

func containsAccount(list []*Account, account *Account) bool {
	for _, a := range list {
		if sameAccount(a, account) {
			return true
		}
	}
	return false
}
