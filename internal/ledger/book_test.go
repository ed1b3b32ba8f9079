package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"finbook.org/internal/notify"
)

func newTestBook(t *testing.T) (*Book, *Account, *Account) {
	t.Helper()
	b := NewBook("alice")
	cash, err := b.NewAccount("Cash", "USD")
	if err != nil {
		t.Fatal(err)
	}
	bank, err := b.NewAccount("Bank", "USD")
	if err != nil {
		t.Fatal(err)
	}
	return b, cash, bank
}

func TestBookRejectsEmptyCurrency(t *testing.T) {
	b := NewBook("alice")
	if _, err := b.NewAccount("Broken", ""); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}
}

func TestBookMutationSurface(t *testing.T) {
	b, cash, bank := newTestBook(t)

	tx := NewTransfer("alice", "sweep", []string{"auto"}, testDate())
	b.AddTransaction(tx)
	from := b.AddComponent(tx, cash, -500)
	b.AddComponent(tx, bank, 500)

	if cash.RawBalance() != -500 || bank.RawBalance() != 500 {
		t.Fatalf("balances cash=%d bank=%d", cash.RawBalance(), bank.RawBalance())
	}

	b.UpdateComponentAmount(tx, from, -600)
	if cash.RawBalance() != -600 {
		t.Fatalf("cash balance %d, want -600", cash.RawBalance())
	}

	b.UpdateComponentAccount(tx, from, bank)
	if cash.RawBalance() != 0 || bank.RawBalance() != -100 {
		t.Fatalf("balances after move cash=%d bank=%d", cash.RawBalance(), bank.RawBalance())
	}
	if got := len(b.componentsFor(cash)); got != 0 {
		t.Fatalf("cash index should be empty, has %d", got)
	}
	if got := len(b.componentsFor(bank)); got != 2 {
		t.Fatalf("bank index should have 2 components, has %d", got)
	}

	b.RemoveComponent(tx, from)
	if bank.RawBalance() != 500 {
		t.Fatalf("bank balance %d after removal, want 500", bank.RawBalance())
	}

	b.RemoveTransaction(tx)
	if bank.RawBalance() != 0 {
		t.Fatalf("bank balance %d after transaction removal, want 0", bank.RawBalance())
	}
	if len(b.Transactions()) != 0 {
		t.Fatal("transaction should be unregistered")
	}
}

func TestRecalculateBalanceRepairsDrift(t *testing.T) {
	b, cash, _ := newTestBook(t)

	tx := NewExpenseIncome("alice", "salary", nil, testDate())
	b.AddTransaction(tx)
	b.AddComponent(tx, cash, 250000)
	b.AddComponent(tx, cash, -40000)

	// Simulate drift from a partial failure.
	cash.setRawBalance(999)

	got, err := b.RecalculateBalance(cash)
	if err != nil {
		t.Fatal(err)
	}
	if got != 210000 || cash.RawBalance() != 210000 {
		t.Fatalf("recalculated balance %d, want 210000", got)
	}

	if _, err := b.RecalculateBalance(NewAccount("Stranger", "USD")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign account, got %v", err)
	}
}

func TestAllTagsAndTransactionsForAccount(t *testing.T) {
	b, cash, bank := newTestBook(t)

	groceries := NewExpenseIncome("alice", "groceries", []string{"food", "weekly"}, testDate())
	b.AddTransaction(groceries)
	b.AddComponent(groceries, cash, -3000)

	salary := NewExpenseIncome("alice", "salary", []string{"income"}, testDate())
	b.AddTransaction(salary)
	b.AddComponent(salary, bank, 250000)

	tags := b.AllTags()
	want := []string{"food", "income", "weekly"}
	if len(tags) != len(want) {
		t.Fatalf("tags %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("tags %v, want %v", tags, want)
		}
	}

	forCash := b.TransactionsForAccount(cash)
	if len(forCash) != 1 || forCash[0] != groceries {
		t.Fatalf("unexpected transactions for cash: %v", forCash)
	}
}

func TestTotalForCurrency(t *testing.T) {
	b, cash, bank := newTestBook(t)
	hidden, err := b.NewAccount("Hidden", "USD")
	if err != nil {
		t.Fatal(err)
	}
	hidden.IncludeInTotal = false

	tx := NewExpenseIncome("alice", "init", nil, testDate())
	b.AddTransaction(tx)
	b.AddComponent(tx, cash, 1000)
	b.AddComponent(tx, bank, 2000)
	b.AddComponent(tx, hidden, 4000)

	if got := b.TotalForCurrency("USD"); got != 3000 {
		t.Fatalf("total %d, want 3000 (hidden account excluded)", got)
	}
	if got := b.TotalForCurrency("EUR"); got != 0 {
		t.Fatalf("total for unused currency %d, want 0", got)
	}
}

func TestRebuildIndex(t *testing.T) {
	b, cash, _ := newTestBook(t)

	tx := NewExpenseIncome("alice", "coffee", nil, testDate())
	b.AddTransaction(tx)
	b.AddComponent(tx, cash, -450)

	b.RebuildIndex()

	if got := len(b.componentsFor(cash)); got != 1 {
		t.Fatalf("index for cash has %d components, want 1", got)
	}
}

func TestBookPublishesMutationEvents(t *testing.T) {
	b, cash, _ := newTestBook(t)

	stream := notify.New()
	b.SetEventStream(stream)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := stream.Subscribe(ctx)

	tx := NewExpenseIncome("alice", "coffee", nil, testDate())
	b.AddTransaction(tx)
	b.AddComponent(tx, cash, -450)

	var ops []string
	timeout := time.After(time.Second)
	for len(ops) < 2 {
		select {
		case evt := <-events:
			ops = append(ops, evt.Op)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %v", ops)
		}
	}
	if ops[0] != notify.OpTransactionAdd || ops[1] != notify.OpComponentAdd {
		t.Fatalf("unexpected event order: %v", ops)
	}
}

func TestAccountAndTransactionLookup(t *testing.T) {
	b, cash, _ := newTestBook(t)
	cash.ID = 7

	tx := NewExpenseIncome("alice", "coffee", nil, testDate())
	tx.ID = 12
	b.AddTransaction(tx)

	if got, err := b.AccountByID(7); err != nil || got != cash {
		t.Fatalf("AccountByID: %v %v", got, err)
	}
	if _, err := b.AccountByID(99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got, err := b.TransactionByID(12); err != nil || got != tx {
		t.Fatalf("TransactionByID: %v %v", got, err)
	}
	if _, err := b.TransactionByID(99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
