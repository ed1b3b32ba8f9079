package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"finbook.org/internal/ledger"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func TestSaveAccountInsertAssignsID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`insert into accounts`).
		WithArgs("alice", "Wallet", "EUR", int64(0), true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	account := ledger.NewAccount("Wallet", "EUR")
	if err := store.SaveAccount(context.Background(), "alice", account); err != nil {
		t.Fatalf("SaveAccount: %v", err)
	}
	if account.ID != 7 {
		t.Fatalf("account id %d, want 7", account.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveAccountUpdateMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`update accounts set`).
		WithArgs(int64(9), "alice", "Wallet", int64(0), true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	account := ledger.RestoredAccount(9, "Wallet", "EUR", 0, true)
	err := store.SaveAccount(context.Background(), "alice", account)
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveTransactionVersionConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`update transactions set`).
		WithArgs(int64(42), "alice", uint64(3), 1, "Groceries", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`select version from transactions`).
		WithArgs(int64(42), "alice").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(uint64(4)))
	mock.ExpectRollback()

	tx := ledger.RestoredTransaction(42, 3, "alice", "Groceries", nil, time.Now(), ledger.TypeExpenseIncome)
	err := store.SaveTransaction(context.Background(), "alice", tx)
	if !errors.Is(err, ledger.ErrConcurrentModification) {
		t.Fatalf("err = %v, want ErrConcurrentModification", err)
	}
	if tx.Version != 3 {
		t.Fatalf("version mutated on conflict: %d", tx.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveTransactionInsertWithComponents(t *testing.T) {
	store, mock := newMockStore(t)

	account := ledger.RestoredAccount(5, "Wallet", "EUR", 0, true)
	tx := ledger.NewExpenseIncome("alice", "Coffee", nil, time.Now())
	tx.AddComponent(ledger.NewComponent(account, tx, -350))

	mock.ExpectBegin()
	mock.ExpectQuery(`insert into transactions`).
		WithArgs("alice", 1, "Coffee", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectExec(`delete from transaction_tags`).
		WithArgs(int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`select id from components`).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`insert into components`).
		WithArgs(int64(11), int64(5), int64(-350)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(21)))
	mock.ExpectCommit()

	if err := store.SaveTransaction(context.Background(), "alice", tx); err != nil {
		t.Fatalf("SaveTransaction: %v", err)
	}
	if tx.ID != 11 {
		t.Fatalf("transaction id %d, want 11", tx.ID)
	}
	if tx.Version != 0 {
		t.Fatalf("new transaction version %d, want 0", tx.Version)
	}
	if comps := tx.Components(); len(comps) != 1 || comps[0].ID != 21 {
		t.Fatalf("component id not assigned: %+v", comps)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveTransactionUpdateBumpsVersion(t *testing.T) {
	store, mock := newMockStore(t)

	tx := ledger.RestoredTransaction(42, 3, "alice", "Groceries", []string{"food"}, time.Now(), ledger.TypeExpenseIncome)

	mock.ExpectBegin()
	mock.ExpectExec(`update transactions set`).
		WithArgs(int64(42), "alice", uint64(3), 1, "Groceries", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`delete from transaction_tags`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into transaction_tags`).
		WithArgs(int64(42), "food").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`select id from components`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(99)))
	mock.ExpectExec(`delete from components`).
		WithArgs(int64(99), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.SaveTransaction(context.Background(), "alice", tx); err != nil {
		t.Fatalf("SaveTransaction: %v", err)
	}
	if tx.Version != 4 {
		t.Fatalf("version %d, want 4", tx.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecalculateBalance(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`update accounts`).
		WithArgs(int64(5), "alice").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(1250)))

	balance, err := store.RecalculateBalance(context.Background(), "alice", 5)
	if err != nil {
		t.Fatalf("RecalculateBalance: %v", err)
	}
	if balance != 1250 {
		t.Fatalf("balance %d, want 1250", balance)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecalculateBalanceUnknownAccount(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`update accounts`).
		WithArgs(int64(404), "alice").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))

	if _, err := store.RecalculateBalance(context.Background(), "alice", 404); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveRateUpsert(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`insert into currency_rates`).
		WithArgs("EUR", "USD", 1.1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "version"}).AddRow(int64(3), uint64(2)))

	rate := ledger.NewCurrencyRate("EUR", "USD", 1.1)
	if err := store.SaveRate(context.Background(), rate); err != nil {
		t.Fatalf("SaveRate: %v", err)
	}
	if rate.ID != 3 || rate.Version != 2 {
		t.Fatalf("rate not refreshed: %+v", rate)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveCredentialUpserts(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`insert into owners`).
		WithArgs("alice", "$2a$10$hash").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.SaveCredential(context.Background(), "alice", "$2a$10$hash"); err != nil {
		t.Fatalf("SaveCredential: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCredentialHashUnknownOwner(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`select password_hash from owners`).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"password_hash"}))

	if _, err := store.CredentialHash(context.Background(), "nobody"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLoadBookRestoresState(t *testing.T) {
	store, mock := newMockStore(t)
	date := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`select id, name, currency, balance, include_in_total`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "currency", "balance", "include_in_total"}).
			AddRow(int64(1), "Wallet", "EUR", int64(650), true))
	mock.ExpectQuery(`select id, type, description, transaction_date, version`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "description", "transaction_date", "version"}).
			AddRow(int64(10), 1, "Salary", date, uint64(2)))
	mock.ExpectQuery(`select tt.transaction_id, tt.tag`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"transaction_id", "tag"}).
			AddRow(int64(10), "income"))
	mock.ExpectQuery(`select c.id, c.transaction_id, c.account_id, c.amount`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "account_id", "amount"}).
			AddRow(int64(20), int64(10), int64(1), int64(650)))

	book, err := store.LoadBook(context.Background(), "alice")
	if err != nil {
		t.Fatalf("LoadBook: %v", err)
	}

	account, err := book.AccountByID(1)
	if err != nil {
		t.Fatalf("AccountByID: %v", err)
	}
	if account.RawBalance() != 650 {
		t.Fatalf("account balance %d, want 650", account.RawBalance())
	}
	tx, err := book.TransactionByID(10)
	if err != nil {
		t.Fatalf("TransactionByID: %v", err)
	}
	if tx.Version != 2 || tx.RawAmount() != 650 {
		t.Fatalf("transaction state: version=%d amount=%d", tx.Version, tx.RawAmount())
	}
	if tags := tx.Tags(); len(tags) != 1 || tags[0] != "income" {
		t.Fatalf("tags %v", tags)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
