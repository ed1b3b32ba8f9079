package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"finbook.org/internal/auth"
	"finbook.org/internal/ledger"
	"finbook.org/internal/obs"
)

// Store persists ledger books in PostgreSQL. It assigns entity IDs from
// database sequences on first save and enforces the optimistic-concurrency
// contract by bumping a transaction's version only when the stored version
// matches the caller's.
type Store struct {
	db *sql.DB
}

var (
	_ ledger.Repository    = (*Store)(nil)
	_ auth.CredentialStore = (*Store)(nil)
)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing database handle. Used by tests and the
// migration runner.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) LoadBook(ctx context.Context, owner string) (*ledger.Book, error) {
	book := ledger.NewBook(owner)
	accounts := make(map[int64]*ledger.Account)

	rows, err := s.db.QueryContext(ctx, `
		select id, name, currency, balance, include_in_total
		from accounts where owner=$1 order by id
	`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id             int64
			name, currency string
			balance        int64
			includeInTotal bool
		)
		if err := rows.Scan(&id, &name, &currency, &balance, &includeInTotal); err != nil {
			return nil, err
		}
		a := ledger.RestoredAccount(id, name, currency, balance, includeInTotal)
		accounts[id] = a
		book.RestoreAccount(a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	transactions := make(map[int64]*ledger.Transaction)
	var order []int64

	txRows, err := s.db.QueryContext(ctx, `
		select id, type, description, transaction_date, version
		from transactions where owner=$1 order by id
	`, owner)
	if err != nil {
		return nil, err
	}
	defer txRows.Close()
	for txRows.Next() {
		var (
			id          int64
			typ         int
			description string
			date        time.Time
			version     uint64
		)
		if err := txRows.Scan(&id, &typ, &description, &date, &version); err != nil {
			return nil, err
		}
		t := ledger.RestoredTransaction(id, version, owner, description, nil, date, ledger.TransactionType(typ))
		transactions[id] = t
		order = append(order, id)
	}
	if err := txRows.Err(); err != nil {
		return nil, err
	}

	tagRows, err := s.db.QueryContext(ctx, `
		select tt.transaction_id, tt.tag
		from transaction_tags tt
		join transactions t on t.id = tt.transaction_id
		where t.owner=$1
	`, owner)
	if err != nil {
		return nil, err
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var txID int64
		var tag string
		if err := tagRows.Scan(&txID, &tag); err != nil {
			return nil, err
		}
		if t, ok := transactions[txID]; ok {
			t.AddTag(tag)
		}
	}
	if err := tagRows.Err(); err != nil {
		return nil, err
	}

	compRows, err := s.db.QueryContext(ctx, `
		select c.id, c.transaction_id, c.account_id, c.amount
		from components c
		join transactions t on t.id = c.transaction_id
		where t.owner=$1 order by c.id
	`, owner)
	if err != nil {
		return nil, err
	}
	defer compRows.Close()
	for compRows.Next() {
		var (
			id, txID  int64
			accountID sql.NullInt64
			amount    int64
		)
		if err := compRows.Scan(&id, &txID, &accountID, &amount); err != nil {
			return nil, err
		}
		t, ok := transactions[txID]
		if !ok {
			continue
		}
		var account *ledger.Account
		if accountID.Valid {
			account = accounts[accountID.Int64]
		}
		t.RestoreComponent(id, account, amount)
	}
	if err := compRows.Err(); err != nil {
		return nil, err
	}

	for _, id := range order {
		book.RestoreTransaction(transactions[id])
	}
	return book, nil
}

func (s *Store) SaveAccount(ctx context.Context, owner string, account *ledger.Account) error {
	if account.Currency() == "" {
		return ledger.ErrInvalidCurrency
	}
	if account.ID == 0 {
		return s.db.QueryRowContext(ctx, `
			insert into accounts(owner, name, currency, balance, include_in_total)
			values ($1,$2,$3,$4,$5) returning id
		`, owner, account.Name, account.Currency(), account.RawBalance(), account.IncludeInTotal).Scan(&account.ID)
	}
	res, err := s.db.ExecContext(ctx, `
		update accounts set name=$3, balance=$4, include_in_total=$5
		where id=$1 and owner=$2
	`, account.ID, owner, account.Name, account.RawBalance(), account.IncludeInTotal)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (s *Store) SaveTransaction(ctx context.Context, owner string, t *ledger.Transaction) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = dbTx.Rollback() }()

	inserted := t.ID == 0
	if inserted {
		if err := dbTx.QueryRowContext(ctx, `
			insert into transactions(owner, type, description, transaction_date, version)
			values ($1,$2,$3,$4,0) returning id
		`, owner, int(t.Type()), t.Description, t.Date).Scan(&t.ID); err != nil {
			return err
		}
	} else {
		res, err := dbTx.ExecContext(ctx, `
			update transactions set type=$4, description=$5, transaction_date=$6, version=version+1
			where id=$1 and owner=$2 and version=$3
		`, t.ID, owner, t.Version, int(t.Type()), t.Description, t.Date)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			var stored uint64
			err := dbTx.QueryRowContext(ctx,
				`select version from transactions where id=$1 and owner=$2`, t.ID, owner).Scan(&stored)
			if errors.Is(err, sql.ErrNoRows) {
				return ledger.ErrNotFound
			}
			if err != nil {
				return err
			}
			obs.IncMergeConflict()
			return ledger.ErrConcurrentModification
		}
	}

	if _, err := dbTx.ExecContext(ctx,
		`delete from transaction_tags where transaction_id=$1`, t.ID); err != nil {
		return err
	}
	for _, tag := range t.Tags() {
		if _, err := dbTx.ExecContext(ctx,
			`insert into transaction_tags(transaction_id, tag) values ($1,$2)`, t.ID, tag); err != nil {
			return err
		}
	}

	if err := s.syncComponents(ctx, dbTx, t); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return err
	}
	if !inserted {
		t.Version++
	}
	return nil
}

// syncComponents reconciles the stored component rows with the in-memory
// component set: inserts the unsaved, updates the surviving, deletes the
// removed.
func (s *Store) syncComponents(ctx context.Context, dbTx *sql.Tx, t *ledger.Transaction) error {
	existing := make(map[int64]bool)
	rows, err := dbTx.QueryContext(ctx,
		`select id from components where transaction_id=$1`, t.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		existing[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	kept := make(map[int64]bool)
	for _, c := range t.Components() {
		accountID := sql.NullInt64{}
		if a := c.Account(); a != nil {
			if a.ID == 0 {
				return fmt.Errorf("component references an unsaved account")
			}
			accountID = sql.NullInt64{Int64: a.ID, Valid: true}
		}
		if c.ID == 0 {
			if err := dbTx.QueryRowContext(ctx, `
				insert into components(transaction_id, account_id, amount)
				values ($1,$2,$3) returning id
			`, t.ID, accountID, c.RawAmount()).Scan(&c.ID); err != nil {
				return err
			}
		} else {
			if _, err := dbTx.ExecContext(ctx, `
				update components set account_id=$3, amount=$4
				where id=$1 and transaction_id=$2
			`, c.ID, t.ID, accountID, c.RawAmount()); err != nil {
				return err
			}
		}
		kept[c.ID] = true
	}

	for id := range existing {
		if kept[id] {
			continue
		}
		if _, err := dbTx.ExecContext(ctx,
			`delete from components where id=$1 and transaction_id=$2`, id, t.ID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTransaction removes the transaction with its tags and components.
// Deleting an unknown transaction is a no-op so retries stay idempotent.
func (s *Store) DeleteTransaction(ctx context.Context, owner string, t *ledger.Transaction) error {
	_, err := s.db.ExecContext(ctx,
		`delete from transactions where id=$1 and owner=$2`, t.ID, owner)
	return err
}

func (s *Store) RecalculateBalance(ctx context.Context, owner string, accountID int64) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `
		update accounts
		set balance = coalesce((select sum(amount) from components where account_id = accounts.id), 0)
		where id=$1 and owner=$2
		returning balance
	`, accountID, owner).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ledger.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *Store) SaveCredential(ctx context.Context, owner, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into owners(owner, password_hash) values ($1,$2)
		on conflict (owner) do update set password_hash = excluded.password_hash
	`, owner, passwordHash)
	return err
}

func (s *Store) CredentialHash(ctx context.Context, owner string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`select password_hash from owners where owner=$1`, owner).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ledger.ErrNotFound
	}
	return hash, err
}

func (s *Store) SaveRate(ctx context.Context, rate *ledger.CurrencyRate) error {
	return s.db.QueryRowContext(ctx, `
		insert into currency_rates(source, destination, rate, version)
		values ($1,$2,$3,0)
		on conflict (source, destination) do update
		set rate = excluded.rate, version = currency_rates.version + 1
		returning id, version
	`, rate.Source, rate.Destination, rate.Rate).Scan(&rate.ID, &rate.Version)
}

func (s *Store) Rates(ctx context.Context) ([]*ledger.CurrencyRate, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, source, destination, rate, version
		from currency_rates order by source, destination
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*ledger.CurrencyRate
	for rows.Next() {
		r := &ledger.CurrencyRate{}
		if err := rows.Scan(&r.ID, &r.Source, &r.Destination, &r.Rate, &r.Version); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}
