// Package sqlite provides the embedded storage backend. It is the default
// backend for single-user installs where running a database server is
// overkill; the schema mirrors the PostgreSQL one.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"finbook.org/internal/auth"
	"finbook.org/internal/ledger"
	"finbook.org/internal/obs"
)

const schema = `
create table if not exists accounts (
	id integer primary key autoincrement,
	owner text not null,
	name text not null,
	currency text not null,
	balance integer not null default 0,
	include_in_total integer not null default 1
);
create index if not exists idx_accounts_owner on accounts(owner);

create table if not exists transactions (
	id integer primary key autoincrement,
	owner text not null,
	type integer not null default 0,
	description text not null default '',
	transaction_date timestamp not null,
	version integer not null default 0
);
create index if not exists idx_transactions_owner on transactions(owner);

create table if not exists transaction_tags (
	transaction_id integer not null references transactions(id) on delete cascade,
	tag text not null,
	primary key (transaction_id, tag)
);

create table if not exists components (
	id integer primary key autoincrement,
	transaction_id integer not null references transactions(id) on delete cascade,
	account_id integer references accounts(id),
	amount integer not null default 0
);
create index if not exists idx_components_transaction on components(transaction_id);
create index if not exists idx_components_account on components(account_id);

create table if not exists owners (
	owner text primary key,
	password_hash text not null,
	created_at timestamp not null default current_timestamp
);

create table if not exists currency_rates (
	id integer primary key autoincrement,
	source text not null,
	destination text not null,
	rate real not null,
	version integer not null default 0,
	unique (source, destination)
);
`

// Store persists ledger books in a local SQLite file.
type Store struct {
	db *sql.DB
}

var (
	_ ledger.Repository    = (*Store)(nil)
	_ auth.CredentialStore = (*Store)(nil)
)

// Open opens (creating if needed) the database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral database in tests.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite handles one writer at a time; a larger pool only produces
	// SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) LoadBook(ctx context.Context, owner string) (*ledger.Book, error) {
	book := ledger.NewBook(owner)
	accounts := make(map[int64]*ledger.Account)

	rows, err := s.db.QueryContext(ctx,
		`select id, name, currency, balance, include_in_total from accounts where owner=? order by id`, owner)
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

	txRows, err := s.db.QueryContext(ctx,
		`select id, type, description, transaction_date, version from transactions where owner=? order by id`, owner)
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
		where t.owner=?`, owner)
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
		where t.owner=? order by c.id`, owner)
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
		res, err := s.db.ExecContext(ctx,
			`insert into accounts(owner, name, currency, balance, include_in_total) values (?,?,?,?,?)`,
			owner, account.Name, account.Currency(), account.RawBalance(), account.IncludeInTotal)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		account.ID = id
		return nil
	}
	res, err := s.db.ExecContext(ctx,
		`update accounts set name=?, balance=?, include_in_total=? where id=? and owner=?`,
		account.Name, account.RawBalance(), account.IncludeInTotal, account.ID, owner)
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
		res, err := dbTx.ExecContext(ctx,
			`insert into transactions(owner, type, description, transaction_date, version) values (?,?,?,?,0)`,
			owner, int(t.Type()), t.Description, t.Date)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		t.ID = id
	} else {
		res, err := dbTx.ExecContext(ctx,
			`update transactions set type=?, description=?, transaction_date=?, version=version+1
			 where id=? and owner=? and version=?`,
			int(t.Type()), t.Description, t.Date, t.ID, owner, t.Version)
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
				`select version from transactions where id=? and owner=?`, t.ID, owner).Scan(&stored)
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
		`delete from transaction_tags where transaction_id=?`, t.ID); err != nil {
		return err
	}
	for _, tag := range t.Tags() {
		if _, err := dbTx.ExecContext(ctx,
			`insert into transaction_tags(transaction_id, tag) values (?,?)`, t.ID, tag); err != nil {
			return err
		}
	}

	if err := syncComponents(ctx, dbTx, t); err != nil {
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

func syncComponents(ctx context.Context, dbTx *sql.Tx, t *ledger.Transaction) error {
	existing := make(map[int64]bool)
	rows, err := dbTx.QueryContext(ctx,
		`select id from components where transaction_id=?`, t.ID)
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
			res, err := dbTx.ExecContext(ctx,
				`insert into components(transaction_id, account_id, amount) values (?,?,?)`,
				t.ID, accountID, c.RawAmount())
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			c.ID = id
		} else {
			if _, err := dbTx.ExecContext(ctx,
				`update components set account_id=?, amount=? where id=? and transaction_id=?`,
				accountID, c.RawAmount(), c.ID, t.ID); err != nil {
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
			`delete from components where id=? and transaction_id=?`, id, t.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, owner string, t *ledger.Transaction) error {
	_, err := s.db.ExecContext(ctx,
		`delete from transactions where id=? and owner=?`, t.ID, owner)
	return err
}

func (s *Store) RecalculateBalance(ctx context.Context, owner string, accountID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		update accounts
		set balance = coalesce((select sum(amount) from components where account_id = accounts.id), 0)
		where id=? and owner=?`, accountID, owner)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, ledger.ErrNotFound
	}
	var balance int64
	if err := s.db.QueryRowContext(ctx,
		`select balance from accounts where id=?`, accountID).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *Store) SaveCredential(ctx context.Context, owner, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into owners(owner, password_hash) values (?,?)
		on conflict (owner) do update set password_hash = excluded.password_hash`,
		owner, passwordHash)
	return err
}

func (s *Store) CredentialHash(ctx context.Context, owner string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`select password_hash from owners where owner=?`, owner).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ledger.ErrNotFound
	}
	return hash, err
}

func (s *Store) SaveRate(ctx context.Context, rate *ledger.CurrencyRate) error {
	if _, err := s.db.ExecContext(ctx, `
		insert into currency_rates(source, destination, rate, version) values (?,?,?,0)
		on conflict (source, destination) do update
		set rate = excluded.rate, version = currency_rates.version + 1`,
		rate.Source, rate.Destination, rate.Rate); err != nil {
		return err
	}
	return s.db.QueryRowContext(ctx,
		`select id, version from currency_rates where source=? and destination=?`,
		rate.Source, rate.Destination).Scan(&rate.ID, &rate.Version)
}

func (s *Store) Rates(ctx context.Context) ([]*ledger.CurrencyRate, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, source, destination, rate, version from currency_rates order by source, destination`)
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
