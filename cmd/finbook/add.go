package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/subcommands"

	"finbook.org/internal/audit"
	"finbook.org/internal/ledger"
)

// postingFlags collects repeated -posting flags.
type postingFlags []string

func (p *postingFlags) String() string { return strings.Join(*p, ",") }

func (p *postingFlags) Set(v string) error {
	*p = append(*p, v)
	return nil
}

// parsePosting splits an "accountID=amount" argument. The amount is a
// human-entered decimal string ("12.34"); an account id of 0 makes the
// posting account-less.
func parsePosting(s string) (accountID, rawAmount int64, err error) {
	idPart, amountPart, ok := strings.Cut(s, "=")
	if !ok {
		return 0, 0, fmt.Errorf("posting %q: want accountID=amount", s)
	}
	accountID, err = strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("posting %q: bad account id: %w", s, err)
	}
	rawAmount, err = ledger.ParseAmount(amountPart)
	if err != nil {
		return 0, 0, fmt.Errorf("posting %q: %w", s, err)
	}
	return accountID, rawAmount, nil
}

type addCmd struct {
	configPath  string
	owner       string
	description string
	date        string
	txType      string
	tags        string
	postings    postingFlags
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a transaction with its postings" }
func (*addCmd) Usage() string {
	return `finbook add -desc <text> -posting <accountID=amount> [...] [flags]

  Records a transaction. Each -posting attaches one posting; amounts are
  decimal strings ("12.34", negative for money leaving the account) and an
  account id of 0 leaves the posting account-less. Example:

    finbook add -desc "Stash away" -type transfer \
        -posting 1=-100.00 -posting 2=100.00
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "Path to the YAML configuration file.")
	f.StringVar(&c.owner, "owner", "", "Owner of the book. Overrides the configured owner.")
	f.StringVar(&c.description, "desc", "", "Transaction description.")
	f.StringVar(&c.date, "date", "", "Transaction date (2006-01-02). Defaults to today.")
	f.StringVar(&c.txType, "type", "expenseincome", "Transaction type: expenseincome or transfer.")
	f.StringVar(&c.tags, "tags", "", "Comma-separated tags.")
	f.Var(&c.postings, "posting", "Posting as accountID=amount. Repeatable.")
}

func (c *addCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if len(c.postings) == 0 {
		fmt.Fprintln(os.Stderr, "add: at least one -posting is required")
		return subcommands.ExitUsageError
	}
	var txType ledger.TransactionType
	switch c.txType {
	case "expenseincome":
		txType = ledger.TypeExpenseIncome
	case "transfer":
		txType = ledger.TypeTransfer
	default:
		fmt.Fprintf(os.Stderr, "add: unknown type %q\n", c.txType)
		return subcommands.ExitUsageError
	}
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if c.date != "" {
		parsed, err := time.Parse("2006-01-02", c.date)
		if err != nil {
			fmt.Fprintf(os.Stderr, "add: parse date %q: %v\n", c.date, err)
			return subcommands.ExitUsageError
		}
		date = parsed
	}
	var tags []string
	for _, tag := range strings.Split(c.tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	cfg, repo, err := openRepository(c.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer repo.Close()

	owner, err := resolveOwner(c.owner, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	ctx := commandContext(owner)
	book, err := repo.LoadBook(ctx, owner)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load book: %v\n", err)
		return subcommands.ExitFailure
	}
	observeBook(ctx, book)

	tx := ledger.NewTransaction(owner, c.description, tags, date, txType)
	book.AddTransaction(tx)
	for _, p := range c.postings {
		accountID, rawAmount, err := parsePosting(p)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
		var account *ledger.Account
		if accountID != 0 {
			if account, err = book.AccountByID(accountID); err != nil {
				fmt.Fprintf(os.Stderr, "account %d: %v\n", accountID, err)
				return subcommands.ExitFailure
			}
		}
		book.AddComponent(tx, account, rawAmount)
	}

	if err := repo.SaveTransaction(ctx, owner, tx); err != nil {
		fmt.Fprintf(os.Stderr, "save transaction: %v\n", err)
		return subcommands.ExitFailure
	}
	for _, account := range tx.Accounts() {
		if err := repo.SaveAccount(ctx, owner, account); err != nil {
			fmt.Fprintf(os.Stderr, "save account %q: %v\n", account.Name, err)
			return subcommands.ExitFailure
		}
	}

	_ = audit.LogEvent(ctx, "finbook.add", map[string]any{
		"transaction_id": tx.ID,
		"postings":       len(c.postings),
		"amount":         tx.RawAmount(),
	})
	if !tx.IsAmountValid() {
		fmt.Fprintln(os.Stderr, "warning: transfer postings do not balance")
	}
	fmt.Printf("transaction %d recorded, amount %s\n", tx.ID, ledger.FormatAmount(tx.RawAmount()))
	return subcommands.ExitSuccess
}
