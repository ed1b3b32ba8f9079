package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"finbook.org/internal/audit"
	"finbook.org/internal/ledger"
)

type recalcCmd struct {
	configPath string
	owner      string
	account    int64
}

func (*recalcCmd) Name() string     { return "recalc" }
func (*recalcCmd) Synopsis() string { return "recompute an account balance from its postings" }
func (*recalcCmd) Usage() string {
	return `finbook recalc -account <id> [-owner <owner>] [-config <path>]

  Recomputes the cached balance of the account as the sum over all stored
  postings, repairing drift from partial failures or external edits, and
  prints the repaired balance.
`
}

func (c *recalcCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "Path to the YAML configuration file.")
	f.StringVar(&c.owner, "owner", "", "Owner of the account. Overrides the configured owner.")
	f.Int64Var(&c.account, "account", 0, "Account ID to recalculate.")
}

func (c *recalcCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == 0 {
		fmt.Fprintln(os.Stderr, "recalc: -account is required")
		return subcommands.ExitUsageError
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
	balance, err := repo.RecalculateBalance(ctx, owner, c.account)
	if err != nil {
		fmt.Fprintf(os.Stderr, "recalculate account %d: %v\n", c.account, err)
		return subcommands.ExitFailure
	}
	_ = audit.LogEvent(ctx, "finbook.recalc", map[string]any{
		"account_id": c.account,
		"balance":    balance,
	})
	fmt.Printf("account %d balance %s\n", c.account, ledger.FormatAmount(balance))
	return subcommands.ExitSuccess
}
