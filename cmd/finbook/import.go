package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"finbook.org/internal/audit"
	"finbook.org/internal/ledger"
	"finbook.org/internal/xmlio"
)

type importCmd struct {
	configPath string
	file       string
	owner      string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import accounts and transactions from an XML file" }
func (*importCmd) Usage() string {
	return `finbook import -file <path> [-owner <owner>] [-config <path>]

  Reads an XML export and stores its accounts, transactions and currency
  rates under the owner. Imported entities get fresh identities; account
  balances are rebuilt from the imported postings, not read from the file.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "Path to the YAML configuration file.")
	f.StringVar(&c.file, "file", "", "XML file to import.")
	f.StringVar(&c.owner, "owner", "", "Owner of the imported book. Overrides the configured owner.")
}

func (c *importCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.file == "" {
		fmt.Fprintln(os.Stderr, "import: -file is required")
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

	in, err := os.Open(c.file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer in.Close()

	ctx := commandContext(owner)
	book := ledger.NewBook(owner)
	observeBook(ctx, book)

	rates, err := xmlio.Import(in, book)
	if err != nil {
		fmt.Fprintf(os.Stderr, "import %s: %v\n", c.file, err)
		return subcommands.ExitFailure
	}

	if err := persistBook(ctx, repo, owner, book, rates); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	_ = audit.LogEvent(ctx, "finbook.import", map[string]any{
		"file":         c.file,
		"accounts":     len(book.Accounts()),
		"transactions": len(book.Transactions()),
		"rates":        len(rates),
	})
	fmt.Printf("imported %d accounts, %d transactions, %d rates\n",
		len(book.Accounts()), len(book.Transactions()), len(rates))
	return subcommands.ExitSuccess
}
