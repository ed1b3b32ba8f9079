package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"finbook.org/internal/audit"
	"finbook.org/internal/xmlio"
)

type exportCmd struct {
	configPath string
	file       string
	owner      string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export the owner's book to an XML file" }
func (*exportCmd) Usage() string {
	return `finbook export [-file <path>] [-owner <owner>] [-config <path>]

  Writes the owner's accounts, transactions and currency rates as an XML
  document. Without -file the document goes to stdout.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "Path to the YAML configuration file.")
	f.StringVar(&c.file, "file", "", "Destination file. Defaults to stdout.")
	f.StringVar(&c.owner, "owner", "", "Owner of the exported book. Overrides the configured owner.")
}

func (c *exportCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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
	rates, err := repo.Rates(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load rates: %v\n", err)
		return subcommands.ExitFailure
	}

	var out io.Writer = os.Stdout
	if c.file != "" {
		dst, err := os.Create(c.file)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		defer dst.Close()
		out = dst
	}

	if err := xmlio.Export(out, book, rates); err != nil {
		fmt.Fprintf(os.Stderr, "export: %v\n", err)
		return subcommands.ExitFailure
	}
	_ = audit.LogEvent(ctx, "finbook.export", map[string]any{
		"file":         c.file,
		"accounts":     len(book.Accounts()),
		"transactions": len(book.Transactions()),
	})
	return subcommands.ExitSuccess
}
