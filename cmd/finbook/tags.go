package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type tagsCmd struct {
	configPath string
	owner      string
}

func (*tagsCmd) Name() string     { return "tags" }
func (*tagsCmd) Synopsis() string { return "list every tag used by the owner's transactions" }
func (*tagsCmd) Usage() string {
	return `finbook tags [-owner <owner>] [-config <path>]

  Prints the sorted set of tags across all of the owner's transactions.
`
}

func (c *tagsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "Path to the YAML configuration file.")
	f.StringVar(&c.owner, "owner", "", "Owner of the book. Overrides the configured owner.")
}

func (c *tagsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	book, err := repo.LoadBook(commandContext(owner), owner)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load book: %v\n", err)
		return subcommands.ExitFailure
	}
	for _, tag := range book.AllTags() {
		fmt.Println(tag)
	}
	return subcommands.ExitSuccess
}
