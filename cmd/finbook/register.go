package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"finbook.org/internal/audit"
	"finbook.org/internal/auth"
)

type registerCmd struct {
	configPath string
	owner      string
	password   string
}

func (*registerCmd) Name() string     { return "register" }
func (*registerCmd) Synopsis() string { return "set the owner's login password" }
func (*registerCmd) Usage() string {
	return `finbook register -owner <owner> -password <password> [-config <path>]

  Stores a bcrypt hash of the password for the owner, creating the owner's
  credentials or replacing existing ones. The password itself is never
  persisted.
`
}

func (c *registerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "Path to the YAML configuration file.")
	f.StringVar(&c.owner, "owner", "", "Owner to register. Overrides the configured owner.")
	f.StringVar(&c.password, "password", "", "Password to set.")
}

func (c *registerCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.password == "" {
		fmt.Fprintln(os.Stderr, "register: -password is required")
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
	creds, err := credentialStore(repo)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	hash, err := auth.HashPassword(c.password)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	ctx := commandContext(owner)
	if err := creds.SaveCredential(ctx, owner, hash); err != nil {
		fmt.Fprintf(os.Stderr, "save credentials: %v\n", err)
		return subcommands.ExitFailure
	}
	_ = audit.LogEvent(ctx, "finbook.register", map[string]any{"owner": owner})
	fmt.Printf("credentials set for %s\n", owner)
	return subcommands.ExitSuccess
}
