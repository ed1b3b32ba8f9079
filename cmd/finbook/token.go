package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"finbook.org/internal/audit"
	"finbook.org/internal/auth"
)

// Per-owner throttle shared across login attempts in this process.
var loginThrottle = auth.NewLoginThrottle(5, 5)

type tokenCmd struct {
	configPath string
	owner      string
	password   string
	ttl        time.Duration
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "issue a signed access token for the owner" }
func (*tokenCmd) Usage() string {
	return `finbook token -owner <owner> -password <password> [-ttl <duration>] [-config <path>]

  Verifies the password against the owner's stored credentials and issues an
  HS256 token signed with FINBOOK_AUTH_SECRET. Useful for scripting against
  collaborators that verify owner identity.
`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "Path to the YAML configuration file.")
	f.StringVar(&c.owner, "owner", "", "Owner to issue the token for. Overrides the configured owner.")
	f.StringVar(&c.password, "password", "", "Password to verify.")
	f.DurationVar(&c.ttl, "ttl", 24*time.Hour, "Token lifetime.")
}

func (c *tokenCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.password == "" {
		fmt.Fprintln(os.Stderr, "token: -password is required")
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

	ctx := commandContext(owner)
	if !loginThrottle.Allow(owner) {
		fmt.Fprintf(os.Stderr, "too many login attempts for %s\n", owner)
		return subcommands.ExitFailure
	}
	hash, err := creds.CredentialHash(ctx, owner)
	if err != nil {
		fmt.Fprintf(os.Stderr, "no credentials for %s: register first\n", owner)
		return subcommands.ExitFailure
	}
	if err := auth.VerifyPassword(hash, c.password); err != nil {
		_ = audit.LogEvent(ctx, "finbook.login.denied", map[string]any{"owner": owner})
		fmt.Fprintln(os.Stderr, "invalid password")
		return subcommands.ExitFailure
	}

	token, err := auth.GenerateToken(owner, c.ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	_ = audit.LogEvent(ctx, "finbook.login", map[string]any{"owner": owner, "ttl": c.ttl.String()})
	fmt.Println(token)
	return subcommands.ExitSuccess
}
