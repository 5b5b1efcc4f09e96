package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/nkiryanov/vendorpos/internal/db"
)

type migrateCmd struct {
	getenv func(string) string

	dsn  string
	down int
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply or roll back database migrations" }
func (*migrateCmd) Usage() string {
	return `posctl migrate [-dsn <database_uri>] [-down <steps>]

  Applies all pending migrations. With -down rolls back the given number of steps.
  The DSN defaults to DATABASE_URI.
`
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dsn, "dsn", "", "Database connection string. Defaults to DATABASE_URI.")
	f.IntVar(&c.down, "down", 0, "Number of migrations to roll back.")
}

func (c *migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	dsn := c.dsn
	if dsn == "" {
		dsn = c.getenv("DATABASE_URI")
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "Error: -dsn flag or DATABASE_URI is required.")
		return subcommands.ExitUsageError
	}
	if c.down < 0 {
		fmt.Fprintln(os.Stderr, "Error: -down must not be negative.")
		return subcommands.ExitUsageError
	}

	var err error
	if c.down > 0 {
		err = db.MigrateDown(dsn, c.down)
	} else {
		err = db.Migrate(dsn)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error migrating database: %v\n", err)
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}
