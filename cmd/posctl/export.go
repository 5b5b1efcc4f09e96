package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/subcommands"
	"github.com/google/uuid"

	"github.com/nkiryanov/vendorpos/internal/db"
	"github.com/nkiryanov/vendorpos/internal/repository/postgres"
	"github.com/nkiryanov/vendorpos/internal/service/report"
)

type exportCmd struct {
	getenv func(string) string
	stdout io.Writer

	dsn      string
	vendor   string
	start    string
	end      string
	timezone string
	currency string
	dir      string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export transactions as CSV" }
func (*exportCmd) Usage() string {
	return `posctl export [-vendor <id>] [-s <YYYY-MM-DD>] [-e <YYYY-MM-DD>] [-dir <path>]

  Writes the general report, or the sales report of one vendor, for the
  inclusive date range. The file is named after the range and written to -dir,
  or to stdout when -dir is empty.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dsn, "dsn", "", "Database connection string. Defaults to DATABASE_URI.")
	f.StringVar(&c.vendor, "vendor", "", "Vendor id. All records when empty.")
	f.StringVar(&c.start, "s", "", "First day of the range (YYYY-MM-DD).")
	f.StringVar(&c.end, "e", "", "Last day of the range (YYYY-MM-DD).")
	f.StringVar(&c.timezone, "tz", "UTC", "Timezone the days are resolved in.")
	f.StringVar(&c.currency, "currency", report.DefaultCurrency, "Display currency (ISO 4217).")
	f.StringVar(&c.dir, "dir", "", "Directory to write the file to. Stdout when empty.")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	dsn := c.dsn
	if dsn == "" {
		dsn = c.getenv("DATABASE_URI")
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "Error: -dsn flag or DATABASE_URI is required.")
		return subcommands.ExitUsageError
	}

	q, layout, err := c.query()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	location, err := time.LoadLocation(c.timezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading timezone: %v\n", err)
		return subcommands.ExitUsageError
	}

	pool, err := db.Connect(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to database: %v\n", err)
		return subcommands.ExitFailure
	}
	defer pool.Close()

	svc, err := report.NewService(report.Config{Location: location, Currency: c.currency}, postgres.NewStorage(pool))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	var buf bytes.Buffer
	filename, err := svc.Export(ctx, &buf, q, layout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error exporting transactions: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.dir == "" {
		_, _ = c.stdout.Write(buf.Bytes())
		return subcommands.ExitSuccess
	}

	path := filepath.Join(c.dir, filename)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(c.stdout, path)

	return subcommands.ExitSuccess
}

// Vendor exports use the sales report layout, everything else the general one
func (c *exportCmd) query() (report.Query, report.Layout, error) {
	period, err := report.ParsePeriod(c.start, c.end)
	if err != nil {
		return report.Query{}, 0, err
	}

	q := report.Query{Period: period}
	if c.vendor == "" {
		return q, report.LayoutAdmin, nil
	}

	id, err := uuid.Parse(c.vendor)
	if err != nil {
		return report.Query{}, 0, fmt.Errorf("invalid vendor id %q: %w", c.vendor, err)
	}
	q.VendorID = &id

	return q, report.LayoutVendor, nil
}
