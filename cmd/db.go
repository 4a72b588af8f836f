package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/penf-transcripts/config"
	"github.com/otherjamesbrown/penf-transcripts/pkg/db"
)

// NewDbCommand creates the db command group.
func NewDbCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	c := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Manage the transcript database schema.

The schema ships inside the binary and is tracked in the schema_migrations
table. Commands that store transcripts apply pending migrations on connect;
these commands inspect and apply them explicitly.

The database comes from DATABASE_URL or the database section of the config
file, and the password from DB_PASSWORD or 'penf-transcripts credentials'.`,
		Example: `  penf-transcripts db status
  penf-transcripts db migrate --dry-run
  penf-transcripts db migrate --yes`,
		Aliases: []string{"database", "migrations"},
	}
	c.AddCommand(newDbMigrateCommand(deps), newDbStatusCommand(deps))
	return c
}

type migrateOptions struct {
	dryRun bool
	yes    bool
}

func newDbMigrateCommand(deps *CommandDeps) *cobra.Command {
	var opts migrateOptions
	c := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply pending database migrations.

Pending migrations are listed before anything runs. Each one is applied in its
own transaction; the first failure is rolled back and stops the run.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return withSchemaPool(c, deps, func(ctx context.Context, cfg *config.CLIConfig, pool *pgxpool.Pool) error {
				return runDbMigrate(ctx, deps, pool, opts)
			})
		},
	}
	c.Flags().BoolVar(&opts.dryRun, "dry-run", false, "list pending migrations without applying them")
	c.Flags().BoolVarP(&opts.yes, "yes", "y", false, "apply without asking for confirmation")
	return c
}

func newDbStatusCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show database migration status",
		Long: `Show which migrations are applied, which are pending, and which were
applied by another build but do not ship with this one (drift).`,
		Example: `  penf-transcripts db status
  penf-transcripts db status -o json`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return withSchemaPool(c, deps, func(ctx context.Context, cfg *config.CLIConfig, pool *pgxpool.Pool) error {
				status, err := db.GetMigrationStatus(ctx, pool, db.Schema())
				if err != nil {
					return fmt.Errorf("getting migration status: %w", err)
				}
				return writeOutput(deps.Out, cfg.OutputFormat, status, func(w io.Writer) error {
					outputMigrationStatusText(w, newStyles(deps.StdoutIsTerminal()), status)
					return nil
				})
			})
		},
	}
}

// withSchemaPool connects to the configured database for the duration of fn.
// Unlike requireStore it does not migrate on connect.
func withSchemaPool(c *cobra.Command, deps *CommandDeps, fn func(context.Context, *config.CLIConfig, *pgxpool.Pool) error) error {
	cfg, err := deps.config()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if !cfg.Database.IsConfigured() {
		return errNoDatabase
	}

	ctx, cancel := commandContext(c, cfg)
	defer cancel()

	pool, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

func runDbMigrate(ctx context.Context, deps *CommandDeps, pool *pgxpool.Pool, opts migrateOptions) error {
	status, err := db.GetMigrationStatus(ctx, pool, db.Schema())
	if err != nil {
		return fmt.Errorf("getting migration status: %w", err)
	}

	out := deps.Out
	st := newStyles(deps.StdoutIsTerminal())
	if len(status.Pending) == 0 {
		printf(out, "No pending migrations.\n")
		return nil
	}

	printf(out, "Pending migrations (%d):\n", len(status.Pending))
	for _, m := range status.Pending {
		printf(out, "  %s - %s\n", m.Version, m.Name)
	}
	printf(out, "\n")

	switch {
	case opts.dryRun:
		printf(out, "Dry run: nothing applied.\n")
		return nil
	case !opts.yes && !confirm(deps.In, out, "Apply these migrations? (y/N): "):
		printf(out, "Migration cancelled.\n")
		return nil
	}

	result, err := db.RunMigrations(ctx, pool, db.Schema())
	var applied []string
	if result != nil {
		applied = result.Applied
	}
	if err != nil {
		printf(out, "%s %v\n", st.render(st.fail, "Migration failed:"), err)
		if len(applied) > 0 {
			printf(out, "\nApplied before the failure:\n")
		}
	} else if len(applied) > 0 {
		printf(out, "%s\n", st.render(st.ok, fmt.Sprintf("Applied %d migration(s):", len(applied))))
	}
	for _, v := range applied {
		printf(out, "  %s %s\n", st.render(st.ok, "✓"), v)
	}
	return err
}

// outputMigrationStatusText renders a status report as sectioned tables.
func outputMigrationStatusText(w io.Writer, st *styles, status *db.MigrationStatus) {
	if len(status.Applied)+len(status.Pending)+len(status.Drift) == 0 {
		printf(w, "No migrations found.\n")
		return
	}

	sections := []struct {
		title   string
		style   func(string) string
		entries []db.MigrationStatusEntry
	}{
		{"Applied Migrations", func(s string) string { return st.render(st.ok, s) }, status.Applied},
		{"Pending Migrations", func(s string) string { return st.render(st.warn, s) }, status.Pending},
		{"Drift - applied but unknown to this binary", func(s string) string { return st.render(st.fail, s) }, status.Drift},
	}
	for _, sec := range sections {
		if len(sec.entries) == 0 {
			continue
		}
		printf(w, "%s\n", sec.style(fmt.Sprintf("%s (%d):", sec.title, len(sec.entries))))
		printf(w, "  %-10s %-40s %s\n", "VERSION", "NAME", "APPLIED")
		for _, m := range sec.entries {
			at := "-"
			if m.AppliedAt != nil {
				at = m.AppliedAt.Local().Format("2006-01-02 15:04:05")
			}
			printf(w, "  %-10s %-40s %s\n", truncate(m.Version, 10), truncate(m.Name, 40), at)
		}
		printf(w, "\n")
	}

	printf(w, "Summary: %d applied, %d pending", len(status.Applied), len(status.Pending))
	if len(status.Drift) > 0 {
		printf(w, ", %s", st.render(st.fail, fmt.Sprintf("%d drift", len(status.Drift))))
	}
	printf(w, "\n")
}

// confirm asks a yes/no question on in. Only "y" or "Y" accepts.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	printf(out, "%s", prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(line), "y")
}
