package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/config"
	"github.com/cleared-dev/ledger/internal/importer"
	"github.com/cleared-dev/ledger/internal/store/sqlstore"
)

func newInitCommand() *cobra.Command {
	var name, driver, dsn string
	var scale int32

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new ledger with the default chart of accounts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			cfg := config.Default(name)
			cfg.Ledger.AmountScale = scale
			if driver != "" {
				cfg.Database.Driver = driver
			}
			if dsn != "" {
				cfg.Database.DSN = dsn
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := runInit(cmd.Context(), absDir, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized ledger at %s\n", absDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "ledger name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&driver, "driver", "", "database driver: sqlite3 or postgres")
	cmd.Flags().StringVar(&dsn, "dsn", "", "database DSN or SQLite file path")
	cmd.Flags().Int32Var(&scale, "scale", 2, "decimal places stored per amount")

	return cmd
}

func runInit(ctx context.Context, dir string, cfg *config.Config) error {
	for _, d := range []string{"logs", importer.ImportDir, filepath.Join(importer.ImportDir, "processed")} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	// Write ledger.yaml.
	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Write the chart of accounts so it can be edited and re-imported.
	chart := accounts.DefaultChart()
	f, err := os.Create(filepath.Join(dir, "accounts.csv"))
	if err != nil {
		return fmt.Errorf("creating accounts.csv: %w", err)
	}
	if err := accounts.WriteAccounts(f, chart); err != nil {
		f.Close()
		return fmt.Errorf("writing chart of accounts: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing chart of accounts: %w", err)
	}

	// Create the schema and seed the chart.
	resolved := *cfg
	resolved.Resolve(dir)
	st, err := sqlstore.Open(ctx, resolved.Database.Driver, resolved.Database.DSN, sqlstore.Options{
		Scale:           resolved.Ledger.AmountScale,
		MaxOpenConns:    resolved.Database.MaxOpenConns,
		MaxIdleConns:    resolved.Database.MaxIdleConns,
		ConnMaxLifetime: resolved.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}
	if err := st.SaveAccounts(ctx, chart); err != nil {
		return fmt.Errorf("seeding chart of accounts: %w", err)
	}
	return nil
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema up to date")
			return nil
		},
	}
}
