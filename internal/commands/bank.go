package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/importer"
)

func newBankCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Bank statement operations",
	}
	cmd.AddCommand(newBankImportCommand(opts))
	return cmd
}

func newBankImportCommand(opts *rootOptions) *cobra.Command {
	var format string
	var m importer.Mapping

	cmd := &cobra.Command{
		Use:   "import [statement.csv...]",
		Short: "Post one journal per bank statement row",
		Long: "Post one journal per bank statement row against --bank and --contra.\n" +
			"Without arguments, every CSV in the ledger's import/ directory is posted\n" +
			"and moved to import/processed/ when none of its rows was rejected.",
		RunE: func(cmd *cobra.Command, args []string) error {
			parser := importer.DefaultRegistry().Get(format)
			if parser == nil {
				return fmt.Errorf("unknown statement format %q", format)
			}

			root, err := filepath.Abs(filepath.Dir(opts.configPath))
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			files := make([]importer.FileInfo, 0, len(args))
			for _, a := range args {
				files = append(files, importer.FileInfo{Name: filepath.Base(a), Path: a})
			}
			scanned := len(args) == 0
			if scanned {
				if files, err = importer.Scan(root); err != nil {
					return err
				}
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No statements to import")
				return nil
			}

			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()
			svc, err := a.journals(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, f := range files {
				txns, err := parseFile(parser, f.Path)
				if err != nil {
					return err
				}
				res, err := importer.Post(cmd.Context(), svc, txns, m)
				fmt.Fprintf(out, "%s: posted %d, skipped %d, rejected %d\n",
					f.Name, len(res.Posted), res.Skipped, len(res.Failed))
				for _, fl := range res.Failed {
					fmt.Fprintf(out, "  %s: %v\n", fl.Reference, fl.Err)
				}
				if err != nil {
					return err
				}
				if scanned && len(res.Failed) == 0 {
					if err := importer.MarkProcessed(root, f.Name); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "chase", "statement format (chase, simple)")
	cmd.Flags().StringVar(&m.BankAccount, "bank", "", "bank account code (required)")
	cmd.Flags().StringVar(&m.BankSubAccount, "bank-sub", "", "bank sub-account code")
	cmd.Flags().StringVar(&m.ContraAccount, "contra", "1190", "contra account code")
	_ = cmd.MarkFlagRequired("bank")
	return cmd
}

func parseFile(p importer.Parser, path string) ([]importer.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return p.Parse(f)
}
