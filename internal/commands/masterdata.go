package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/model"
)

func newAccountsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage the chart of accounts",
	}
	cmd.AddCommand(newAccountsImportCommand(opts))
	cmd.AddCommand(newSubAccountsImportCommand(opts))
	cmd.AddCommand(newAccountsListCommand(opts))
	return cmd
}

func newAccountsImportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <accounts.csv>",
		Short: "Insert or update accounts from CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := readCSV(cmd, args[0], accounts.ReadAccounts)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.SaveAccounts(cmd.Context(), list); err != nil {
				return err
			}
			// surface cycles or type mismatches the import introduced
			if _, err := accounts.Load(cmd.Context(), a.store); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d accounts\n", len(list))
			return nil
		},
	}
}

func newSubAccountsImportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import-subs <sub_accounts.csv>",
		Short: "Insert or update sub-accounts from CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := readCSV(cmd, args[0], accounts.ReadSubAccounts)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.SaveSubAccounts(cmd.Context(), list); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d sub-accounts\n", len(list))
			return nil
		},
	}
}

func newAccountsListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the chart of accounts as a tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ix, err := accounts.Load(cmd.Context(), a.store)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tNAME\tTYPE\tPOSTABLE\tACTIVE")
			ix.Walk(func(acct model.Account, depth int) bool {
				fmt.Fprintf(tw, "%s%s\t%s\t%s\t%t\t%t\n",
					strings.Repeat("  ", depth), acct.Code, acct.Name, acct.Type, acct.Detail, acct.Active)
				for _, s := range ix.SubAccounts(acct.Code) {
					fmt.Fprintf(tw, "%s%s/%s\t%s\t\t\t%t\n",
						strings.Repeat("  ", depth+1), acct.Code, s.Code, s.Name, s.Active)
				}
				return true
			})
			return tw.Flush()
		},
	}
}

func newRefsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refs",
		Short: "Manage partner, analysis and tax codes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <references.csv>",
		Short: "Insert or update reference codes from CSV (kind,code,name,active)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := readCSV(cmd, args[0], accounts.ReadReferences)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.SaveReferences(cmd.Context(), list); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d references\n", len(list))
			return nil
		},
	})
	return cmd
}

// readCSV parses path with read; "-" reads standard input.
func readCSV[T any](cmd *cobra.Command, path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	if path == "-" {
		return read(cmd.InOrStdin())
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return read(f)
}
