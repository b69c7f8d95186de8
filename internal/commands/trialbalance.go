package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/trialbalance"
)

func newTrialBalanceCommand(opts *rootOptions) *cobra.Command {
	var r dateRange
	var types []string
	var includeZero, subAccounts bool

	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Print the trial balance for a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := r.parse()
			if err != nil {
				return err
			}
			req := trialbalance.Request{
				From:               from,
				To:                 to,
				IncludeZeroBalance: includeZero,
				IncludeSubAccounts: subAccounts,
			}
			for _, t := range types {
				req.Types = append(req.Types, model.AccountType(t))
			}

			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.trialBalance().Compute(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printTrialBalance(cmd.OutOrStdout(), report, a.cfg.Ledger.AmountScale)
		},
	}

	r.register(cmd)
	cmd.Flags().StringSliceVar(&types, "type", nil, "restrict to account types (asset, liability, equity, revenue, expense)")
	cmd.Flags().BoolVar(&includeZero, "include-zero", false, "include accounts with no balance or movement")
	cmd.Flags().BoolVar(&subAccounts, "sub-accounts", false, "break accounts down by sub-account")
	return cmd
}

func printTrialBalance(w io.Writer, r *trialbalance.Report, scale int32) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	amounts := func(a trialbalance.Amounts) string {
		return fmt.Sprintf("%s\t%s\t%s\t%s\t",
			a.Opening.StringFixed(scale), a.Debit.StringFixed(scale),
			a.Credit.StringFixed(scale), a.Closing.StringFixed(scale))
	}

	fmt.Fprintf(w, "Trial balance %s to %s\n\n", r.From.Format(dateLayout), r.To.Format(dateLayout))
	fmt.Fprintln(tw, "ACCOUNT\tNAME\tOPENING\tDEBIT\tCREDIT\tCLOSING\t")

	subtotals := make(map[model.AccountType]trialbalance.Amounts, len(r.Subtotals))
	for _, st := range r.Subtotals {
		subtotals[st.AccountType] = st.Amounts
	}

	for i, row := range r.Rows {
		code, name := row.AccountCode, row.AccountName
		if row.SubAccount {
			code, name = row.AccountCode+"/"+row.SubAccountCode, row.SubAccountName
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\n", strings.Repeat("  ", row.Depth), code, name, amounts(row.Amounts))

		last := i == len(r.Rows)-1 || r.Rows[i+1].AccountType != row.AccountType
		if last {
			fmt.Fprintf(tw, "Total %s\t\t%s\n", row.AccountType, amounts(subtotals[row.AccountType]))
		}
	}
	fmt.Fprintf(tw, "Grand total\t\t%s\n", amounts(r.GrandTotal))
	return tw.Flush()
}
