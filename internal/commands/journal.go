package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/journal"
)

const dateLayout = "2006-01-02"

func newJournalCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Post, inspect and correct journals",
	}
	cmd.AddCommand(newJournalPostCommand(opts))
	cmd.AddCommand(newJournalValidateCommand(opts))
	cmd.AddCommand(newJournalUpdateCommand(opts))
	cmd.AddCommand(newJournalShowCommand(opts))
	cmd.AddCommand(newJournalListCommand(opts))
	cmd.AddCommand(newJournalDeleteCommand(opts))
	return cmd
}

// entryFlags are the header flags shared by post, validate and update.
type entryFlags struct {
	date        string
	description string
}

func (f *entryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "posting date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&f.description, "description", "", "journal description")
	_ = cmd.MarkFlagRequired("date")
}

func (f *entryFlags) entry(cmd *cobra.Command, linesPath string) (journal.Entry, error) {
	date, err := time.Parse(dateLayout, f.date)
	if err != nil {
		return journal.Entry{}, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", f.date)
	}
	lines, err := readCSV(cmd, linesPath, journal.ReadLines)
	if err != nil {
		return journal.Entry{}, err
	}
	return journal.Entry{Date: date, Description: f.description, Lines: lines}, nil
}

func newJournalPostCommand(opts *rootOptions) *cobra.Command {
	var flags entryFlags
	cmd := &cobra.Command{
		Use:   "post <lines.csv>",
		Short: "Post a journal and print its number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.entry(cmd, args[0])
			if err != nil {
				return err
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
			number, err := svc.Create(cmd.Context(), e)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), number)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newJournalValidateCommand(opts *rootOptions) *cobra.Command {
	var flags entryFlags
	cmd := &cobra.Command{
		Use:   "validate <lines.csv>",
		Short: "Check a journal without posting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.entry(cmd, args[0])
			if err != nil {
				return err
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
			if err := svc.Validate(cmd.Context(), e); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newJournalUpdateCommand(opts *rootOptions) *cobra.Command {
	var flags entryFlags
	cmd := &cobra.Command{
		Use:   "update <number> <lines.csv>",
		Short: "Replace a journal's header and lines",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.entry(cmd, args[1])
			if err != nil {
				return err
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
			if err := svc.Update(cmd.Context(), args[0], e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newJournalShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <number>",
		Short: "Print a journal header followed by its lines as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.journals(cmd.Context())
			if err != nil {
				return err
			}
			j, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# number: %s\n", j.Number)
			fmt.Fprintf(out, "# date: %s\n", j.Date.Format(dateLayout))
			fmt.Fprintf(out, "# description: %s\n", j.Description)
			fmt.Fprintf(out, "# total: %s\n", j.TotalAmount.StringFixed(a.cfg.Ledger.AmountScale))
			return journal.WriteLines(out, j.Lines)
		},
	}
}

func newJournalListCommand(opts *rootOptions) *cobra.Command {
	var r dateRange
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journals dated within a range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := r.parse()
			if err != nil {
				return err
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
			list, err := svc.List(cmd.Context(), from, to)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NUMBER\tDATE\tLINES\tTOTAL\tDESCRIPTION")
			for _, j := range list {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					j.Number, j.Date.Format(dateLayout), len(j.Lines),
					j.TotalAmount.StringFixed(a.cfg.Ledger.AmountScale), j.Description)
			}
			return tw.Flush()
		},
	}
	r.register(cmd)
	return cmd
}

func newJournalDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <number>",
		Short: "Delete a journal and its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.journals(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

// dateRange holds --from and --to.
type dateRange struct {
	from, to string
}

func (r *dateRange) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.from, "from", "", "first date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&r.to, "to", "", "last date, YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
}

func (r *dateRange) parse() (from, to time.Time, err error) {
	if from, err = time.Parse(dateLayout, r.from); err != nil {
		return from, to, fmt.Errorf("invalid --from %q: want YYYY-MM-DD", r.from)
	}
	if to, err = time.Parse(dateLayout, r.to); err != nil {
		return from, to, fmt.Errorf("invalid --to %q: want YYYY-MM-DD", r.to)
	}
	return from, to, nil
}
