package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/admin"
	"github.com/c50bossio/6fb-methodologies-sub002/internal/config"
	"github.com/c50bossio/6fb-methodologies-sub002/internal/report"
)

// LedgerOptions holds flags for the ledger commands.
type LedgerOptions struct {
	*RootOptions
	Limit int // most recent entries; 0 means all
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LedgerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "history <event>",
		Short:         "Show status, transactions and expansions of an event",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts.RootOptions, "history", func(ctx context.Context, s *session, out *OutputFormatter) error {
				h, err := s.admin().History(ctx, config.NormalizeEventID(args[0]), opts.Limit)
				if err != nil {
					return err
				}
				return out.Result(h, func(w io.Writer) error { return writeHistory(w, h) })
			})
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of recent transactions to show (0 for all)")
	return cmd
}

// NewTransactionsCommand creates the transactions command.
func NewTransactionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LedgerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "transactions <event>",
		Short: "List ledger entries of an event, newest first",
		Args:  cobra.ExactArgs(1),
		Example: `  invctl transactions dallas --limit 5
  invctl transactions dallas --db inventory.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Limit < 0 {
				return NewExitError(ExitCommandError, "--limit must not be negative")
			}
			return withSession(cmd, opts.RootOptions, "transactions", func(ctx context.Context, s *session, out *OutputFormatter) error {
				txs, err := s.inv.Transactions(ctx, config.NormalizeEventID(args[0]), opts.Limit)
				if err != nil {
					return err
				}
				return out.Success(txs)
			})
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "number of recent transactions (0 for all)")
	return cmd
}

// NewExpansionsCommand creates the expansions command.
func NewExpansionsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "expansions <event>",
		Short:         "List capacity expansions of an event, newest first",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, "expansions", func(ctx context.Context, s *session, out *OutputFormatter) error {
				exps, err := s.inv.Expansions(ctx, config.NormalizeEventID(args[0]))
				if err != nil {
					return err
				}
				return out.Success(exps)
			})
		},
	}
}

func writeHistory(w io.Writer, h admin.History) error {
	if err := report.Render(w, report.FormatText, h.Snapshot); err != nil {
		return err
	}
	fmt.Fprintln(w)
	if err := report.Render(w, report.FormatText, h.Transactions); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return report.Render(w, report.FormatText, h.Expansions)
}
