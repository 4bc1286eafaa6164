package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/checkout"
	"github.com/c50bossio/6fb-methodologies-sub002/internal/config"
	"github.com/c50bossio/6fb-methodologies-sub002/internal/report"
)

// NewEventsCommand creates the events command.
func NewEventsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List events with their limits",
		Long: `List every event in the catalog with its public limits.

A limit shown as "15 (+10)" has been expanded by ten spots above the
advertised fifteen.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, "events", func(ctx context.Context, s *session, out *OutputFormatter) error {
				events, err := report.New(s.inv).Events(ctx)
				if err != nil {
					return err
				}
				return out.Success(events)
			})
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status [event]",
		Short: "Show availability",
		Long: `Show limits, sales and availability.

Without an argument every event is listed with totals. PUBLIC AVAIL is what
customers are shown; ACTUAL AVAIL is what can still be allocated.

Examples:
  invctl status
  invctl status dallas --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, "status", func(ctx context.Context, s *session, out *OutputFormatter) error {
				r := report.New(s.inv)
				if len(args) == 0 {
					o, err := r.Overview(ctx)
					if err != nil {
						return err
					}
					return out.Success(o)
				}
				snap, err := r.Event(ctx, config.NormalizeEventID(args[0]))
				if err != nil {
					return err
				}
				return out.Success(snap)
			})
		},
	}
}

// NewCheckCommand creates the check command.
func NewCheckCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <event> <tier> <quantity>",
		Short: "Check whether a purchase could be allocated",
		Long: `Run the checkout pre-validation for a prospective purchase.

The check is advisory: nothing is reserved. When the request cannot be
met, alternatives with enough actual availability are suggested.

Exit codes:
  0 - The request can be allocated right now
  1 - The request cannot be allocated
  2 - Command error (unknown event, invalid tier, etc.)`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := countArg("quantity", args[2])
			if err != nil {
				return err
			}
			return withSession(cmd, opts, "check", func(ctx context.Context, s *session, out *OutputFormatter) error {
				v, err := s.validator().Validate(ctx, config.NormalizeEventID(args[0]), tierArg(args[1]), qty)
				if err != nil {
					return err
				}
				if err := out.Result(v, func(w io.Writer) error { return writeValidation(w, v) }); err != nil {
					return err
				}
				if !v.Valid {
					return NewExitError(ExitFailure, v.Message)
				}
				return nil
			})
		},
	}
}

func writeValidation(w io.Writer, v checkout.Validation) error {
	if v.Valid {
		_, err := fmt.Fprintf(w, "OK: %d %s for %s (%d available)\n", v.Requested, v.Tier, v.EventID, v.Available)
		return err
	}
	fmt.Fprintf(w, "Unavailable: %s\n", v.Message)
	for _, sg := range v.Suggestions {
		fmt.Fprintf(w, "  try %s %s (%d available)\n", sg.EventID, sg.Tier, sg.Available)
	}
	return nil
}

// withSession opens a session, runs fn and maps its error onto the output
// format and exit code. Errors already carrying an exit code pass through.
func withSession(cmd *cobra.Command, opts *RootOptions, op string, fn func(context.Context, *session, *OutputFormatter) error) error {
	out := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSession(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if opts.Database == "" && mutatingOps[op] {
		s.logger.Warn("no --db given: this change is discarded when the command exits", "op", op)
	}

	if err := fn(ctx, s, out); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		return out.Fail(op, err)
	}
	return nil
}
