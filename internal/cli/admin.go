package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/admin"
	"github.com/c50bossio/6fb-methodologies-sub002/internal/config"
)

// AdminOptions holds flags for the operator commands.
type AdminOptions struct {
	*RootOptions
	AuthorizedBy string
	Reason       string
}

func (o *AdminOptions) bindFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.AuthorizedBy, "authorized-by", "", "identity of the operator (required)")
	cmd.Flags().StringVar(&o.Reason, "reason", "", "reason recorded in the ledger")
}

// NewExpandCommand creates the expand command.
func NewExpandCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AdminOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "expand <event> <tier> <spots>",
		Short: "Raise the actual limit of a tier",
		Long: `Add spots to the actual limit of one tier. The public limit is not
changed, so customers keep seeing the advertised availability while the
extra spots can still be allocated.

Exit codes:
  0 - Expanded
  1 - Missing --authorized-by
  2 - Command error (unknown event, invalid tier or spot count)

Example:
  invctl expand dallas vip 10 --authorized-by ops@example.com --reason "bigger room"`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			spots, err := countArg("spots", args[2])
			if err != nil {
				return err
			}
			return withSession(cmd, opts.RootOptions, "expand", func(ctx context.Context, s *session, out *OutputFormatter) error {
				req := admin.ExpandRequest{
					EventID:         config.NormalizeEventID(args[0]),
					Tier:            tierArg(args[1]),
					AdditionalSpots: spots,
					AuthorizedBy:    opts.AuthorizedBy,
					Reason:          opts.Reason,
				}
				res, err := s.admin().Expand(ctx, req)
				if err != nil {
					return err
				}
				return out.Result(res, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Expanded %s %s by %d: actual limit now %d (transaction %s)\n",
						req.EventID, req.Tier, spots, res.NewLimit, res.TransactionID)
					return err
				})
			})
		},
	}

	opts.bindFlags(cmd)
	return cmd
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AdminOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset <event>",
		Short: "Return an event to its catalog limits with nothing sold",
		Long: `Reset an event: sold counts go to zero and actual limits return to the
public limits. The ledger is kept; one reset entry per tier records the
previous state.

Example:
  invctl reset dallas --authorized-by ops@example.com --reason "test run"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts.RootOptions, "reset", func(ctx context.Context, s *session, out *OutputFormatter) error {
				req := admin.ResetRequest{
					EventID:      config.NormalizeEventID(args[0]),
					AuthorizedBy: opts.AuthorizedBy,
					Reason:       opts.Reason,
				}
				res, err := s.admin().Reset(ctx, req)
				if err != nil {
					return err
				}
				return out.Result(res, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Reset %s: actual limit ga=%d vip=%d\n",
						req.EventID, res.ActualLimit.GA, res.ActualLimit.VIP)
					return err
				})
			})
		},
	}

	opts.bindFlags(cmd)
	return cmd
}
