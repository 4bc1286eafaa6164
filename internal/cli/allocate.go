package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/checkout"
	"github.com/c50bossio/6fb-methodologies-sub002/internal/config"
	"github.com/c50bossio/6fb-methodologies-sub002/internal/inventory"
)

// AllocateOptions holds flags for decrement and confirm.
type AllocateOptions struct {
	*RootOptions
	PaymentIntentID string
	SessionID       string
	CustomerEmail   string
	Meta            map[string]string // extra key=value metadata (decrement only)
}

func (o *AllocateOptions) bindFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.PaymentIntentID, "payment-intent", "", "payment intent id to record")
	cmd.Flags().StringVar(&o.SessionID, "session", "", "checkout session id to record")
	cmd.Flags().StringVar(&o.CustomerEmail, "email", "", "customer email to record")
}

func (o *AllocateOptions) metadata() inventory.Metadata {
	md := inventory.Metadata{}
	for k, v := range o.Meta {
		md[k] = v
	}
	if o.PaymentIntentID != "" {
		md[inventory.MetaPaymentIntentID] = o.PaymentIntentID
	}
	if o.SessionID != "" {
		md[inventory.MetaSessionID] = o.SessionID
	}
	if o.CustomerEmail != "" {
		md[inventory.MetaCustomerEmail] = o.CustomerEmail
	}
	if len(md) == 0 {
		return nil
	}
	return md
}

// NewDecrementCommand creates the decrement command.
func NewDecrementCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AllocateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decrement <event> <tier> <quantity>",
		Short: "Allocate units against actual availability",
		Long: `Atomically allocate units of one tier.

The allocation succeeds only when the full quantity fits within the actual
limit; there are no partial allocations. Each success appends one
transaction to the ledger.

Exit codes:
  0 - Allocated
  1 - Insufficient inventory
  2 - Command error (unknown event, invalid tier or quantity)

Examples:
  invctl decrement dallas ga 2 --db inventory.db --payment-intent pi_123
  invctl decrement dallas vip 1 --meta source=box-office`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := countArg("quantity", args[2])
			if err != nil {
				return err
			}
			return withSession(cmd, opts.RootOptions, "decrement", func(ctx context.Context, s *session, out *OutputFormatter) error {
				eventID, tier := config.NormalizeEventID(args[0]), tierArg(args[1])
				res, err := s.inv.Decrement(ctx, eventID, tier, qty, opts.metadata())
				if err != nil {
					return err
				}
				return out.Result(res, func(w io.Writer) error {
					return writeAllocated(w, eventID, tier, qty, res)
				})
			})
		},
	}

	opts.bindFlags(cmd)
	cmd.Flags().StringToStringVar(&opts.Meta, "meta", nil, "extra metadata as key=value (repeatable)")
	return cmd
}

// NewConfirmCommand creates the confirm command.
func NewConfirmCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AllocateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "confirm <event> <tier> <quantity>",
		Short: "Allocate units for a payment that already succeeded",
		Long: `Allocate units for a completed payment.

A payment intent id or session id is required. If the units cannot be
allocated the payment has been taken for seats that do not exist: the
failure is logged at error level for manual follow-up and the command
exits with status 1.`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := countArg("quantity", args[2])
			if err != nil {
				return err
			}
			return withSession(cmd, opts.RootOptions, "confirm", func(ctx context.Context, s *session, out *OutputFormatter) error {
				p := checkout.Payment{
					EventID:         config.NormalizeEventID(args[0]),
					Tier:            tierArg(args[1]),
					Quantity:        qty,
					SessionID:       opts.SessionID,
					PaymentIntentID: opts.PaymentIntentID,
					CustomerEmail:   opts.CustomerEmail,
				}
				res, err := s.confirmer().Confirm(ctx, p)
				if err != nil {
					return err
				}
				return out.Result(res, func(w io.Writer) error {
					return writeAllocated(w, p.EventID, p.Tier, p.Quantity, res)
				})
			})
		},
	}

	opts.bindFlags(cmd)
	return cmd
}

func writeAllocated(w io.Writer, eventID string, tier inventory.Tier, qty int, res inventory.DecrementResult) error {
	_, err := fmt.Fprintf(w, "Allocated %d %s for %s (transaction %s, %d remaining)\n",
		qty, tier, eventID, res.TransactionID, res.Available)
	return err
}
