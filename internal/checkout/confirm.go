package checkout

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/inventory"
)

// ErrOversold marks a confirmation whose payment succeeded but whose
// allocation did not. The inventory error is wrapped alongside it.
var ErrOversold = errors.New("payment succeeded but inventory could not be allocated")

// Allocator is the write side of the inventory used by the Confirmer.
type Allocator interface {
	Decrement(ctx context.Context, eventID string, tier inventory.Tier, qty int, md inventory.Metadata) (inventory.DecrementResult, error)
}

// Payment is a payment the provider has already reported as successful.
type Payment struct {
	EventID         string
	Tier            inventory.Tier
	Quantity        int
	SessionID       string
	PaymentIntentID string
	CustomerEmail   string
}

func (p Payment) metadata() inventory.Metadata {
	md := inventory.Metadata{}
	if p.PaymentIntentID != "" {
		md[inventory.MetaPaymentIntentID] = p.PaymentIntentID
	}
	if p.SessionID != "" {
		md[inventory.MetaSessionID] = p.SessionID
	}
	if p.CustomerEmail != "" {
		md[inventory.MetaCustomerEmail] = p.CustomerEmail
	}
	return md
}

// Escalation describes a paid order that could not be fulfilled.
type Escalation struct {
	Payment   Payment
	Available int
	Cause     error
}

// Escalator handles paid-but-unallocated orders, typically by issuing a
// refund or paging an operator.
type Escalator interface {
	Escalate(ctx context.Context, e Escalation) error
}

// LogEscalator records escalations as error-level log entries.
type LogEscalator struct {
	Logger *slog.Logger
}

// Escalate implements Escalator.
func (l LogEscalator) Escalate(ctx context.Context, e Escalation) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.ErrorContext(ctx, "paid order could not be allocated",
		"event", e.Payment.EventID,
		"tier", e.Payment.Tier,
		"quantity", e.Payment.Quantity,
		"available", e.Available,
		"payment_intent_id", e.Payment.PaymentIntentID,
		"session_id", e.Payment.SessionID,
		"code", inventory.CodeOf(e.Cause),
		"error", e.Cause,
	)
	return nil
}

// Confirmer turns successful payments into allocations.
type Confirmer struct {
	inv       Allocator
	escalator Escalator
	logger    *slog.Logger
}

// ConfirmerOption configures a Confirmer.
type ConfirmerOption func(*Confirmer)

// WithEscalator replaces the default LogEscalator.
func WithEscalator(e Escalator) ConfirmerOption {
	return func(c *Confirmer) {
		if e != nil {
			c.escalator = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ConfirmerOption {
	return func(c *Confirmer) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewConfirmer creates a Confirmer over inv.
func NewConfirmer(inv Allocator, opts ...ConfirmerOption) *Confirmer {
	c := &Confirmer{inv: inv, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if c.escalator == nil {
		c.escalator = LogEscalator{Logger: c.logger}
	}
	return c
}

// Confirm allocates inventory for a payment that has already succeeded.
//
// The payment must carry a payment intent id or a session id so the ledger
// entry can be traced back to it. Any allocation failure is escalated and
// returned wrapped with ErrOversold; it is never dropped.
func (c *Confirmer) Confirm(ctx context.Context, p Payment) (inventory.DecrementResult, error) {
	p.PaymentIntentID = strings.TrimSpace(p.PaymentIntentID)
	p.SessionID = strings.TrimSpace(p.SessionID)
	if p.PaymentIntentID == "" && p.SessionID == "" {
		return inventory.DecrementResult{}, inventory.NewValidationError(p.EventID,
			"payment confirmation requires a payment intent id or session id")
	}

	res, err := c.inv.Decrement(ctx, p.EventID, p.Tier, p.Quantity, p.metadata())
	if err == nil {
		c.logger.InfoContext(ctx, "payment allocated",
			"event", p.EventID, "tier", p.Tier, "quantity", p.Quantity,
			"available_after", res.Available, "tx", res.TransactionID)
		return res, nil
	}

	esc := Escalation{Payment: p, Available: res.Available, Cause: err}
	if escErr := c.escalator.Escalate(ctx, esc); escErr != nil {
		c.logger.ErrorContext(ctx, "escalation failed",
			"event", p.EventID, "payment_intent_id", p.PaymentIntentID, "error", escErr)
		return res, errors.Join(ErrOversold, err, escErr)
	}
	return res, errors.Join(ErrOversold, err)
}
