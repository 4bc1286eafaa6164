// Package admin exposes the operator actions on inventory: raising true
// capacity and resetting an event, plus a combined history view.
//
// Authentication happens upstream. This package only insists that every
// action carries a non-empty identity, which it normalizes before it reaches
// the ledger so the same operator is always recorded the same way.
package admin

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/inventory"
)

// Inventory is the subset of inventory.Store used by Service.
type Inventory interface {
	Expand(ctx context.Context, eventID string, tier inventory.Tier, spots int, authorizedBy, reason string) (inventory.ExpandResult, error)
	Reset(ctx context.Context, eventID, authorizedBy, reason string) (inventory.ResetResult, error)
	Status(ctx context.Context, eventID string) (*inventory.Snapshot, error)
	Transactions(ctx context.Context, eventID string, limit int) ([]inventory.Transaction, error)
	Expansions(ctx context.Context, eventID string) ([]inventory.Expansion, error)
}

// Service runs authorized inventory adjustments and audit queries.
//
// Every change requires a non-empty authorizedBy, which the inventory
// records in the ledger alongside the reason.
type Service struct {
	inv    Inventory
	logger *slog.Logger
}

// NewService creates a Service over inv. A nil logger uses slog.Default.
func NewService(inv Inventory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{inv: inv, logger: logger}
}

// ExpandRequest asks for AdditionalSpots more units in one tier.
type ExpandRequest struct {
	EventID         string
	Tier            inventory.Tier
	AdditionalSpots int
	AuthorizedBy    string
	Reason          string
}

// ResetRequest asks to return an event to its catalog limits.
type ResetRequest struct {
	EventID      string
	AuthorizedBy string
	Reason       string
}

// History is the audit view of one event.
type History struct {
	Snapshot     inventory.Snapshot      `json:"snapshot"`
	Transactions []inventory.Transaction `json:"transactions"`
	Expansions   []inventory.Expansion   `json:"expansions"`
}

// NormalizeIdentity trims surrounding space and converts to Unicode NFC.
func NormalizeIdentity(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Expand raises the actual limit of one tier. The public limit is unchanged.
func (s *Service) Expand(ctx context.Context, in ExpandRequest) (inventory.ExpandResult, error) {
	who := NormalizeIdentity(in.AuthorizedBy)
	if who == "" {
		return inventory.ExpandResult{}, inventory.NewAuthorizationError(in.EventID, "expand")
	}
	reason := strings.TrimSpace(in.Reason)

	res, err := s.inv.Expand(ctx, in.EventID, in.Tier, in.AdditionalSpots, who, reason)
	if err != nil {
		s.logger.WarnContext(ctx, "admin expand rejected",
			"event", in.EventID, "tier", in.Tier, "spots", in.AdditionalSpots,
			"authorized_by", who, "code", inventory.CodeOf(err))
		return res, err
	}

	s.logger.InfoContext(ctx, "admin expand",
		"event", in.EventID, "tier", in.Tier, "spots", in.AdditionalSpots,
		"new_limit", res.NewLimit, "authorized_by", who, "reason", reason)
	return res, nil
}

// Reset returns an event to its initial counts. History is kept.
func (s *Service) Reset(ctx context.Context, in ResetRequest) (inventory.ResetResult, error) {
	who := NormalizeIdentity(in.AuthorizedBy)
	if who == "" {
		return inventory.ResetResult{}, inventory.NewAuthorizationError(in.EventID, "reset")
	}
	reason := strings.TrimSpace(in.Reason)

	res, err := s.inv.Reset(ctx, in.EventID, who, reason)
	if err != nil {
		s.logger.WarnContext(ctx, "admin reset rejected",
			"event", in.EventID, "authorized_by", who, "code", inventory.CodeOf(err))
		return res, err
	}

	s.logger.InfoContext(ctx, "admin reset",
		"event", in.EventID, "authorized_by", who, "reason", reason)
	return res, nil
}

// History returns the current snapshot with up to limit transactions and
// every expansion, most recent first. limit <= 0 returns all transactions.
func (s *Service) History(ctx context.Context, eventID string, limit int) (History, error) {
	snap, err := s.inv.Status(ctx, eventID)
	if err != nil {
		return History{}, err
	}
	if snap == nil {
		return History{}, inventory.NewUnknownEventError(eventID)
	}

	txs, err := s.inv.Transactions(ctx, eventID, limit)
	if err != nil {
		return History{}, err
	}
	exps, err := s.inv.Expansions(ctx, eventID)
	if err != nil {
		return History{}, err
	}

	return History{Snapshot: *snap, Transactions: txs, Expansions: exps}, nil
}
