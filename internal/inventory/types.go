package inventory

import (
	"fmt"
	"time"
)

// Tier is a category of unit within an event.
type Tier string

const (
	// TierGA is general admission.
	TierGA Tier = "ga"
	// TierVIP is the premium tier.
	TierVIP Tier = "vip"
)

// Tiers lists every tier in canonical order.
var Tiers = []Tier{TierGA, TierVIP}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierGA || t == TierVIP
}

// ParseTier converts a string to a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q: must be one of %v", s, Tiers)
	}
	return t, nil
}

// Counts holds one integer per tier.
type Counts struct {
	GA  int `json:"ga" yaml:"ga"`
	VIP int `json:"vip" yaml:"vip"`
}

// Get returns the count for tier t. Unknown tiers read as 0.
func (c Counts) Get(t Tier) int {
	switch t {
	case TierGA:
		return c.GA
	case TierVIP:
		return c.VIP
	}
	return 0
}

// With returns a copy of c with tier t set to n.
func (c Counts) With(t Tier, n int) Counts {
	switch t {
	case TierGA:
		c.GA = n
	case TierVIP:
		c.VIP = n
	}
	return c
}

// EventLimits is a catalog entry used to create an event's inventory.
type EventLimits struct {
	EventID string
	Name    string
	Public  Counts
}

// Counters is the persisted numeric state of one event.
//
// Version increases by one on every committed mutation and is used for
// optimistic compare-and-swap by backends.
type Counters struct {
	EventID string
	Name    string
	Public  Counts
	Actual  Counts
	Sold    Counts
	Version int64
}

// PublicAvailable returns max(0, public - sold) for tier t.
func (c Counters) PublicAvailable(t Tier) int {
	return max(0, c.Public.Get(t)-c.Sold.Get(t))
}

// ActualAvailable returns max(0, actual - sold) for tier t.
func (c Counters) ActualAvailable(t Tier) int {
	return max(0, c.Actual.Get(t)-c.Sold.Get(t))
}

// Operation identifies the kind of ledger entry.
type Operation string

const (
	OpDecrement Operation = "decrement"
	OpExpand    Operation = "expand"
	OpReset     Operation = "reset"
)

// Metadata carries correlation identifiers for a ledger entry.
type Metadata map[string]string

// Well known metadata keys.
const (
	MetaPaymentIntentID     = "payment_intent_id"
	MetaSessionID           = "session_id"
	MetaCustomerEmail       = "customer_email"
	MetaAuthorizedBy        = "authorized_by"
	MetaReason              = "reason"
	MetaPreviousActualLimit = "previous_actual_limit"
	MetaPreviousSold        = "previous_sold"
)

// Clone returns a copy of m. Nil stays nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Transaction is one append-only ledger entry. Never mutated after creation.
type Transaction struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	EventID   string    `json:"event_id"`
	Tier      Tier      `json:"tier"`
	Quantity  int       `json:"quantity"`
	Operation Operation `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  Metadata  `json:"metadata,omitempty"`
}

// Expansion records one admin-authorized increase of an actual limit.
type Expansion struct {
	Seq             int64     `json:"seq"`
	EventID         string    `json:"event_id"`
	Tier            Tier      `json:"tier"`
	AdditionalSpots int       `json:"additional_spots"`
	Reason          string    `json:"reason"`
	AuthorizedBy    string    `json:"authorized_by"`
	Timestamp       time.Time `json:"timestamp"`
}

// Snapshot is a point-in-time computed view of one event.
type Snapshot struct {
	EventID         string `json:"event_id"`
	Name            string `json:"name,omitempty"`
	PublicLimit     Counts `json:"public_limit"`
	ActualLimit     Counts `json:"actual_limit"`
	Sold            Counts `json:"sold"`
	PublicAvailable Counts `json:"public_available"`
	ActualAvailable Counts `json:"actual_available"`
	IsPublicSoldOut bool   `json:"is_public_sold_out"`
	IsActualSoldOut bool   `json:"is_actual_sold_out"`
}

// NewSnapshot derives the status view from counters.
func NewSnapshot(c Counters) Snapshot {
	s := Snapshot{
		EventID:         c.EventID,
		Name:            c.Name,
		PublicLimit:     c.Public,
		ActualLimit:     c.Actual,
		Sold:            c.Sold,
		IsPublicSoldOut: true,
		IsActualSoldOut: true,
	}
	for _, t := range Tiers {
		pub := c.PublicAvailable(t)
		act := c.ActualAvailable(t)
		s.PublicAvailable = s.PublicAvailable.With(t, pub)
		s.ActualAvailable = s.ActualAvailable.With(t, act)
		if pub != 0 {
			s.IsPublicSoldOut = false
		}
		if act != 0 {
			s.IsActualSoldOut = false
		}
	}
	return s
}

// DecrementResult is the outcome of Decrement.
//
// On success Available is the actual availability after the allocation.
// On an insufficient-inventory failure Available is the availability that
// was observed, which is unchanged.
type DecrementResult struct {
	Success       bool         `json:"success"`
	Available     int          `json:"available_after"`
	TransactionID string       `json:"transaction_id,omitempty"`
	Transaction   *Transaction `json:"-"`
}

// ExpandResult is the outcome of Expand.
type ExpandResult struct {
	Success       bool   `json:"success"`
	NewLimit      int    `json:"new_limit"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// ResetResult is the outcome of Reset.
type ResetResult struct {
	Success        bool     `json:"success"`
	ActualLimit    Counts   `json:"actual_limit"`
	Sold           Counts   `json:"sold"`
	TransactionIDs []string `json:"transaction_ids,omitempty"`
}
