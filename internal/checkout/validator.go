// Package checkout holds the two touch points a purchase flow has with the
// inventory: an advisory pre-check before payment starts and the
// confirmation step after the payment provider reports success.
//
// The Validator never locks and never reserves. Its answer can be stale by
// the time payment completes; only inventory.Store.Decrement decides.
package checkout

import (
	"context"
	"fmt"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/inventory"
)

// DefaultMaxSuggestions caps the alternatives offered on a failed check.
const DefaultMaxSuggestions = 3

// Reader is the read side of the inventory used by the Validator.
type Reader interface {
	EventIDs(ctx context.Context) ([]string, error)
	ActualAvailable(ctx context.Context, eventID string, tier inventory.Tier) (int, error)
}

// Suggestion is an alternative with enough stock at the time of the check.
type Suggestion struct {
	EventID   string         `json:"event_id"`
	Tier      inventory.Tier `json:"tier"`
	Available int            `json:"available"`
}

// Validation is the advisory answer for one checkout attempt.
type Validation struct {
	Valid       bool           `json:"valid"`
	EventID     string         `json:"event_id"`
	Tier        inventory.Tier `json:"tier"`
	Available   int            `json:"available"`
	Requested   int            `json:"requested"`
	Message     string         `json:"message,omitempty"`
	Suggestions []Suggestion   `json:"suggestions,omitempty"`
}

// Validator performs lock-free availability pre-checks.
type Validator struct {
	inv            Reader
	maxQuantity    int
	maxSuggestions int
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithMaxSuggestions sets how many alternatives to return. Zero disables
// suggestions.
func WithMaxSuggestions(n int) ValidatorOption {
	return func(v *Validator) {
		if n >= 0 {
			v.maxSuggestions = n
		}
	}
}

// WithMaxQuantity sets the largest quantity a single checkout may request.
// It should match the store's own limit.
func WithMaxQuantity(n int) ValidatorOption {
	return func(v *Validator) {
		if n > 0 {
			v.maxQuantity = n
		}
	}
}

// NewValidator creates a Validator over inv.
func NewValidator(inv Reader, opts ...ValidatorOption) *Validator {
	v := &Validator{
		inv:            inv,
		maxQuantity:    inventory.DefaultMaxQuantity,
		maxSuggestions: DefaultMaxSuggestions,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate reports whether qty units of tier look available right now.
//
// A shortfall is not an error: it comes back as Valid=false with the
// available figure and a user-facing message. Errors are reserved for
// unknown events, invalid tiers and backend failures.
func (v *Validator) Validate(ctx context.Context, eventID string, tier inventory.Tier, qty int) (Validation, error) {
	available, err := v.inv.ActualAvailable(ctx, eventID, tier)
	if err != nil {
		return Validation{}, err
	}

	res := Validation{
		Valid:     true,
		EventID:   eventID,
		Tier:      tier,
		Available: available,
		Requested: qty,
	}

	switch {
	case qty <= 0 || qty > v.maxQuantity:
		res.Valid = false
		res.Message = fmt.Sprintf("Quantity must be between 1 and %d", v.maxQuantity)
		return res, nil
	case qty <= available:
		return res, nil
	}

	res.Valid = false
	res.Message = availabilityMessage(available)

	res.Suggestions, err = v.suggest(ctx, eventID, tier, qty)
	if err != nil {
		return Validation{}, err
	}
	return res, nil
}

func availabilityMessage(available int) string {
	switch available {
	case 0:
		return "Sold out"
	case 1:
		return "Only 1 ticket available"
	default:
		return fmt.Sprintf("Only %d tickets available", available)
	}
}

// suggest looks for the other tier of the same event first, then the same
// tier at other events in id order.
func (v *Validator) suggest(ctx context.Context, eventID string, tier inventory.Tier, qty int) ([]Suggestion, error) {
	if v.maxSuggestions == 0 {
		return nil, nil
	}

	var out []Suggestion
	consider := func(id string, t inventory.Tier) error {
		n, err := v.inv.ActualAvailable(ctx, id, t)
		if err != nil {
			return err
		}
		if n >= qty {
			out = append(out, Suggestion{EventID: id, Tier: t, Available: n})
		}
		return nil
	}

	for _, t := range inventory.Tiers {
		if t == tier {
			continue
		}
		if err := consider(eventID, t); err != nil {
			return nil, err
		}
	}

	ids, err := v.inv.EventIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if len(out) >= v.maxSuggestions {
			break
		}
		if id == eventID {
			continue
		}
		if err := consider(id, tier); err != nil {
			return nil, err
		}
	}

	if len(out) > v.maxSuggestions {
		out = out[:v.maxSuggestions]
	}
	return out, nil
}
