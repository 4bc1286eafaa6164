package harness

import (
	"context"
	"fmt"
	"sort"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/inventory"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Event    string // Event the assertion targets
	Field    string // Which part of the state failed
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s %s: expected %s, got %s", e.Event, e.Field, e.Expected, e.Actual)
}

// StateSource is the read side of the store used by assertions.
type StateSource interface {
	Status(ctx context.Context, eventID string) (*inventory.Snapshot, error)
	Transactions(ctx context.Context, eventID string, limit int) ([]inventory.Transaction, error)
	Expansions(ctx context.Context, eventID string) ([]inventory.Expansion, error)
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. escalations maps event id to the number of escalated payments.
func EvaluateAssertions(ctx context.Context, src StateSource, escalations map[string]int, assertions []Assertion) []string {
	var msgs []string
	for i, a := range assertions {
		for _, err := range evaluateAssertion(ctx, src, escalations, a) {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func evaluateAssertion(ctx context.Context, src StateSource, escalations map[string]int, a Assertion) []error {
	snap, err := src.Status(ctx, a.Event)
	if err != nil {
		return []error{err}
	}
	if snap == nil {
		return []error{&AssertionError{Event: a.Event, Field: "event", Expected: "known event", Actual: "not found"}}
	}

	var errs []error
	counts := []struct {
		field string
		want  map[string]int
		got   inventory.Counts
	}{
		{"public", a.Public, snap.PublicLimit},
		{"actual", a.Actual, snap.ActualLimit},
		{"sold", a.Sold, snap.Sold},
		{"public_available", a.PublicAvailable, snap.PublicAvailable},
		{"actual_available", a.ActualAvailable, snap.ActualAvailable},
	}
	for _, c := range counts {
		errs = append(errs, matchCounts(a.Event, c.field, c.want, c.got)...)
	}

	if a.PublicSoldOut != nil && *a.PublicSoldOut != snap.IsPublicSoldOut {
		errs = append(errs, mismatch(a.Event, "public_sold_out", *a.PublicSoldOut, snap.IsPublicSoldOut))
	}
	if a.ActualSoldOut != nil && *a.ActualSoldOut != snap.IsActualSoldOut {
		errs = append(errs, mismatch(a.Event, "actual_sold_out", *a.ActualSoldOut, snap.IsActualSoldOut))
	}

	if a.Transactions != nil {
		txs, err := src.Transactions(ctx, a.Event, 0)
		if err != nil {
			return append(errs, err)
		}
		if len(txs) != *a.Transactions {
			errs = append(errs, mismatch(a.Event, "transactions", *a.Transactions, len(txs)))
		}
	}
	if a.Expansions != nil {
		exps, err := src.Expansions(ctx, a.Event)
		if err != nil {
			return append(errs, err)
		}
		if len(exps) != *a.Expansions {
			errs = append(errs, mismatch(a.Event, "expansions", *a.Expansions, len(exps)))
		}
	}
	if a.Escalations != nil && escalations[a.Event] != *a.Escalations {
		errs = append(errs, mismatch(a.Event, "escalations", *a.Escalations, escalations[a.Event]))
	}
	return errs
}

// matchCounts compares the tiers named in want against got.
func matchCounts(event, field string, want map[string]int, got inventory.Counts) []error {
	tiers := make([]string, 0, len(want))
	for t := range want {
		tiers = append(tiers, t)
	}
	sort.Strings(tiers)

	var errs []error
	for _, t := range tiers {
		if g := got.Get(inventory.Tier(t)); g != want[t] {
			errs = append(errs, mismatch(event, field+"."+t, want[t], g))
		}
	}
	return errs
}

func mismatch(event, field string, want, got any) error {
	return &AssertionError{
		Event:    event,
		Field:    field,
		Expected: fmt.Sprint(want),
		Actual:   fmt.Sprint(got),
	}
}
