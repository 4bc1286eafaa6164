// Package report builds read-only status views of the inventory for
// operators and monitoring.
//
// Snapshots are computed from one backend read per event and are never
// taken under the event lock. A view of several events is therefore not a
// single point in time.
package report

import (
	"context"
	"sort"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/inventory"
)

// Source is the read side of the inventory used by Reporter.
type Source interface {
	EventIDs(ctx context.Context) ([]string, error)
	Status(ctx context.Context, eventID string) (*inventory.Snapshot, error)
}

// Totals sums counters across events.
type Totals struct {
	PublicLimit     inventory.Counts `json:"public_limit"`
	ActualLimit     inventory.Counts `json:"actual_limit"`
	Sold            inventory.Counts `json:"sold"`
	PublicAvailable inventory.Counts `json:"public_available"`
	ActualAvailable inventory.Counts `json:"actual_available"`
}

func (t *Totals) add(s inventory.Snapshot) {
	for _, tier := range inventory.Tiers {
		t.PublicLimit = t.PublicLimit.With(tier, t.PublicLimit.Get(tier)+s.PublicLimit.Get(tier))
		t.ActualLimit = t.ActualLimit.With(tier, t.ActualLimit.Get(tier)+s.ActualLimit.Get(tier))
		t.Sold = t.Sold.With(tier, t.Sold.Get(tier)+s.Sold.Get(tier))
		t.PublicAvailable = t.PublicAvailable.With(tier, t.PublicAvailable.Get(tier)+s.PublicAvailable.Get(tier))
		t.ActualAvailable = t.ActualAvailable.With(tier, t.ActualAvailable.Get(tier)+s.ActualAvailable.Get(tier))
	}
}

// Overview is the status of every event.
type Overview struct {
	Events        []inventory.Snapshot `json:"events"`
	Totals        Totals               `json:"totals"`
	SoldOut       int                  `json:"sold_out"`
	PublicSoldOut int                  `json:"public_sold_out"`
}

// Reporter produces status views.
type Reporter struct {
	src Source
}

// New creates a Reporter over src.
func New(src Source) *Reporter {
	return &Reporter{src: src}
}

// Event returns the snapshot for one event.
// An unknown event is a validation error.
func (r *Reporter) Event(ctx context.Context, eventID string) (*inventory.Snapshot, error) {
	snap, err := r.src.Status(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, inventory.NewUnknownEventError(eventID)
	}
	return snap, nil
}

// Overview returns snapshots of all events sorted by id, with totals.
func (r *Reporter) Overview(ctx context.Context) (Overview, error) {
	ids, err := r.src.EventIDs(ctx)
	if err != nil {
		return Overview{}, err
	}
	sort.Strings(ids)

	o := Overview{Events: make([]inventory.Snapshot, 0, len(ids))}
	for _, id := range ids {
		snap, err := r.src.Status(ctx, id)
		if err != nil {
			return Overview{}, err
		}
		if snap == nil {
			// Listed but gone; nothing deletes events, so skip rather than fail.
			continue
		}
		o.Events = append(o.Events, *snap)
		o.Totals.add(*snap)
		if snap.IsActualSoldOut {
			o.SoldOut++
		}
		if snap.IsPublicSoldOut {
			o.PublicSoldOut++
		}
	}
	return o, nil
}

// EventSummary is one row of the event listing.
type EventSummary struct {
	ID     string           `json:"id"`
	Name   string           `json:"name,omitempty"`
	Public inventory.Counts `json:"public_limit"`
	Actual inventory.Counts `json:"actual_limit"`
}

// Events lists every event sorted by id.
func (r *Reporter) Events(ctx context.Context) ([]EventSummary, error) {
	o, err := r.Overview(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]EventSummary, 0, len(o.Events))
	for _, s := range o.Events {
		out = append(out, EventSummary{
			ID:     s.EventID,
			Name:   s.Name,
			Public: s.PublicLimit,
			Actual: s.ActualLimit,
		})
	}
	return out, nil
}
