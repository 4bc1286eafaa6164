package inventory

import (
	"context"
	"sort"
	"sync"
)

type memoryEvent struct {
	counters     Counters
	transactions []Transaction
	expansions   []Expansion
}

// MemoryBackend keeps all inventory state in process memory.
//
// Thread-safety: safe for concurrent use. Reads take a shared lock and return
// copies, so callers never observe a half-applied commit.
type MemoryBackend struct {
	mu      sync.RWMutex
	events  map[string]*memoryEvent
	lastSeq int64
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		events: make(map[string]*memoryEvent),
	}
}

// Ensure implements Backend.
func (b *MemoryBackend) Ensure(_ context.Context, events []EventLimits) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ev := range events {
		if _, ok := b.events[ev.EventID]; ok {
			continue
		}
		b.events[ev.EventID] = &memoryEvent{
			counters: Counters{
				EventID: ev.EventID,
				Name:    ev.Name,
				Public:  ev.Public,
				Actual:  ev.Public,
			},
		}
	}
	return nil
}

// EventIDs implements Backend.
func (b *MemoryBackend) EventIDs(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]string, 0, len(b.events))
	for id := range b.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Load implements Backend.
func (b *MemoryBackend) Load(_ context.Context, eventID string) (Counters, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ev, ok := b.events[eventID]
	if !ok {
		return Counters{}, ErrEventNotFound
	}
	return ev.counters, nil
}

// Commit implements Backend.
func (b *MemoryBackend) Commit(_ context.Context, c Commit) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ev, ok := b.events[c.EventID]
	if !ok {
		return 0, ErrEventNotFound
	}
	if ev.counters.Version != c.ExpectedVersion {
		return 0, ErrVersionConflict
	}

	next := c.Next
	next.EventID = ev.counters.EventID
	next.Name = ev.counters.Name
	next.Public = ev.counters.Public
	next.Version = c.ExpectedVersion + 1
	ev.counters = next

	first := b.lastSeq + 1
	for i, tx := range c.Transactions {
		tx.Seq = first + int64(i)
		tx.Metadata = tx.Metadata.Clone()
		ev.transactions = append(ev.transactions, tx)
	}
	if c.Expansion != nil {
		exp := *c.Expansion
		exp.Seq = first
		ev.expansions = append(ev.expansions, exp)
	}
	b.lastSeq += c.seqSpan()
	return first, nil
}

// Transactions implements Backend.
func (b *MemoryBackend) Transactions(_ context.Context, eventID string, limit int) ([]Transaction, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ev, ok := b.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}

	n := len(ev.transactions)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Transaction, 0, n)
	for i := len(ev.transactions) - 1; i >= 0 && len(out) < n; i-- {
		tx := ev.transactions[i]
		tx.Metadata = tx.Metadata.Clone()
		out = append(out, tx)
	}
	return out, nil
}

// Expansions implements Backend.
func (b *MemoryBackend) Expansions(_ context.Context, eventID string) ([]Expansion, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ev, ok := b.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}

	out := make([]Expansion, 0, len(ev.expansions))
	for i := len(ev.expansions) - 1; i >= 0; i-- {
		out = append(out, ev.expansions[i])
	}
	return out, nil
}

// LastSeq returns the highest ledger sequence number issued (0 if none).
func (b *MemoryBackend) LastSeq(_ context.Context) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastSeq, nil
}
