package inventory

import "context"

// Commit is one atomic state change produced by a mutating operation.
//
// Backends must apply Next and append every ledger record in a single
// atomic step, and only if the stored version still equals ExpectedVersion.
// On success the stored version becomes ExpectedVersion+1.
//
// The Seq fields of the ledger records are ignored on input. The backend
// numbers the records inside the same atomic step, above every seq it
// already holds, so writers sharing a backend never reuse a number.
type Commit struct {
	EventID         string
	ExpectedVersion int64
	Next            Counters
	Transactions    []Transaction
	Expansion       *Expansion
}

// Sequence numbers the ledger records of c consecutively from first, in
// order. The expansion shares the number of the first transaction.
func (c *Commit) Sequence(first int64) {
	for i := range c.Transactions {
		c.Transactions[i].Seq = first + int64(i)
	}
	if c.Expansion != nil {
		c.Expansion.Seq = first
	}
}

// seqSpan is how many sequence numbers c consumes.
func (c *Commit) seqSpan() int64 {
	if n := len(c.Transactions); n > 0 {
		return int64(n)
	}
	if c.Expansion != nil {
		return 1
	}
	return 0
}

// Backend is the pluggable storage beneath Store.
//
// Store serializes mutations per event in-process; the version check in
// Commit is what keeps a shared transactional backend correct if another
// writer touches the same row. Implementations must be safe for concurrent
// use.
type Backend interface {
	// Ensure creates inventories for events that do not exist yet
	// (actual = public, sold = 0, empty ledgers). Existing events are kept.
	Ensure(ctx context.Context, events []EventLimits) error

	// EventIDs lists known events sorted by id.
	EventIDs(ctx context.Context) ([]string, error)

	// Load returns the current counters or ErrEventNotFound.
	Load(ctx context.Context, eventID string) (Counters, error)

	// Commit applies c or returns ErrVersionConflict. It returns the seq
	// given to the first ledger record; see Commit.Sequence.
	Commit(ctx context.Context, c Commit) (int64, error)

	// Transactions returns up to limit ledger entries, most recent first.
	// limit <= 0 returns all entries.
	Transactions(ctx context.Context, eventID string, limit int) ([]Transaction, error)

	// Expansions returns all expansion records, most recent first.
	Expansions(ctx context.Context, eventID string) ([]Expansion, error)
}
