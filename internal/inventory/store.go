package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/lock"
)

// Defaults for Store options.
const (
	DefaultMaxQuantity    = 100
	DefaultMaxExpansion   = 1000
	DefaultCommitAttempts = 10
)

// Backoff between commit attempts after a version conflict. The wait doubles
// per attempt up to commitBackoffMax, with jitter so competing writers drift
// apart.
const (
	commitBackoffBase = time.Millisecond
	commitBackoffMax  = 50 * time.Millisecond
)

// Store is the inventory allocation service.
//
// Mutations (Decrement, Expand, Reset) are serialized per event id through a
// lock.Manager; within the lock they load counters, do pure arithmetic, and
// hand a single Commit to the backend. Reads bypass the lock.
//
// Construct one Store at the composition root and share it; tests build
// fresh instances over fresh backends.
type Store struct {
	backend Backend
	locks   *lock.Manager
	clock   Clock
	ids     IDGenerator
	logger  *slog.Logger

	maxQuantity    int
	maxExpansion   int
	commitAttempts int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock sets the wall clock used for ledger timestamps.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithIDGenerator sets the transaction id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// WithMaxQuantity caps the quantity accepted by a single Decrement.
func WithMaxQuantity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxQuantity = n
		}
	}
}

// WithMaxExpansion caps the spots accepted by a single Expand.
func WithMaxExpansion(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxExpansion = n
		}
	}
}

// WithCommitAttempts sets how many load/compute/commit cycles a mutation may
// run when the backend reports a version conflict.
//
// Conflicts only come from another writer on a shared backend, such as a
// second process on the same SQLite file. When attempts run out the
// mutation fails as INTERNAL even though inventory may remain, so raise
// this for deployments with many processes selling the same event.
func WithCommitAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.commitAttempts = n
		}
	}
}

// New creates a Store over backend and makes sure every event in events
// exists. Events already present in the backend keep their persisted state.
func New(ctx context.Context, backend Backend, events []EventLimits, opts ...Option) (*Store, error) {
	s := &Store{
		backend:        backend,
		locks:          lock.NewManager(),
		clock:          SystemClock(),
		ids:            UUIDv7Generator{},
		logger:         slog.Default(),
		maxQuantity:    DefaultMaxQuantity,
		maxExpansion:   DefaultMaxExpansion,
		commitAttempts: DefaultCommitAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}

	seen := make(map[string]bool, len(events))
	for _, ev := range events {
		if ev.EventID == "" {
			return nil, fmt.Errorf("new store: event id is required")
		}
		if seen[ev.EventID] {
			return nil, fmt.Errorf("new store: duplicate event %q", ev.EventID)
		}
		seen[ev.EventID] = true
		for _, t := range Tiers {
			if ev.Public.Get(t) < 0 {
				return nil, fmt.Errorf("new store: event %q: negative %s limit", ev.EventID, t)
			}
		}
	}

	if err := backend.Ensure(ctx, events); err != nil {
		return nil, fmt.Errorf("new store: ensure events: %w", err)
	}

	return s, nil
}

// EventIDs lists all known events sorted by id.
func (s *Store) EventIDs(ctx context.Context) ([]string, error) {
	ids, err := s.backend.EventIDs(ctx)
	if err != nil {
		return nil, s.internal(ctx, "", "list events", err)
	}
	return ids, nil
}

// PublicAvailable returns max(0, publicLimit - sold) for the tier.
// Lock-free; the value may already be stale when returned.
func (s *Store) PublicAvailable(ctx context.Context, eventID string, tier Tier) (int, error) {
	c, err := s.read(ctx, eventID, tier)
	if err != nil {
		return 0, err
	}
	return c.PublicAvailable(tier), nil
}

// ActualAvailable returns max(0, actualLimit - sold) for the tier.
// Lock-free; the value may already be stale when returned.
func (s *Store) ActualAvailable(ctx context.Context, eventID string, tier Tier) (int, error) {
	c, err := s.read(ctx, eventID, tier)
	if err != nil {
		return 0, err
	}
	return c.ActualAvailable(tier), nil
}

// Status returns a computed snapshot, or nil for an unknown event.
//
// The snapshot comes from one backend read, so its fields agree with each
// other, but it is not taken under the event lock and may lag an in-flight
// mutation. Never use it in place of Decrement's check.
func (s *Store) Status(ctx context.Context, eventID string) (*Snapshot, error) {
	c, err := s.backend.Load(ctx, eventID)
	if errors.Is(err, ErrEventNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.internal(ctx, eventID, "status", err)
	}
	snap := NewSnapshot(c)
	return &snap, nil
}

// Transactions returns up to limit ledger entries, most recent first.
// limit <= 0 returns the whole ledger.
func (s *Store) Transactions(ctx context.Context, eventID string, limit int) ([]Transaction, error) {
	txs, err := s.backend.Transactions(ctx, eventID, limit)
	if errors.Is(err, ErrEventNotFound) {
		return nil, NewUnknownEventError(eventID)
	}
	if err != nil {
		return nil, s.internal(ctx, eventID, "list transactions", err)
	}
	return txs, nil
}

// Expansions returns every expansion record, most recent first.
func (s *Store) Expansions(ctx context.Context, eventID string) ([]Expansion, error) {
	exps, err := s.backend.Expansions(ctx, eventID)
	if errors.Is(err, ErrEventNotFound) {
		return nil, NewUnknownEventError(eventID)
	}
	if err != nil {
		return nil, s.internal(ctx, eventID, "list expansions", err)
	}
	return exps, nil
}

// Decrement allocates qty units of tier against the actual limit.
//
// This is the only authority for allocation: it checks and updates sold
// under the event lock, so concurrent calls can never push sold past the
// actual limit. On an insufficient-inventory failure the result carries the
// observed availability and state is unchanged.
func (s *Store) Decrement(ctx context.Context, eventID string, tier Tier, qty int, md Metadata) (DecrementResult, error) {
	if err := s.checkTarget(eventID, tier); err != nil {
		return DecrementResult{}, err
	}

	var available int
	committed, err := s.mutate(ctx, eventID, OpDecrement, func(c Counters) (Commit, error) {
		available = c.Actual.Get(tier) - c.Sold.Get(tier)

		if qty <= 0 || qty > s.maxQuantity {
			e := NewValidationError(eventID, "quantity must be between 1 and %d (Available: %d, Requested: %d)", s.maxQuantity, available, qty)
			e.Tier, e.Available, e.Requested = tier, available, qty
			return Commit{}, e
		}
		if qty > available {
			return Commit{}, NewInsufficientError(eventID, tier, available, qty)
		}

		next := c
		next.Sold = c.Sold.With(tier, c.Sold.Get(tier)+qty)
		available = next.Actual.Get(tier) - next.Sold.Get(tier)

		tx := s.newTransaction(eventID, tier, qty, OpDecrement, md.Clone())
		return Commit{Next: next, Transactions: []Transaction{tx}}, nil
	})
	if err != nil {
		if IsInsufficient(err) {
			s.logger.WarnContext(ctx, "decrement rejected",
				"event", eventID, "tier", tier, "requested", qty, "available", available)
		}
		return DecrementResult{Available: max(0, available)}, err
	}
	tx := committed.Transactions[0]

	s.logger.DebugContext(ctx, "inventory decremented",
		"event", eventID, "tier", tier, "quantity", qty, "available_after", available, "tx", tx.ID)

	return DecrementResult{
		Success:       true,
		Available:     available,
		TransactionID: tx.ID,
		Transaction:   &tx,
	}, nil
}

// Expand raises the actual limit of tier by spots. The public limit is
// never touched. Records both an Expansion and a Transaction.
func (s *Store) Expand(ctx context.Context, eventID string, tier Tier, spots int, authorizedBy, reason string) (ExpandResult, error) {
	if err := s.checkTarget(eventID, tier); err != nil {
		return ExpandResult{}, err
	}
	authorizedBy = strings.TrimSpace(authorizedBy)
	if authorizedBy == "" {
		return ExpandResult{}, NewAuthorizationError(eventID, "expand")
	}
	if spots <= 0 || spots > s.maxExpansion {
		e := NewValidationError(eventID, "additional spots must be between 1 and %d, got %d", s.maxExpansion, spots)
		e.Tier, e.Requested = tier, spots
		return ExpandResult{}, e
	}

	var (
		newLimit int
		tx       Transaction
	)
	_, err := s.mutate(ctx, eventID, OpExpand, func(c Counters) (Commit, error) {
		next := c
		newLimit = c.Actual.Get(tier) + spots
		next.Actual = c.Actual.With(tier, newLimit)

		tx = s.newTransaction(eventID, tier, spots, OpExpand, Metadata{
			MetaAuthorizedBy: authorizedBy,
			MetaReason:       reason,
		})
		exp := &Expansion{
			EventID:         eventID,
			Tier:            tier,
			AdditionalSpots: spots,
			Reason:          reason,
			AuthorizedBy:    authorizedBy,
			Timestamp:       tx.Timestamp,
		}
		return Commit{Next: next, Transactions: []Transaction{tx}, Expansion: exp}, nil
	})
	if err != nil {
		return ExpandResult{}, err
	}

	s.logger.InfoContext(ctx, "inventory expanded",
		"event", eventID, "tier", tier, "spots", spots, "new_limit", newLimit,
		"authorized_by", authorizedBy, "reason", reason)

	return ExpandResult{Success: true, NewLimit: newLimit, TransactionID: tx.ID}, nil
}

// Reset returns both tiers to actual = public and sold = 0.
//
// Ledgers are kept. One reset transaction is appended per tier, in tier
// order, with Quantity set to the units released from that tier.
func (s *Store) Reset(ctx context.Context, eventID, authorizedBy, reason string) (ResetResult, error) {
	if eventID == "" {
		return ResetResult{}, NewValidationError(eventID, "event id is required")
	}
	authorizedBy = strings.TrimSpace(authorizedBy)
	if authorizedBy == "" {
		return ResetResult{}, NewAuthorizationError(eventID, "reset")
	}

	var result ResetResult
	_, err := s.mutate(ctx, eventID, OpReset, func(c Counters) (Commit, error) {
		next := c
		next.Actual = c.Public
		next.Sold = Counts{}

		txs := make([]Transaction, 0, len(Tiers))
		ids := make([]string, 0, len(Tiers))
		for _, t := range Tiers {
			tx := s.newTransaction(eventID, t, c.Sold.Get(t), OpReset, Metadata{
				MetaAuthorizedBy:        authorizedBy,
				MetaReason:              reason,
				MetaPreviousActualLimit: fmt.Sprintf("%d", c.Actual.Get(t)),
				MetaPreviousSold:        fmt.Sprintf("%d", c.Sold.Get(t)),
			})
			txs = append(txs, tx)
			ids = append(ids, tx.ID)
		}

		result = ResetResult{
			Success:        true,
			ActualLimit:    next.Actual,
			Sold:           next.Sold,
			TransactionIDs: ids,
		}
		return Commit{Next: next, Transactions: txs}, nil
	})
	if err != nil {
		return ResetResult{}, err
	}

	s.logger.InfoContext(ctx, "inventory reset",
		"event", eventID, "authorized_by", authorizedBy, "reason", reason)

	return result, nil
}

// mutate runs compute under the event lock and commits its result.
//
// compute must be pure: it sees freshly loaded counters and returns either a
// Commit or a business *Error. A version conflict from the backend reruns
// the whole cycle up to commitAttempts times, with backoff in between.
// The returned Commit carries the sequence numbers the backend assigned.
func (s *Store) mutate(ctx context.Context, eventID string, op Operation, compute func(Counters) (Commit, error)) (Commit, error) {
	return lock.Do(s.locks, eventID, func() (Commit, error) {
		backoff := commitBackoffBase
		for attempt := 1; ; attempt++ {
			cur, err := s.backend.Load(ctx, eventID)
			if errors.Is(err, ErrEventNotFound) {
				return Commit{}, NewUnknownEventError(eventID)
			}
			if err != nil {
				return Commit{}, s.internal(ctx, eventID, string(op)+": load", err)
			}

			c, err := compute(cur)
			if err != nil {
				return Commit{}, err
			}
			c.EventID = eventID
			c.ExpectedVersion = cur.Version

			first, err := s.backend.Commit(ctx, c)
			if err == nil {
				c.Sequence(first)
				return c, nil
			}
			if errors.Is(err, ErrVersionConflict) && attempt < s.commitAttempts {
				wait := backoff/2 + rand.N(backoff/2+1)
				s.logger.DebugContext(ctx, "commit conflict, retrying",
					"event", eventID, "op", op, "attempt", attempt, "backoff", wait)
				select {
				case <-ctx.Done():
					return Commit{}, s.internal(ctx, eventID, string(op)+": commit", ctx.Err())
				case <-time.After(wait):
				}
				backoff = min(backoff*2, commitBackoffMax)
				continue
			}
			return Commit{}, s.internal(ctx, eventID, string(op)+": commit", err)
		}
	})
}

// read loads counters for a lock-free availability query.
func (s *Store) read(ctx context.Context, eventID string, tier Tier) (Counters, error) {
	if err := s.checkTarget(eventID, tier); err != nil {
		return Counters{}, err
	}
	c, err := s.backend.Load(ctx, eventID)
	if errors.Is(err, ErrEventNotFound) {
		return Counters{}, NewUnknownEventError(eventID)
	}
	if err != nil {
		return Counters{}, s.internal(ctx, eventID, "read", err)
	}
	return c, nil
}

func (s *Store) checkTarget(eventID string, tier Tier) error {
	if eventID == "" {
		return NewValidationError(eventID, "event id is required")
	}
	if !tier.Valid() {
		e := NewValidationError(eventID, "invalid tier %q: must be one of %v", tier, Tiers)
		e.Tier = tier
		return e
	}
	return nil
}

func (s *Store) newTransaction(eventID string, tier Tier, qty int, op Operation, md Metadata) Transaction {
	return Transaction{
		ID:        s.ids.Generate(),
		EventID:   eventID,
		Tier:      tier,
		Quantity:  qty,
		Operation: op,
		Timestamp: s.clock.Now(),
		Metadata:  md,
	}
}

// internal logs the real cause and returns a generic failure.
func (s *Store) internal(ctx context.Context, eventID, what string, cause error) *Error {
	s.logger.ErrorContext(ctx, "inventory backend failure",
		"event", eventID, "op", what, "error", cause)
	return newInternalError(eventID, cause)
}
