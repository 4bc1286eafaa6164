package inventory

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/testutil"
)

var testEvents = []EventLimits{
	{EventID: "dallas", Name: "Dallas Workshop", Public: Counts{GA: 35, VIP: 15}},
	{EventID: "atlanta", Name: "Atlanta Workshop", Public: Counts{GA: 40, VIP: 20}},
}

// newTestStore creates a fresh store over a fresh memory backend.
func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	base := []Option{
		WithClock(testutil.NewDeterministicClock()),
		WithIDGenerator(testutil.NewSequenceIDs("tx")),
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	}
	s, err := New(context.Background(), NewMemoryBackend(), testEvents, append(base, opts...)...)
	require.NoError(t, err)
	return s
}

func TestNew_InitialState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap, err := s.Status(ctx, "dallas")
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.Equal(t, Counts{GA: 35, VIP: 15}, snap.PublicLimit)
	assert.Equal(t, Counts{GA: 35, VIP: 15}, snap.ActualLimit)
	assert.Equal(t, Counts{}, snap.Sold)
	assert.False(t, snap.IsPublicSoldOut)
	assert.False(t, snap.IsActualSoldOut)

	txs, err := s.Transactions(ctx, "dallas", 0)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestNew_RejectsBadCatalog(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		events []EventLimits
	}{
		{"empty id", []EventLimits{{EventID: ""}}},
		{"duplicate", []EventLimits{{EventID: "a"}, {EventID: "a"}}},
		{"negative", []EventLimits{{EventID: "a", Public: Counts{GA: -1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(ctx, NewMemoryBackend(), tt.events)
			assert.Error(t, err)
		})
	}
}

func TestNew_KeepsExistingState(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()

	s1, err := New(ctx, backend, testEvents)
	require.NoError(t, err)
	_, err = s1.Decrement(ctx, "dallas", TierGA, 5, nil)
	require.NoError(t, err)

	// Re-initializing over the same backend must not reset counters, and the
	// ledger sequence must continue where it left off.
	s2, err := New(ctx, backend, testEvents)
	require.NoError(t, err)

	avail, err := s2.ActualAvailable(ctx, "dallas", TierGA)
	require.NoError(t, err)
	assert.Equal(t, 30, avail)

	res, err := s2.Decrement(ctx, "dallas", TierGA, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Transaction.Seq)
}

func TestDecrement_Basic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.Decrement(ctx, "dallas", TierGA, 3, Metadata{MetaSessionID: "cs_123"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 32, res.Available)
	assert.Equal(t, "tx-1", res.TransactionID)

	txs, err := s.Transactions(ctx, "dallas", 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, OpDecrement, txs[0].Operation)
	assert.Equal(t, TierGA, txs[0].Tier)
	assert.Equal(t, 3, txs[0].Quantity)
	assert.Equal(t, "cs_123", txs[0].Metadata[MetaSessionID])
	assert.Equal(t, testutil.Epoch, txs[0].Timestamp)
}

func TestDecrement_OversellRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Decrement(ctx, "dallas", TierGA, 3, nil)
	require.NoError(t, err)

	res, err := s.Decrement(ctx, "dallas", TierGA, 40, nil)
	require.Error(t, err)
	assert.True(t, IsInsufficient(err))
	assert.False(t, res.Success)
	assert.Equal(t, 32, res.Available)
	assert.Contains(t, err.Error(), "Available: 32")
	assert.Contains(t, err.Error(), "Requested: 40")

	var ie *Error
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 32, ie.Available)
	assert.Equal(t, 40, ie.Requested)

	snap, err := s.Status(ctx, "dallas")
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Sold.GA, "failed decrement must not change state")

	txs, err := s.Transactions(ctx, "dallas", 0)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestDecrement_ValidationErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		eventID string
		tier    Tier
		qty     int
	}{
		{"unknown event", "nowhere", TierGA, 1},
		{"empty event", "", TierGA, 1},
		{"invalid tier", "dallas", Tier("balcony"), 1},
		{"zero quantity", "dallas", TierGA, 0},
		{"negative quantity", "dallas", TierGA, -2},
		{"absurd quantity", "dallas", TierGA, DefaultMaxQuantity + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Decrement(ctx, tt.eventID, tt.tier, tt.qty, nil)
			require.Error(t, err)
			assert.True(t, IsValidation(err), "got %v", err)
			assert.False(t, res.Success)
		})
	}

	snap, err := s.Status(ctx, "dallas")
	require.NoError(t, err)
	assert.Equal(t, Counts{}, snap.Sold)
}

func TestDecrement_ExactlyToZero(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.Decrement(ctx, "dallas", TierVIP, 15, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Available)

	snap, err := s.Status(ctx, "dallas")
	require.NoError(t, err)
	assert.Equal(t, 0, snap.ActualAvailable.VIP)
	assert.False(t, snap.IsActualSoldOut, "ga still has stock")

	_, err = s.Decrement(ctx, "dallas", TierGA, 35, nil)
	require.NoError(t, err)

	snap, err = s.Status(ctx, "dallas")
	require.NoError(t, err)
	assert.True(t, snap.IsActualSoldOut)
	assert.True(t, snap.IsPublicSoldOut)
}

func TestDecrement_ConcurrentNeverOversells(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const attempts = 50
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  int
		zeroSeen  int
	)

	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			res, err := s.Decrement(ctx, "dallas", TierGA, 1, nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if IsInsufficient(err) {
					failures++
				}
				return
			}
			successes++
			if res.Available == 0 {
				zeroSeen++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 35, successes)
	assert.Equal(t, 15, failures)
	assert.Equal(t, 1, zeroSeen, "exactly one success should leave zero available")

	snap, err := s.Status(ctx, "dallas")
	require.NoError(t, err)
	assert.Equal(t, 35, snap.Sold.GA)
	assert.LessOrEqual(t, snap.Sold.GA, snap.ActualLimit.GA)

	txs, err := s.Transactions(ctx, "dallas", 0)
	require.NoError(t, err)
	assert.Len(t, txs, 35)
}

func TestDecrement_ConcurrentAcrossEventsAndTiers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, ev := range []string{"dallas", "atlanta"} {
		for _, tier := range Tiers {
			for i := 0; i < 60; i++ {
				wg.Add(1)
				go func(ev string, tier Tier) {
					defer wg.Done()
					_, _ = s.Decrement(ctx, ev, tier, 1, nil)
				}(ev, tier)
			}
		}
	}
	wg.Wait()

	for _, ev := range testEvents {
		snap, err := s.Status(ctx, ev.EventID)
		require.NoError(t, err)
		assert.Equal(t, snap.ActualLimit, snap.Sold, "event %s should be exactly sold out", ev.EventID)
		assert.Equal(t, ev.Public, snap.PublicLimit)
	}
}

func TestExpand_IndependentOfPublicLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.Expand(ctx, "dallas", TierVIP, 10, "admin1", "demand")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 25, res.NewLimit)

	pub, err := s.PublicAvailable(ctx, "dallas", TierVIP)
	require.NoError(t, err)
	assert.Equal(t, 15, pub)

	act, err := s.ActualAvailable(ctx, "dallas", TierVIP)
	require.NoError(t, err)
	assert.Equal(t, 25, act)

	exps, err := s.Expansions(ctx, "dallas")
	require.NoError(t, err)
	require.Len(t, exps, 1)
	assert.Equal(t, 10, exps[0].AdditionalSpots)
	assert.Equal(t, "admin1", exps[0].AuthorizedBy)
	assert.Equal(t, "demand", exps[0].Reason)

	txs, err := s.Transactions(ctx, "dallas", 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, OpExpand, txs[0].Operation)
	assert.Equal(t, 10, txs[0].Quantity)
	assert.Equal(t, "admin1", txs[0].Metadata[MetaAuthorizedBy])
	assert.Equal(t, exps[0].Seq, txs[0].Seq)
}

func TestExpand_AllowsSalesBeyondPublicLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Decrement(ctx, "dallas", TierVIP, 15, nil)
	require.NoError(t, err)

	_, err = s.Expand(ctx, "dallas", TierVIP, 5, "admin1", "waitlist")
	require.NoError(t, err)

	res, err := s.Decrement(ctx, "dallas", TierVIP, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Available)

	pub, err := s.PublicAvailable(ctx, "dallas", TierVIP)
	require.NoError(t, err)
	assert.Equal(t, 0, pub, "public availability clamps at zero")

	snap, err := s.Status(ctx, "dallas")
	require.NoError(t, err)
	assert.Equal(t, 20, snap.Sold.VIP)
	assert.Equal(t, 15, snap.PublicLimit.VIP)
}

func TestExpand_Errors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Expand(ctx, "dallas", TierGA, 10, "   ", "demand")
	assert.True(t, IsAuthorization(err))

	_, err = s.Expand(ctx, "dallas", TierGA, 0, "admin1", "demand")
	assert.True(t, IsValidation(err))

	_, err = s.Expand(ctx, "dallas", TierGA, DefaultMaxExpansion+1, "admin1", "demand")
	assert.True(t, IsValidation(err))

	_, err = s.Expand(ctx, "nowhere", TierGA, 1, "admin1", "demand")
	assert.True(t, IsValidation(err))

	_, err = s.Expand(ctx, "dallas", Tier("x"), 1, "admin1", "demand")
	assert.True(t, IsValidation(err))

	exps, err := s.Expansions(ctx, "dallas")
	require.NoError(t, err)
	assert.Empty(t, exps)
}

func TestReset_RestoresInitialNumbers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Decrement(ctx, "dallas", TierGA, 4, nil)
	require.NoError(t, err)
	_, err = s.Decrement(ctx, "dallas", TierVIP, 2, nil)
	require.NoError(t, err)
	_, err = s.Expand(ctx, "dallas", TierGA, 7, "admin1", "demand")
	require.NoError(t, err)

	res, err := s.Reset(ctx, "dallas", "admin1", "cleanup")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, Counts{GA: 35, VIP: 15}, res.ActualLimit)
	assert.Equal(t, Counts{}, res.Sold)
	assert.Len(t, res.TransactionIDs, 2)

	snap, err := s.Status(ctx, "dallas")
	require.NoError(t, err)
	assert.Equal(t, Counts{GA: 35, VIP: 15}, snap.ActualLimit)
	assert.Equal(t, Counts{}, snap.Sold)

	// Ledger history survives the reset.
	txs, err := s.Transactions(ctx, "dallas", 0)
	require.NoError(t, err)
	require.Len(t, txs, 5)
	assert.Equal(t, OpReset, txs[0].Operation)
	assert.Equal(t, TierVIP, txs[0].Tier)
	assert.Equal(t, 2, txs[0].Quantity)
	assert.Equal(t, OpReset, txs[1].Operation)
	assert.Equal(t, TierGA, txs[1].Tier)
	assert.Equal(t, 4, txs[1].Quantity)
	assert.Equal(t, "42", txs[1].Metadata[MetaPreviousActualLimit])
	assert.Equal(t, "cleanup", txs[1].Metadata[MetaReason])

	exps, err := s.Expansions(ctx, "dallas")
	require.NoError(t, err)
	assert.Len(t, exps, 1)
}

func TestReset_AfterExpandIsIdempotentRecovery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Expand(ctx, "atlanta", TierGA, 25, "admin1", "overflow room")
	require.NoError(t, err)
	_, err = s.Reset(ctx, "atlanta", "admin1", "undo")
	require.NoError(t, err)
	_, err = s.Reset(ctx, "atlanta", "admin1", "undo again")
	require.NoError(t, err)

	snap, err := s.Status(ctx, "atlanta")
	require.NoError(t, err)
	assert.Equal(t, snap.PublicLimit, snap.ActualLimit)
	assert.Equal(t, Counts{}, snap.Sold)
}

func TestReset_Errors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Reset(ctx, "dallas", "", "cleanup")
	assert.True(t, IsAuthorization(err))

	_, err = s.Reset(ctx, "nowhere", "admin1", "cleanup")
	assert.True(t, IsValidation(err))

	_, err = s.Reset(ctx, "", "admin1", "cleanup")
	assert.True(t, IsValidation(err))
}

func TestStatus_UnknownEventIsNil(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.Status(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestTransactions_MostRecentFirstWithLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := s.Decrement(ctx, "dallas", TierGA, i, nil)
		require.NoError(t, err)
	}

	txs, err := s.Transactions(ctx, "dallas", 3)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, 5, txs[0].Quantity)
	assert.Equal(t, 4, txs[1].Quantity)
	assert.Equal(t, 3, txs[2].Quantity)
	assert.Greater(t, txs[0].Seq, txs[1].Seq)

	_, err = s.Transactions(ctx, "nowhere", 3)
	assert.True(t, IsValidation(err))

	_, err = s.Expansions(ctx, "nowhere")
	assert.True(t, IsValidation(err))
}

func TestEventIDs_Sorted(t *testing.T) {
	s := newTestStore(t)

	ids, err := s.EventIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"atlanta", "dallas"}, ids)
}

// conflictBackend reports a version conflict for the first n commits.
type conflictBackend struct {
	*MemoryBackend
	mu        sync.Mutex
	conflicts int
	commits   int
}

func (b *conflictBackend) Commit(ctx context.Context, c Commit) (int64, error) {
	b.mu.Lock()
	b.commits++
	if b.conflicts > 0 {
		b.conflicts--
		b.mu.Unlock()
		return 0, ErrVersionConflict
	}
	b.mu.Unlock()
	return b.MemoryBackend.Commit(ctx, c)
}

func TestMutate_RetriesVersionConflict(t *testing.T) {
	ctx := context.Background()
	backend := &conflictBackend{MemoryBackend: NewMemoryBackend(), conflicts: 2}

	s, err := New(ctx, backend, testEvents, WithCommitAttempts(3))
	require.NoError(t, err)

	res, err := s.Decrement(ctx, "dallas", TierGA, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 33, res.Available)
	assert.Equal(t, 3, backend.commits)
}

func TestMutate_GivesUpAfterAttempts(t *testing.T) {
	ctx := context.Background()
	backend := &conflictBackend{MemoryBackend: NewMemoryBackend(), conflicts: 10}

	s, err := New(ctx, backend, testEvents, WithCommitAttempts(2),
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	require.NoError(t, err)

	_, err = s.Decrement(ctx, "dallas", TierGA, 2, nil)
	require.Error(t, err)
	assert.True(t, IsInternal(err))
	assert.Equal(t, 2, backend.commits)
}

func TestMutate_StopsRetryingWhenContextDone(t *testing.T) {
	backend := &conflictBackend{MemoryBackend: NewMemoryBackend(), conflicts: 100}

	s, err := New(context.Background(), backend, testEvents, WithCommitAttempts(100),
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Decrement(ctx, "dallas", TierGA, 1, nil)
	require.Error(t, err)
	assert.True(t, IsInternal(err))
	assert.Equal(t, 1, backend.commits)
}

// failingBackend fails every Load with a backend-specific error.
type failingBackend struct {
	*MemoryBackend
}

var errDiskOnFire = errors.New("disk I/O error: /var/lib/inventory.db")

func (b *failingBackend) Load(context.Context, string) (Counters, error) {
	return Counters{}, errDiskOnFire
}

func TestInternalErrors_DoNotLeakDetail(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer

	s, err := New(ctx, &failingBackend{NewMemoryBackend()}, testEvents,
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	require.NoError(t, err)

	_, err = s.Decrement(ctx, "dallas", TierGA, 1, nil)
	require.Error(t, err)
	assert.True(t, IsInternal(err))
	assert.NotContains(t, err.Error(), "/var/lib")
	assert.ErrorIs(t, err, errDiskOnFire, "cause stays reachable for callers that log it")
	assert.Contains(t, logs.String(), "disk I/O error")

	_, err = s.Status(ctx, "dallas")
	assert.True(t, IsInternal(err))
}
