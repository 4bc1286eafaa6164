package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/admin"
	"github.com/c50bossio/6fb-methodologies-sub002/internal/checkout"
	"github.com/c50bossio/6fb-methodologies-sub002/internal/config"
	"github.com/c50bossio/6fb-methodologies-sub002/internal/inventory"
	"github.com/c50bossio/6fb-methodologies-sub002/internal/testutil"
)

// Outcomes of a check step.
const (
	outcomeValid   = "valid"
	outcomeInvalid = "invalid"
)

// Harness is the test execution engine.
// It wires a fresh in-memory store with deterministic time and ids to the
// same checkout and admin layers production uses.
type Harness struct {
	inv       *inventory.Store
	validator *checkout.Validator
	confirmer *checkout.Confirmer
	admin     *admin.Service
	escalator *countingEscalator
}

// countingEscalator tallies escalations per event.
type countingEscalator struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingEscalator) Escalate(_ context.Context, e checkout.Escalation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[e.Payment.EventID]++
	return nil
}

func (c *countingEscalator) snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// newHarness builds an isolated store for one scenario.
func newHarness(ctx context.Context, scenario *Scenario) (*Harness, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	cat := config.Catalog{Settings: scenario.Settings, Events: scenario.Events}

	opts := append(cat.StoreOptions(),
		inventory.WithClock(testutil.NewDeterministicClock()),
		inventory.WithIDGenerator(testutil.NewSequenceIDs("tx")),
		inventory.WithLogger(logger),
	)
	inv, err := inventory.New(ctx, inventory.NewMemoryBackend(), cat.Limits(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	var vopts []checkout.ValidatorOption
	if cat.Settings.MaxQuantity > 0 {
		vopts = append(vopts, checkout.WithMaxQuantity(cat.Settings.MaxQuantity))
	}

	esc := &countingEscalator{counts: make(map[string]int)}
	return &Harness{
		inv:       inv,
		validator: checkout.NewValidator(inv, vopts...),
		confirmer: checkout.NewConfirmer(inv, checkout.WithEscalator(esc), checkout.WithLogger(logger)),
		admin:     admin.NewService(inv, logger),
		escalator: esc,
	}, nil
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh store for isolation. Expectation
// and assertion failures are reported in the Result; the returned error
// is reserved for scenarios that cannot run at all.
//
// Execution flow:
// 1. Seed a fresh in-memory store from the scenario's events
// 2. Execute steps, checking expectations and store invariants after each
// 3. Evaluate final-state assertions
// 4. Snapshot every event
func Run(scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	ctx := context.Background()
	h, err := newHarness(ctx, scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		ev, failures := h.executeStep(ctx, i+1, step)
		result.Trace = append(result.Trace, ev)
		for _, msg := range failures {
			result.AddError(fmt.Sprintf("step %d (%s %s): %s", i+1, step.Op, step.Event, msg))
		}
		if err := h.checkInvariants(ctx); err != nil {
			result.AddError(fmt.Sprintf("step %d (%s %s): invariant violated: %v", i+1, step.Op, step.Event, err))
		}
	}

	escalations := h.escalator.snapshot()
	for _, n := range escalations {
		result.Escalations += n
	}

	for _, msg := range EvaluateAssertions(ctx, h.inv, escalations, scenario.Assertions) {
		result.AddError(msg)
	}

	result.Final, err = h.snapshots(ctx)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// callResult is what one operation call produced.
type callResult struct {
	outcome     string
	available   *int
	newLimit    int
	txID        string
	message     string
	suggestions int
	escalated   bool
}

func (r callResult) succeeded() bool {
	return r.outcome == OutcomeOK || r.outcome == outcomeValid
}

func errorResult(err error) callResult {
	r := callResult{outcome: string(inventory.CodeOf(err))}
	if r.outcome == "" {
		r.outcome = "ERROR"
	}
	var ie *inventory.Error
	if errors.As(err, &ie) {
		r.message = ie.Message
	} else {
		r.message = err.Error()
	}
	return r
}

// call performs the step's operation once.
func (h *Harness) call(ctx context.Context, step Step) callResult {
	tier := inventory.Tier(step.Tier)

	switch step.Op {
	case OpDecrement:
		res, err := h.inv.Decrement(ctx, step.Event, tier, step.Quantity, inventory.Metadata(step.Metadata))
		return allocationResult(res, err)

	case OpConfirm:
		res, err := h.confirmer.Confirm(ctx, checkout.Payment{
			EventID:         step.Event,
			Tier:            tier,
			Quantity:        step.Quantity,
			PaymentIntentID: step.PaymentIntentID,
			SessionID:       step.SessionID,
		})
		r := allocationResult(res, err)
		r.escalated = errors.Is(err, checkout.ErrOversold)
		return r

	case OpExpand:
		res, err := h.admin.Expand(ctx, admin.ExpandRequest{
			EventID:         step.Event,
			Tier:            tier,
			AdditionalSpots: step.Spots,
			AuthorizedBy:    step.AuthorizedBy,
			Reason:          step.Reason,
		})
		if err != nil {
			return errorResult(err)
		}
		return callResult{outcome: OutcomeOK, newLimit: res.NewLimit, txID: res.TransactionID}

	case OpReset:
		_, err := h.admin.Reset(ctx, admin.ResetRequest{
			EventID:      step.Event,
			AuthorizedBy: step.AuthorizedBy,
			Reason:       step.Reason,
		})
		if err != nil {
			return errorResult(err)
		}
		return callResult{outcome: OutcomeOK}

	case OpCheck:
		v, err := h.validator.Validate(ctx, step.Event, tier, step.Quantity)
		if err != nil {
			return errorResult(err)
		}
		r := callResult{
			outcome:     outcomeInvalid,
			available:   &v.Available,
			message:     v.Message,
			suggestions: len(v.Suggestions),
		}
		if v.Valid {
			r.outcome = outcomeValid
		}
		return r
	}

	return callResult{outcome: "ERROR", message: fmt.Sprintf("unknown op %q", step.Op)}
}

func allocationResult(res inventory.DecrementResult, err error) callResult {
	if err == nil {
		return callResult{outcome: OutcomeOK, available: &res.Available, txID: res.TransactionID}
	}
	r := errorResult(err)
	if inventory.IsInsufficient(err) {
		r.available = &res.Available
	}
	return r
}

// executeStep runs one step and returns its trace event and any failed
// expectations.
func (h *Harness) executeStep(ctx context.Context, n int, step Step) (TraceEvent, []string) {
	ev := TraceEvent{
		Step:     n,
		Op:       step.Op,
		Event:    step.Event,
		Tier:     step.Tier,
		Quantity: step.Quantity,
	}
	if step.Op == OpExpand {
		ev.Quantity = step.Spots
	}

	if step.Repeat <= 1 {
		r := h.call(ctx, step)
		ev.Outcome = r.outcome
		ev.Available = r.available
		ev.NewLimit = r.newLimit
		ev.TransactionID = r.txID
		ev.Message = r.message
		ev.Suggestions = r.suggestions
		ev.Escalated = r.escalated
		return ev, checkSingle(step.Expect, r)
	}

	results := make([]callResult, step.Repeat)
	if step.Concurrent {
		var g errgroup.Group
		for i := range results {
			g.Go(func() error {
				results[i] = h.call(ctx, step)
				return nil
			})
		}
		_ = g.Wait() // calls report through results, never through the group
	} else {
		for i := range results {
			results[i] = h.call(ctx, step)
		}
	}

	ev.Attempts = step.Repeat
	ev.Outcomes = make(map[string]int)
	for _, r := range results {
		ev.Outcomes[r.outcome]++
	}
	return ev, checkRepeated(step.Expect, results)
}

func checkSingle(e *Expect, r callResult) []string {
	if e == nil {
		return nil
	}
	var failures []string
	fail := func(format string, args ...any) {
		failures = append(failures, fmt.Sprintf(format, args...))
	}

	if e.Success != nil && *e.Success != r.succeeded() {
		fail("expected success=%v, got outcome %s (%s)", *e.Success, r.outcome, r.message)
	}
	if e.Code != "" && e.Code != r.outcome {
		fail("expected code %s, got %s (%s)", e.Code, r.outcome, r.message)
	}
	if e.Available != nil {
		switch {
		case r.available == nil:
			fail("expected available %d, none reported", *e.Available)
		case *r.available != *e.Available:
			fail("expected available %d, got %d", *e.Available, *r.available)
		}
	}
	if e.NewLimit != nil && *e.NewLimit != r.newLimit {
		fail("expected new_limit %d, got %d", *e.NewLimit, r.newLimit)
	}
	if e.Message != "" && !strings.Contains(r.message, e.Message) {
		fail("expected message containing %q, got %q", e.Message, r.message)
	}
	if e.Escalated != nil && *e.Escalated != r.escalated {
		fail("expected escalated=%v, got %v", *e.Escalated, r.escalated)
	}
	if e.Suggestions != nil && *e.Suggestions != r.suggestions {
		fail("expected %d suggestions, got %d", *e.Suggestions, r.suggestions)
	}
	return failures
}

func checkRepeated(e *Expect, results []callResult) []string {
	if e == nil {
		return nil
	}
	var (
		failures  []string
		successes int
		codes     = map[string]bool{}
	)
	for _, r := range results {
		if r.succeeded() {
			successes++
		} else {
			codes[r.outcome] = true
		}
	}

	if e.Successes != nil && *e.Successes != successes {
		failures = append(failures, fmt.Sprintf("expected %d successes, got %d", *e.Successes, successes))
	}
	if e.Failures != nil && *e.Failures != len(results)-successes {
		failures = append(failures, fmt.Sprintf("expected %d failures, got %d", *e.Failures, len(results)-successes))
	}
	if e.Code != "" {
		for code := range codes {
			if code != e.Code {
				failures = append(failures, fmt.Sprintf("expected every failure to be %s, got %s", e.Code, code))
			}
		}
	}
	sort.Strings(failures)
	return failures
}

// checkInvariants verifies 0 <= sold <= actual and actual >= public for
// every event and tier.
func (h *Harness) checkInvariants(ctx context.Context) error {
	snaps, err := h.snapshots(ctx)
	if err != nil {
		return err
	}
	for _, s := range snaps {
		for _, t := range inventory.Tiers {
			sold, actual, public := s.Sold.Get(t), s.ActualLimit.Get(t), s.PublicLimit.Get(t)
			if sold < 0 || sold > actual {
				return fmt.Errorf("%s/%s: sold %d outside [0, %d]", s.EventID, t, sold, actual)
			}
			if actual < public {
				return fmt.Errorf("%s/%s: actual limit %d below public limit %d", s.EventID, t, actual, public)
			}
		}
	}
	return nil
}

func (h *Harness) snapshots(ctx context.Context) ([]inventory.Snapshot, error) {
	ids, err := h.inv.EventIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]inventory.Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := h.inv.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			out = append(out, *snap)
		}
	}
	return out, nil
}
