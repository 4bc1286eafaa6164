package harness

import "github.com/c50bossio/6fb-methodologies-sub002/internal/inventory"

// OutcomeOK is the trace outcome of a successful call.
const OutcomeOK = "ok"

// TraceEvent records what one step did.
//
// A single call records its own figures. A repeated step records only the
// tally of outcomes, since the order of concurrent calls is not stable.
type TraceEvent struct {
	Step          int            `json:"step"`
	Op            string         `json:"op"`
	Event         string         `json:"event"`
	Tier          string         `json:"tier,omitempty"`
	Quantity      int            `json:"quantity,omitempty"`
	Attempts      int            `json:"attempts,omitempty"`
	Outcome       string         `json:"outcome,omitempty"`
	Available     *int           `json:"available,omitempty"`
	NewLimit      int            `json:"new_limit,omitempty"`
	TransactionID string         `json:"transaction_id,omitempty"`
	Message       string         `json:"message,omitempty"`
	Suggestions   int            `json:"suggestions,omitempty"`
	Escalated     bool           `json:"escalated,omitempty"`
	Outcomes      map[string]int `json:"outcomes,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace has one entry per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final holds a snapshot of every event after the last step, sorted by id.
	Final []inventory.Snapshot `json:"final"`

	// Escalations counts paid orders handed to the escalator.
	Escalations int `json:"escalations"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
