// Package harness runs inventory scenarios described in YAML and checks
// them against expectations, final-state assertions and golden traces.
//
// # Scenario Format
//
//	name: concurrent_oversell
//	description: "50 buyers race for 35 seats"
//	settings:
//	  max_quantity: 10
//	events:
//	  - id: dallas
//	    public: { ga: 35, vip: 15 }
//	steps:
//	  - op: decrement
//	    event: dallas
//	    tier: ga
//	    quantity: 1
//	    repeat: 50
//	    concurrent: true
//	    expect:
//	      successes: 35
//	      failures: 15
//	      code: INSUFFICIENT_INVENTORY
//	assertions:
//	  - event: dallas
//	    sold: { ga: 35 }
//	    transactions: 35
//
// Steps are decrement, confirm (payment confirmation with escalation),
// expand, reset and check (advisory checkout validation). Unknown fields
// are rejected.
//
// # Deterministic Testing
//
// Each run gets a fresh in-memory store with testutil.DeterministicClock
// and testutil.SequenceIDs, so single-call steps produce identical ids and
// timestamps across runs. Repeated steps are recorded as outcome tallies.
//
// After every step the harness verifies that no tier has sold more than its
// actual limit and that no actual limit is below its public limit.
package harness
