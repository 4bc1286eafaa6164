// Package store provides SQLite-backed durable storage for event inventories.
//
// Store implements inventory.Backend with:
//   - inventories: one row per event holding the six tier counters and a version
//   - transactions: append-only ledger of decrement/expand/reset entries
//   - expansions: append-only record of admin-authorized capacity increases
//
// # Critical Patterns
//
// Atomic Commit
//   - Counter update and ledger inserts run in one SQL transaction
//   - UPDATE ... WHERE version = ? is a compare-and-swap; zero affected rows
//     means another writer got there first (inventory.ErrVersionConflict)
//
// Invariants in the Schema
//   - CHECK constraints mirror sold <= actual and actual >= public, so even a
//     buggy writer cannot persist an oversold row
//
// Deterministic Ordering
//   - Ledger ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - Listings are ORDER BY seq DESC (most recent first)
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Transaction metadata is stored as deterministic CBOR.
package store
