package store

import (
	"context"
	"fmt"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/inventory"
)

// Ensure creates an inventory row for every event that does not exist yet.
// Uses ON CONFLICT(event_id) DO NOTHING: persisted counters and the public
// limit of existing events are never overwritten.
func (s *Store) Ensure(ctx context.Context, events []inventory.EventLimits) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ensure events: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, ev := range events {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO inventories
			(event_id, name, public_ga, public_vip, actual_ga, actual_vip, sold_ga, sold_vip, version)
			VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0)
			ON CONFLICT(event_id) DO NOTHING
		`,
			ev.EventID,
			ev.Name,
			ev.Public.GA,
			ev.Public.VIP,
			ev.Public.GA,
			ev.Public.VIP,
		)
		if err != nil {
			return fmt.Errorf("ensure events: insert %q: %w", ev.EventID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ensure events: commit: %w", err)
	}
	return nil
}

// Commit atomically applies new counters and appends ledger records.
//
// The counter UPDATE is guarded by the expected version; if no row matches,
// the commit is rolled back and inventory.ErrVersionConflict is returned
// (or inventory.ErrEventNotFound if the event does not exist at all).
//
// Ledger seqs are read from the database after the UPDATE has taken the
// write lock, so every connection to the file draws from one sequence.
func (s *Store) Commit(ctx context.Context, c inventory.Commit) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("commit: begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE inventories
		SET actual_ga = ?, actual_vip = ?, sold_ga = ?, sold_vip = ?, version = version + 1
		WHERE event_id = ? AND version = ?
	`,
		c.Next.Actual.GA,
		c.Next.Actual.VIP,
		c.Next.Sold.GA,
		c.Next.Sold.VIP,
		c.EventID,
		c.ExpectedVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("commit: update counters: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("commit: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM inventories WHERE event_id = ?`, c.EventID).Scan(&exists)
		if err != nil {
			return 0, fmt.Errorf("commit: check event: %w", err)
		}
		if exists == 0 {
			return 0, inventory.ErrEventNotFound
		}
		return 0, inventory.ErrVersionConflict
	}

	last, err := lastSeq(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	first := last + 1

	for i, t := range c.Transactions {
		md, err := marshalMetadata(t.Metadata)
		if err != nil {
			return 0, fmt.Errorf("commit: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transactions
			(seq, id, event_id, tier, quantity, operation, created_at, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			first+int64(i),
			t.ID,
			t.EventID,
			string(t.Tier),
			t.Quantity,
			string(t.Operation),
			formatTime(t.Timestamp),
			md,
		)
		if err != nil {
			return 0, fmt.Errorf("commit: insert transaction %s: %w", t.ID, err)
		}
	}

	if e := c.Expansion; e != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO expansions
			(seq, event_id, tier, additional_spots, reason, authorized_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			first,
			e.EventID,
			string(e.Tier),
			e.AdditionalSpots,
			e.Reason,
			e.AuthorizedBy,
			formatTime(e.Timestamp),
		)
		if err != nil {
			return 0, fmt.Errorf("commit: insert expansion: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return first, nil
}
