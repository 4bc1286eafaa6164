package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/inventory"
)

// Load returns the counters row for an event.
// Returns inventory.ErrEventNotFound if the event does not exist.
func (s *Store) Load(ctx context.Context, eventID string) (inventory.Counters, error) {
	var c inventory.Counters
	err := s.db.QueryRowContext(ctx, `
		SELECT event_id, name, public_ga, public_vip, actual_ga, actual_vip, sold_ga, sold_vip, version
		FROM inventories
		WHERE event_id = ?
	`, eventID).Scan(
		&c.EventID,
		&c.Name,
		&c.Public.GA,
		&c.Public.VIP,
		&c.Actual.GA,
		&c.Actual.VIP,
		&c.Sold.GA,
		&c.Sold.VIP,
		&c.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return inventory.Counters{}, inventory.ErrEventNotFound
	}
	if err != nil {
		return inventory.Counters{}, fmt.Errorf("load %q: %w", eventID, err)
	}
	return c, nil
}

// EventIDs lists all event ids in binary order.
func (s *Store) EventIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id FROM inventories ORDER BY event_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return ids, nil
}

// Transactions returns up to limit ledger entries for an event, most recent
// first. limit <= 0 returns all entries.
func (s *Store) Transactions(ctx context.Context, eventID string, limit int) ([]inventory.Transaction, error) {
	if err := s.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}

	// SQLite treats LIMIT -1 as "no limit".
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, event_id, tier, quantity, operation, created_at, metadata
		FROM transactions
		WHERE event_id = ?
		ORDER BY seq DESC, rowid DESC
		LIMIT ?
	`, eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txs := []inventory.Transaction{}
	for rows.Next() {
		var (
			t         inventory.Transaction
			tier, op  string
			createdAt string
			md        []byte
		)
		if err := rows.Scan(&t.Seq, &t.ID, &t.EventID, &tier, &t.Quantity, &op, &createdAt, &md); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Tier = inventory.Tier(tier)
		t.Operation = inventory.Operation(op)
		if t.Timestamp, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction %s: %w", t.ID, err)
		}
		if t.Metadata, err = unmarshalMetadata(md); err != nil {
			return nil, fmt.Errorf("scan transaction %s: %w", t.ID, err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

// Expansions returns every expansion record for an event, most recent first.
func (s *Store) Expansions(ctx context.Context, eventID string) ([]inventory.Expansion, error) {
	if err := s.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, event_id, tier, additional_spots, reason, authorized_by, created_at
		FROM expansions
		WHERE event_id = ?
		ORDER BY seq DESC, id DESC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query expansions: %w", err)
	}
	defer rows.Close()

	exps := []inventory.Expansion{}
	for rows.Next() {
		var (
			e         inventory.Expansion
			tier      string
			createdAt string
		)
		if err := rows.Scan(&e.Seq, &e.EventID, &tier, &e.AdditionalSpots, &e.Reason, &e.AuthorizedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scan expansion: %w", err)
		}
		e.Tier = inventory.Tier(tier)
		if e.Timestamp, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("scan expansion: %w", err)
		}
		exps = append(exps, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expansions: %w", err)
	}
	return exps, nil
}

// LastSeq returns the highest sequence number in either ledger table.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	return lastSeq(ctx, s.db)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func lastSeq(ctx context.Context, q queryer) (int64, error) {
	var seq int64
	err := q.QueryRowContext(ctx, `
		SELECT MAX(
			(SELECT COALESCE(MAX(seq), 0) FROM transactions),
			(SELECT COALESCE(MAX(seq), 0) FROM expansions)
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

func (s *Store) requireEvent(ctx context.Context, eventID string) error {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM inventories WHERE event_id = ?`, eventID).Scan(&n)
	if err != nil {
		return fmt.Errorf("check event %q: %w", eventID, err)
	}
	if n == 0 {
		return inventory.ErrEventNotFound
	}
	return nil
}
