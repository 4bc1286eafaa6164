package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/inventory"
)

var testEvents = []inventory.EventLimits{
	{EventID: "dallas", Name: "Dallas Workshop", Public: inventory.Counts{GA: 35, VIP: 15}},
	{EventID: "atlanta", Name: "Atlanta Workshop", Public: inventory.Counts{GA: 40, VIP: 20}},
}

// createTestStore creates a new file-backed store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createSeededStore creates a store with testEvents already ensured.
func createSeededStore(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	if err := s.Ensure(context.Background(), testEvents); err != nil {
		t.Fatalf("Ensure() failed: %v", err)
	}
	return s
}
