package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Simplici0/coverworks/internal/db"
)

func TestUpIsIdempotent(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "migrate-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	applied, err := Up(ctx, database)
	if err != nil {
		t.Fatalf("first Up: %v", err)
	}
	if len(applied) != 3 {
		t.Fatalf("applied %v, want 3 migrations", applied)
	}

	again, err := Up(ctx, database)
	if err != nil {
		t.Fatalf("second Up: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second Up applied %v, want none", again)
	}

	for _, table := range []string{"models", "model_pricing_snapshots", "model_pricing_history", "ebay_variations"} {
		var n int
		if err := database.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n); err != nil {
			t.Fatalf("lookup table %s: %v", table, err)
		}
		if n != 1 {
			t.Fatalf("table %s missing after migrations", table)
		}
	}
}
