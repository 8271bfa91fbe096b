package seed

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/Simplici0/coverworks/internal/db"
	"github.com/Simplici0/coverworks/internal/migrations"
)

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "seed-test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	if _, err := migrations.Up(ctx, database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	for i := 0; i < 10; i++ {
		stats, err := Run(ctx, database)
		if err != nil {
			t.Fatalf("run seed (iteration=%d): %v", i, err)
		}
		if i == 0 {
			if stats.Inserts != 12 {
				t.Fatalf("expected 12 inserts in first run, got %d", stats.Inserts)
			}
			continue
		}
		if stats.Inserts != 0 {
			t.Fatalf("expected 0 inserts in iteration %d, got %d", i, stats.Inserts)
		}
	}

	assertCount(t, database, `SELECT COUNT(*) FROM material_role_configs`, nil, 3)
	assertCount(t, database, `SELECT COUNT(*) FROM material_role_configs WHERE ebay_variation_enabled = ?`, true, 2)
	assertCount(t, database, `SELECT COUNT(*) FROM labor_settings WHERE id = 1`, nil, 1)
	assertCount(t, database, `SELECT COUNT(*) FROM marketplace_fee_rates`, nil, 4)
	assertCount(t, database, `SELECT COUNT(*) FROM variant_profit_settings WHERE profit_cents > ?`, []any{0}, 4)
}

func TestRunKeepsEditedValues(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "seed-edit.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	if _, err := migrations.Up(ctx, database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	if _, err := database.Exec(`INSERT INTO marketplace_fee_rates (marketplace, fee_rate) VALUES ('ebay', 12.9)`); err != nil {
		t.Fatalf("insert fee rate: %v", err)
	}

	stats, err := Run(ctx, database)
	if err != nil {
		t.Fatalf("run seed: %v", err)
	}
	if stats.Inserts != 11 {
		t.Fatalf("expected 11 inserts, got %d", stats.Inserts)
	}

	var rate float64
	if err := database.QueryRow(`SELECT fee_rate FROM marketplace_fee_rates WHERE marketplace = 'ebay'`).Scan(&rate); err != nil {
		t.Fatalf("query fee rate: %v", err)
	}
	if rate != 12.9 {
		t.Fatalf("expected edited fee rate 12.9 to survive, got %v", rate)
	}
}

func assertCount(t *testing.T, database *sql.DB, query string, args any, expected int) {
	t.Helper()

	var count int
	var err error
	switch v := args.(type) {
	case nil:
		err = database.QueryRow(query).Scan(&count)
	case []any:
		err = database.QueryRow(query, v...).Scan(&count)
	default:
		err = database.QueryRow(query, v).Scan(&count)
	}
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != expected {
		t.Fatalf("expected count %d, got %d", expected, count)
	}
}
