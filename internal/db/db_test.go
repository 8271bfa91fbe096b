package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := Open(filepath.Join(t.TempDir(), "db-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if _, err := database.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return database
}

func countItems(t *testing.T, database *sql.DB) int {
	t.Helper()

	var n int
	if err := database.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		t.Fatalf("count items: %v", err)
	}
	return n
}

func TestWithTxCommits(t *testing.T) {
	database := openTestDB(t)

	err := WithTx(context.Background(), database, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO items (name) VALUES ('a'), ('b')`)
		return err
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if got := countItems(t, database); got != 2 {
		t.Fatalf("items=%d, want 2", got)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	database := openTestDB(t)
	boom := errors.New("boom")

	err := WithTx(context.Background(), database, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO items (name) VALUES ('a')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx error = %v, want %v", err, boom)
	}
	if got := countItems(t, database); got != 0 {
		t.Fatalf("items=%d, want 0 after rollback", got)
	}
}

func TestTransportWrapsOnce(t *testing.T) {
	base := errors.New("disk full")

	err := Transport("insert snapshot", base)
	if !IsTransport(err) || !errors.Is(err, base) {
		t.Fatalf("Transport() = %v, want TransportError wrapping base", err)
	}
	if again := Transport("outer", err); again != err {
		t.Fatalf("Transport re-wrapped an existing TransportError: %v", again)
	}
	if Transport("noop", nil) != nil {
		t.Fatalf("Transport(nil) should be nil")
	}
}
