// Package store is the SQLite persistence layer: catalog reads for the rate
// resolver and variation generator, snapshot and history writes, and eBay
// variation rows.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Simplici0/coverworks/internal/catalog"
	"github.com/Simplici0/coverworks/internal/db"
)

// Store wraps a *sql.DB opened by db.Open with migrations applied.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New returns a Store over database.
func New(database *sql.DB) *Store {
	return &Store{
		db:  database,
		now: func() time.Time { return time.Now().UTC() },
	}
}

const dateOnly = "2006-01-02"

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseTime accepts RFC 3339 timestamps and bare dates.
func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", raw, err)
	}
	return t.UTC(), nil
}

func parseNullTime(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// lookupErr maps sql.ErrNoRows to catalog.ErrNotFound and everything else to a
// transport error.
func lookupErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, catalog.ErrNotFound)
	}
	return db.Transport(op, err)
}

// placeholders returns "?, ?, ?" for n values and the values as []any.
func placeholders(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}
