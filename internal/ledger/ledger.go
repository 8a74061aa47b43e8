// Package ledger is the local durable record of which fingerprints have been
// synced to the remote store, plus the append-only log of runs.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeLayout is how timestamps are written to the ledger tables.
// Fixed-width fractional seconds keep lexical and chronological order equal.
const TimeLayout = "2006-01-02T15:04:05.000000-07:00"

// ErrNotFound is returned by Get when no entry exists for a fingerprint.
var ErrNotFound = errors.New("ledger: entry not found")

// Entry is one synced fingerprint.
type Entry struct {
	Fingerprint string
	Source      string
	URL         string
	RecordID    string
	FirstSeenAt time.Time
}

// Run is one row of the run log.
type Run struct {
	At      time.Time
	Status  string
	Message string
}

// Stats summarises ledger contents.
type Stats struct {
	Entries   int
	BySource  map[string]int
	Runs      int
	LastRunAt time.Time
}

// Store is implemented by every ledger backend.
type Store interface {
	// Lookup returns the remote record id for fp. A row whose record id is
	// empty counts as not found.
	Lookup(ctx context.Context, fp string) (string, bool, error)
	Get(ctx context.Context, fp string) (*Entry, error)
	// Upsert writes e. FirstSeenAt of an existing row is never changed.
	Upsert(ctx context.Context, e Entry) error
	AppendRun(ctx context.Context, r Run) error
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Open picks the backend: PostgreSQL when databaseURL is set, otherwise the
// SQLite file at statePath.
func Open(ctx context.Context, databaseURL, statePath string) (Store, error) {
	if databaseURL != "" {
		return NewPostgres(ctx, databaseURL)
	}
	return NewSQLite(ctx, statePath)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
