package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS articles_seen (
	fingerprint TEXT PRIMARY KEY,
	source TEXT,
	url TEXT,
	notion_page_id TEXT,
	first_seen_at TEXT
);

CREATE TABLE IF NOT EXISTS runs (
	run_at TEXT,
	status TEXT,
	message TEXT
);
`

// SQLite is the file-backed ledger. Every operation opens its own
// connection, runs in one transaction and closes again, so nothing is held
// open across a run.
type SQLite struct {
	dsn string
	now func() time.Time
}

// SQLiteOption customises a SQLite ledger.
type SQLiteOption func(*SQLite)

// WithClock overrides the time source used for first_seen_at.
func WithClock(now func() time.Time) SQLiteOption {
	return func(l *SQLite) { l.now = now }
}

// NewSQLite creates the ledger at path, creating tables if needed.
func NewSQLite(ctx context.Context, path string, opts ...SQLiteOption) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("ledger: sqlite path is empty")
	}
	l := &SQLite{
		dsn: path + "?_pragma=busy_timeout(5000)",
		now: time.Now,
	}
	for _, o := range opts {
		o(l)
	}

	if err := l.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqliteSchema)
		return err
	}); err != nil {
		return nil, fmt.Errorf("initialize sqlite ledger: %w", err)
	}
	return l, nil
}

func (l *SQLite) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db, err := sql.Open("sqlite", l.dsn)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Lookup implements Store.
func (l *SQLite) Lookup(ctx context.Context, fp string) (string, bool, error) {
	var id sql.NullString
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			`SELECT notion_page_id FROM articles_seen WHERE fingerprint = ?`, fp).Scan(&id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup %s: %w", fp, err)
	}
	if !id.Valid || id.String == "" {
		return "", false, nil
	}
	return id.String, true, nil
}

// Get implements Store.
func (l *SQLite) Get(ctx context.Context, fp string) (*Entry, error) {
	var source, url, id, firstSeen sql.NullString
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			`SELECT source, url, notion_page_id, first_seen_at
			FROM articles_seen WHERE fingerprint = ?`, fp).Scan(&source, &url, &id, &firstSeen)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", fp, err)
	}

	seen, err := parseTime(firstSeen.String)
	if err != nil {
		return nil, err
	}
	return &Entry{
		Fingerprint: fp,
		Source:      source.String,
		URL:         url.String,
		RecordID:    id.String,
		FirstSeenAt: seen,
	}, nil
}

// Upsert implements Store.
func (l *SQLite) Upsert(ctx context.Context, e Entry) error {
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO articles_seen (fingerprint, source, url, notion_page_id, first_seen_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(fingerprint) DO UPDATE SET
				source = excluded.source,
				url = excluded.url,
				notion_page_id = excluded.notion_page_id,
				first_seen_at = COALESCE(articles_seen.first_seen_at, excluded.first_seen_at)
		`, e.Fingerprint, e.Source, e.URL, e.RecordID, formatTime(l.now()))
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", e.Fingerprint, err)
	}
	return nil
}

// AppendRun implements Store.
func (l *SQLite) AppendRun(ctx context.Context, r Run) error {
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO runs (run_at, status, message) VALUES (?, ?, ?)`,
			formatTime(r.At), r.Status, r.Message)
		return err
	})
	if err != nil {
		return fmt.Errorf("append run: %w", err)
	}
	return nil
}

// RecentRuns implements Store.
func (l *SQLite) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	var runs []Run
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT run_at, status, message FROM runs ORDER BY run_at DESC LIMIT ?`, limit)
		if err != nil {
			return err
		}
		runs, err = scanRuns(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	return runs, nil
}

// Stats implements Store.
func (l *SQLite) Stats(ctx context.Context) (Stats, error) {
	st := Stats{BySource: make(map[string]int)}
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		return queryStats(ctx, tx, &st)
	})
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

// Close implements Store. There is no long-lived handle to release.
func (l *SQLite) Close() error {
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryStats(ctx context.Context, q queryer, st *Stats) error {
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles_seen`).Scan(&st.Entries); err != nil {
		return err
	}

	var lastRun sql.NullString
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*), MAX(run_at) FROM runs`).Scan(&st.Runs, &lastRun); err != nil {
		return err
	}
	t, err := parseTime(lastRun.String)
	if err != nil {
		return err
	}
	st.LastRunAt = t

	rows, err := q.QueryContext(ctx,
		`SELECT COALESCE(source, ''), COUNT(*) FROM articles_seen GROUP BY source`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return err
		}
		st.BySource[source] = count
	}
	return rows.Err()
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var at, status, message sql.NullString
		if err := rows.Scan(&at, &status, &message); err != nil {
			return nil, err
		}
		t, err := parseTime(at.String)
		if err != nil {
			return nil, err
		}
		runs = append(runs, Run{At: t, Status: status.String, Message: message.String})
	}
	return runs, rows.Err()
}
