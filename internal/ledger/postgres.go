package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// Postgres keeps the ledger in a PostgreSQL database. Unlike the SQLite
// backend it holds a connection pool for the lifetime of the process.
type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgres connects to the database and creates the ledger tables.
func NewPostgres(ctx context.Context, connectionString string) (*Postgres, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Postgres{db: db, now: time.Now}
	if err := p.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("PostgreSQL ledger connected")
	return p, nil
}

func (p *Postgres) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles_seen (
		fingerprint TEXT PRIMARY KEY,
		source TEXT,
		url TEXT,
		notion_page_id TEXT,
		first_seen_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_articles_seen_source ON articles_seen(source);

	CREATE TABLE IF NOT EXISTS runs (
		run_at TEXT,
		status TEXT,
		message TEXT
	);
	`
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

// Lookup implements Store.
func (p *Postgres) Lookup(ctx context.Context, fp string) (string, bool, error) {
	var id sql.NullString
	err := p.db.QueryRowContext(ctx,
		`SELECT notion_page_id FROM articles_seen WHERE fingerprint = $1`, fp).Scan(&id)
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
func (p *Postgres) Get(ctx context.Context, fp string) (*Entry, error) {
	var source, url, id, firstSeen sql.NullString
	err := p.db.QueryRowContext(ctx,
		`SELECT source, url, notion_page_id, first_seen_at
		FROM articles_seen WHERE fingerprint = $1`, fp).Scan(&source, &url, &id, &firstSeen)
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

// Upsert implements Store. ON CONFLICT keeps the write atomic and leaves
// first_seen_at alone for existing rows.
func (p *Postgres) Upsert(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO articles_seen (fingerprint, source, url, notion_page_id, first_seen_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (fingerprint) DO UPDATE SET
			source = EXCLUDED.source,
			url = EXCLUDED.url,
			notion_page_id = EXCLUDED.notion_page_id,
			first_seen_at = COALESCE(articles_seen.first_seen_at, EXCLUDED.first_seen_at)
	`
	_, err := p.db.ExecContext(ctx, query, e.Fingerprint, e.Source, e.URL, e.RecordID, formatTime(p.now()))
	if err != nil {
		return fmt.Errorf("upsert %s: %w", e.Fingerprint, err)
	}
	return nil
}

// AppendRun implements Store.
func (p *Postgres) AppendRun(ctx context.Context, r Run) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO runs (run_at, status, message) VALUES ($1, $2, $3)`,
		formatTime(r.At), r.Status, r.Message)
	if err != nil {
		return fmt.Errorf("append run: %w", err)
	}
	return nil
}

// RecentRuns implements Store.
func (p *Postgres) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT run_at, status, message FROM runs ORDER BY run_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	return runs, nil
}

// Stats implements Store.
func (p *Postgres) Stats(ctx context.Context) (Stats, error) {
	st := Stats{BySource: make(map[string]int)}
	if err := queryStats(ctx, p.db, &st); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
