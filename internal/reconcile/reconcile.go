// Package reconcile decides, per candidate item, whether the remote store
// needs a new record, an update or nothing, and keeps the local ledger in
// step with what the remote store holds.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/deusflow/incidentfeed/internal/ledger"
	"github.com/deusflow/incidentfeed/internal/news"
	"github.com/deusflow/incidentfeed/internal/notion"
)

// Ledger is the local record of synced fingerprints.
type Ledger interface {
	Lookup(ctx context.Context, fp string) (string, bool, error)
	Upsert(ctx context.Context, e ledger.Entry) error
}

// Remote is the external store records are looked up in and written to.
type Remote interface {
	FindRecord(ctx context.Context, fp string) (string, bool, error)
	CreateRecord(ctx context.Context, rec news.Record) (string, error)
	UpdateRecord(ctx context.Context, id string, rec news.Record) error
}

// Outcome classifies what happened to one item.
type Outcome int

const (
	Skipped Outcome = iota
	Created
	Updated
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result is the decision taken for one item.
type Result struct {
	Item        news.Item
	Fingerprint string
	Outcome     Outcome
	RecordID    string
	Err         error
}

// Options tune the reconciler.
type Options struct {
	// UpdateExisting rewrites a remote record that exists but is missing
	// from the ledger instead of skipping it.
	UpdateExisting bool
	Logger         *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Reconciler drives the ledger and the remote store for a batch of items.
type Reconciler struct {
	ledger Ledger
	remote Remote
	update bool
	log    *slog.Logger
	now    func() time.Time
}

// New builds a Reconciler.
func New(l Ledger, r Remote, opts Options) *Reconciler {
	rc := &Reconciler{
		ledger: l,
		remote: r,
		update: opts.UpdateExisting,
		log:    opts.Logger,
		now:    opts.Now,
	}
	if rc.log == nil {
		rc.log = slog.Default()
	}
	if rc.now == nil {
		rc.now = time.Now
	}
	return rc
}

// ReconcileItem runs the ledger/remote protocol for a single item. A ledger
// hit is final: the remote store is not consulted. Errors never escape;
// they come back as a Failed result and leave the ledger untouched.
func (r *Reconciler) ReconcileItem(ctx context.Context, it news.Item, ingestedAt time.Time) Result {
	fp := news.Fingerprint(it.Source, it.URL)
	res := Result{Item: it, Fingerprint: fp}

	id, seen, err := r.ledger.Lookup(ctx, fp)
	if err != nil {
		return r.fail(res, fmt.Errorf("ledger lookup: %w", err))
	}
	if seen {
		res.Outcome = Skipped
		res.RecordID = id
		return res
	}

	rec := news.NewRecord(it, fp, ingestedAt)

	id, found, err := r.remote.FindRecord(ctx, fp)
	if err != nil {
		return r.fail(res, fmt.Errorf("find record: %w", err))
	}

	switch {
	case found && r.update:
		if err := r.remote.UpdateRecord(ctx, id, rec); err != nil {
			return r.fail(res, fmt.Errorf("update record %s: %w", id, err))
		}
		res.Outcome = Updated
	case found:
		res.Outcome = Skipped
	default:
		id, err = r.remote.CreateRecord(ctx, rec)
		if err != nil {
			return r.fail(res, fmt.Errorf("create record: %w", err))
		}
		res.Outcome = Created
	}
	res.RecordID = id

	if err := r.ledger.Upsert(ctx, ledger.Entry{
		Fingerprint: fp,
		Source:      it.Source,
		URL:         it.URL,
		RecordID:    id,
	}); err != nil {
		return r.fail(res, fmt.Errorf("ledger upsert: %w", err))
	}
	return res
}

// Run prepares the batch and reconciles every surviving item in order. All
// records written in one run share the same ingestion time.
func (r *Reconciler) Run(ctx context.Context, items []news.Item) (Counts, []Result) {
	batch := news.Prepare(items)
	if dropped := len(items) - len(batch); dropped > 0 {
		r.log.Debug("batch prepared", "received", len(items), "kept", len(batch), "dropped", dropped)
	}

	ingestedAt := r.now().UTC()
	var counts Counts
	results := make([]Result, 0, len(batch))
	for _, it := range batch {
		res := r.ReconcileItem(ctx, it, ingestedAt)
		counts.Add(res.Outcome)
		results = append(results, res)
		r.log.Debug("item reconciled", "outcome", res.Outcome, "source", it.Source, "fingerprint", res.Fingerprint)
	}
	return counts, results
}

func (r *Reconciler) fail(res Result, err error) Result {
	res.Outcome = Failed
	res.Err = err

	attrs := []any{
		"source", res.Item.Source,
		"title", shorten(res.Item.Title, 60),
		"fingerprint", res.Fingerprint,
		"error", err,
	}
	var apiErr *notion.APIError
	if errors.As(err, &apiErr) {
		attrs = append(attrs, "status", apiErr.StatusCode, "body", shorten(apiErr.Body, 300))
	}
	r.log.Warn("item failed", attrs...)
	return res
}

func shorten(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
