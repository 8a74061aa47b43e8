package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/deusflow/incidentfeed/internal/ledger"
)

const (
	StatusOK      = "ok"
	StatusPartial = "partial"
)

// Counts tallies outcomes across a run.
type Counts struct {
	Created int
	Updated int
	Skipped int
	Errors  int
}

// Add counts one outcome.
func (c *Counts) Add(o Outcome) {
	switch o {
	case Created:
		c.Created++
	case Updated:
		c.Updated++
	case Skipped:
		c.Skipped++
	case Failed:
		c.Errors++
	}
}

// Total is the number of items that reached the reconciler.
func (c Counts) Total() int {
	return c.Created + c.Updated + c.Skipped + c.Errors
}

// Status is "ok" for an error-free run and "partial" otherwise.
func (c Counts) Status() string {
	if c.Errors == 0 {
		return StatusOK
	}
	return StatusPartial
}

// Message is the one-line summary stored with the run.
func (c Counts) Message() string {
	return fmt.Sprintf("created=%d, updated=%d, skipped=%d, errors=%d", c.Created, c.Updated, c.Skipped, c.Errors)
}

// RunLog is where finished runs are appended.
type RunLog interface {
	AppendRun(ctx context.Context, r ledger.Run) error
}

// RecordRun appends the run summary. A failure is logged and otherwise
// ignored.
func RecordRun(ctx context.Context, rl RunLog, at time.Time, c Counts, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	run := ledger.Run{At: at, Status: c.Status(), Message: c.Message()}
	if err := rl.AppendRun(ctx, run); err != nil {
		log.Warn("could not record run", "status", run.Status, "error", err)
	}
}
