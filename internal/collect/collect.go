// Package collect defines what a news source looks like to the pipeline and
// gathers one batch of candidate items from all configured sources.
package collect

import (
	"context"
	"log/slog"

	"github.com/deusflow/incidentfeed/internal/news"
)

// Source produces candidate items. Items may be malformed or duplicated;
// the reconciler cleans the batch.
type Source interface {
	Name() string
	Collect(ctx context.Context) ([]news.Item, error)
}

// Gather runs every source in order and concatenates their items. A failing
// source is logged and skipped; its name is returned in failed.
func Gather(ctx context.Context, sources []Source, log *slog.Logger) (all []news.Item, failed []string) {
	if log == nil {
		log = slog.Default()
	}

	for _, src := range sources {
		items, err := src.Collect(ctx)
		if err != nil {
			log.Error("source failed", "source", src.Name(), "error", err)
			failed = append(failed, src.Name())
			continue
		}
		log.Info("collected", "source", src.Name(), "items", len(items))
		all = append(all, items...)
	}

	log.Info("collection finished", "sources_ok", len(sources)-len(failed), "sources_total", len(sources), "items", len(all))
	return all, failed
}
