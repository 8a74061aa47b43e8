package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/deusflow/incidentfeed/internal/collect"
	"github.com/deusflow/incidentfeed/internal/config"
	"github.com/deusflow/incidentfeed/internal/ledger"
	"github.com/deusflow/incidentfeed/internal/metrics"
	"github.com/deusflow/incidentfeed/internal/naver"
	"github.com/deusflow/incidentfeed/internal/notion"
	"github.com/deusflow/incidentfeed/internal/reconcile"
	"github.com/deusflow/incidentfeed/internal/retry"
	"github.com/deusflow/incidentfeed/internal/rss"
)

// Run performs one ingestion pass: collect, reconcile against the ledger
// and Notion, record the run. Errors returned here are configuration or
// startup failures; per-item failures only show up in the counts.
func Run(ctx context.Context, cfg *config.Config, log *slog.Logger) (reconcile.Counts, error) {
	if log == nil {
		log = slog.Default()
	}
	started := time.Now()

	counts, err := run(ctx, cfg, log)
	if err != nil {
		metrics.Global.SetError(err.Error())
		return counts, err
	}

	metrics.Global.RecordRun(counts.Created, counts.Updated, counts.Skipped, counts.Errors, counts.Status(), time.Since(started))
	return counts, nil
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) (reconcile.Counts, error) {
	store, err := ledger.Open(ctx, cfg.DatabaseURL, cfg.StatePath)
	if err != nil {
		return reconcile.Counts{}, fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	nc := notion.NewClient(notion.Config{
		Token:      cfg.NotionToken,
		Version:    cfg.NotionVersion,
		BaseURL:    cfg.NotionBaseURL,
		HTTPClient: httpClient,
	})
	col, err := notion.Discover(ctx, nc, cfg.ArticlesDBID)
	if err != nil {
		return reconcile.Counts{}, fmt.Errorf("discover articles data source: %w", err)
	}
	log.Info("notion data source ready", "name", col.Name, "id", col.DataSourceID, "title_property", col.TitleProperty)

	srcCfg, err := config.LoadSources(cfg.SourcesConfigPath)
	if err != nil {
		return reconcile.Counts{}, fmt.Errorf("load sources: %w", err)
	}

	var tracer collect.Tracer = collect.NopTracer{}
	if cfg.DebugDump {
		ft, err := collect.NewFileTracer(cfg.DebugDumpPath)
		if err != nil {
			return reconcile.Counts{}, err
		}
		defer func() {
			if err := ft.Close(); err != nil {
				log.Warn("debug dump incomplete", "path", cfg.DebugDumpPath, "error", err)
			}
		}()
		tracer = ft
	}

	sources := buildSources(cfg, srcCfg, httpClient, tracer, log)
	items, failed := collect.Gather(ctx, sources, log)
	metrics.Global.AddCollected(len(items))
	for range failed {
		metrics.Global.IncrementSourceErrors()
	}

	rc := reconcile.New(store, col, reconcile.Options{
		UpdateExisting: cfg.UpdateExisting,
		Logger:         log,
	})
	counts, _ := rc.Run(ctx, items)

	reconcile.RecordRun(ctx, store, time.Now(), counts, log)
	log.Info("run finished", "status", counts.Status(), "summary", counts.Message())
	return counts, nil
}

func buildSources(cfg *config.Config, srcCfg *config.Sources, client *http.Client, tracer collect.Tracer, log *slog.Logger) []collect.Source {
	rc := retry.Config{Attempts: cfg.RetryAttempts, Delay: cfg.RetryDelay, Backoff: true}

	sources := rss.Collectors(srcCfg.Feeds, rss.Options{
		HTTPClient: client,
		MaxEntries: cfg.MaxEntriesPerFeed,
		Retry:      rc,
		Tracer:     tracer,
		Logger:     log,
	})

	if nc := naver.New(naver.Options{
		ClientID:     cfg.NaverClientID,
		ClientSecret: cfg.NaverClientSecret,
		Keywords:     srcCfg.NaverKeywords,
		HTTPClient:   client,
		QPS:          cfg.NaverQPS,
		Retry:        rc,
		Tracer:       tracer,
		Logger:       log,
	}); nc != nil {
		sources = append(sources, nc)
	} else {
		log.Info("naver collector disabled: NAVER_CLIENT_ID/NAVER_CLIENT_SECRET not set")
	}
	return sources
}
