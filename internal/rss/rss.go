// Package rss collects candidate items from RSS and Atom feeds.
package rss

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/deusflow/incidentfeed/internal/collect"
	"github.com/deusflow/incidentfeed/internal/config"
	"github.com/deusflow/incidentfeed/internal/news"
	"github.com/deusflow/incidentfeed/internal/normalize"
	"github.com/deusflow/incidentfeed/internal/retry"
)

const (
	DefaultMaxEntries = 50
	DefaultUserAgent  = "IncidentDashboard/1.0 (+local)"
)

type Options struct {
	HTTPClient *http.Client
	UserAgent  string
	MaxEntries int
	Retry      retry.Config
	Tracer     collect.Tracer
	Logger     *slog.Logger
}

// Collector reads one feed.
type Collector struct {
	feed   config.Feed
	client *http.Client
	parser *gofeed.Parser
	ua     string
	max    int
	retry  retry.Config
	tracer collect.Tracer
	log    *slog.Logger
}

func New(feed config.Feed, opts Options) *Collector {
	c := &Collector{
		feed:   feed,
		client: opts.HTTPClient,
		parser: gofeed.NewParser(),
		ua:     opts.UserAgent,
		max:    opts.MaxEntries,
		retry:  opts.Retry,
		tracer: opts.Tracer,
		log:    opts.Logger,
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 30 * time.Second}
	}
	if c.ua == "" {
		c.ua = DefaultUserAgent
	}
	if c.max <= 0 {
		c.max = DefaultMaxEntries
	}
	if c.tracer == nil {
		c.tracer = collect.NopTracer{}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Collectors builds one Collector per feed.
func Collectors(feeds []config.Feed, opts Options) []collect.Source {
	out := make([]collect.Source, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, New(f, opts))
	}
	return out
}

func (c *Collector) Name() string { return c.feed.Name }

// Collect fetches the feed and converts its first entries. Entries without
// a link or title are skipped.
func (c *Collector) Collect(ctx context.Context) ([]news.Item, error) {
	var feed *gofeed.Feed
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		var err error
		feed, err = c.fetch(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", c.feed.URL, err)
	}

	entries := feed.Items
	if len(entries) > c.max {
		entries = entries[:c.max]
	}

	items := make([]news.Item, 0, len(entries))
	for _, e := range entries {
		title := normalize.CleanText(e.Title)
		if e.Link == "" || title == "" {
			continue
		}

		raw := e.Published
		if raw == "" {
			raw = e.Updated
		}
		ts := normalize.ParseTime(raw)
		c.tracer.Trace(collect.Trace{Source: c.feed.Name, Title: title, URL: e.Link, Published: ts})

		items = append(items, news.Item{
			Source:       c.feed.Name,
			URL:          e.Link,
			Title:        title,
			PublishedISO: ts.KST,
			Summary:      normalize.CleanText(e.Description),
		})
	}
	c.log.Debug("feed parsed", "source", c.feed.Name, "entries", len(feed.Items), "kept", len(items))
	return items, nil
}

func (c *Collector) fetch(ctx context.Context) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feed.URL, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", c.ua)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("HTTP error: %s", resp.Status)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	feed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("parse feed: %w", err))
	}
	return feed, nil
}
