// Package naver collects candidate items from the Naver news search API,
// one query per configured keyword, newest first.
package naver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/deusflow/incidentfeed/internal/collect"
	"github.com/deusflow/incidentfeed/internal/news"
	"github.com/deusflow/incidentfeed/internal/normalize"
	"github.com/deusflow/incidentfeed/internal/retry"
)

const (
	DefaultEndpoint = "https://openapi.naver.com/v1/search/news.json"
	SourceName      = "네이버뉴스"
	// Display is the page size requested per keyword (API maximum is 100).
	Display = 50
)

type Options struct {
	ClientID     string
	ClientSecret string
	Keywords     []string
	Endpoint     string
	HTTPClient   *http.Client
	// QPS paces keyword queries. Zero or less means unlimited.
	QPS    float64
	Retry  retry.Config
	Tracer collect.Tracer
	Logger *slog.Logger
}

// Collector queries the search API once per keyword.
type Collector struct {
	id, secret string
	keywords   []string
	endpoint   string
	client     *http.Client
	limiter    *rate.Limiter
	retry      retry.Config
	tracer     collect.Tracer
	log        *slog.Logger
}

// New returns nil when credentials are missing; the source is then
// simply not configured.
func New(opts Options) *Collector {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil
	}
	c := &Collector{
		id:       opts.ClientID,
		secret:   opts.ClientSecret,
		keywords: opts.Keywords,
		endpoint: opts.Endpoint,
		client:   opts.HTTPClient,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		retry:    opts.Retry,
		tracer:   opts.Tracer,
		log:      opts.Logger,
	}
	if opts.QPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.QPS), 1)
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 30 * time.Second}
	}
	if c.tracer == nil {
		c.tracer = collect.NopTracer{}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

func (c *Collector) Name() string { return SourceName }

// Collect runs every keyword query. A failing keyword is logged and
// skipped; Collect only fails when every keyword failed.
func (c *Collector) Collect(ctx context.Context) ([]news.Item, error) {
	var (
		items []news.Item
		errs  []error
	)
	for _, kw := range c.keywords {
		got, err := c.search(ctx, kw)
		if err != nil {
			if ctx.Err() != nil {
				return items, ctx.Err()
			}
			c.log.Warn("naver keyword failed", "keyword", kw, "error", err)
			errs = append(errs, fmt.Errorf("keyword %q: %w", kw, err))
			continue
		}
		c.log.Debug("naver keyword", "keyword", kw, "items", len(got))
		items = append(items, got...)
	}
	if len(c.keywords) > 0 && len(errs) == len(c.keywords) {
		return nil, errors.Join(errs...)
	}
	return items, nil
}

type searchResponse struct {
	Total int          `json:"total"`
	Items []searchItem `json:"items"`
}

type searchItem struct {
	Title        string `json:"title"`
	OriginalLink string `json:"originallink"`
	Link         string `json:"link"`
	Description  string `json:"description"`
	PubDate      string `json:"pubDate"`
}

func (c *Collector) search(ctx context.Context, keyword string) ([]news.Item, error) {
	var res searchResponse
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(fmt.Errorf("rate limiter: %w", err))
		}
		return c.query(ctx, keyword, &res)
	})
	if err != nil {
		return nil, err
	}

	items := make([]news.Item, 0, len(res.Items))
	for _, it := range res.Items {
		title := normalize.CleanText(it.Title)
		link := it.OriginalLink
		if link == "" {
			link = it.Link
		}
		if link == "" || title == "" {
			continue
		}

		ts := normalize.ParseTime(it.PubDate)
		c.tracer.Trace(collect.Trace{Source: SourceName, Keyword: keyword, Title: title, URL: link, Published: ts})

		items = append(items, news.Item{
			Source:       SourceName,
			URL:          link,
			Title:        title,
			PublishedISO: ts.KST,
			Summary:      normalize.CleanText(it.Description),
		})
	}
	return items, nil
}

func (c *Collector) query(ctx context.Context, keyword string, out *searchResponse) error {
	q := url.Values{}
	q.Set("query", keyword)
	q.Set("display", strconv.Itoa(Display))
	q.Set("start", "1")
	q.Set("sort", "date")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("X-Naver-Client-Id", c.id)
	req.Header.Set("X-Naver-Client-Secret", c.secret)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return err
		}
		return retry.Permanent(err)
	}

	*out = searchResponse{}
	if err := json.Unmarshal(body, out); err != nil {
		return retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
