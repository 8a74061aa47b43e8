// Package notion talks to the Notion API (data-source flavour, 2025-09-03)
// and exposes a Collection that the reconciler uses as its remote store.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL   = "https://api.notion.com"
	DefaultVersion   = "2025-09-03"
	DefaultUserAgent = "IncidentDashboard/1.0 (+local)"
)

// Config holds connection settings. Headers are fixed at construction.
type Config struct {
	Token      string
	Version    string
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is a thin JSON client for the endpoints this program uses.
type Client struct {
	http      *http.Client
	baseURL   string
	token     string
	version   string
	userAgent string
}

// NewClient builds a Client, filling unset fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		http:      hc,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		version:   cfg.Version,
		userAgent: cfg.UserAgent,
	}
}

// Database is the subset of a database object we read.
type Database struct {
	ID          string          `json:"id"`
	DataSources []DataSourceRef `json:"data_sources"`
}

// DataSourceRef points at one data source of a database.
type DataSourceRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DataSource is the subset of a data source object we read.
type DataSource struct {
	ID         string                    `json:"id"`
	Properties map[string]PropertySchema `json:"properties"`
}

// PropertySchema describes one property of a data source.
type PropertySchema struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryRequest is the body of a data source query.
type QueryRequest struct {
	PageSize int `json:"page_size,omitempty"`
	Filter   any `json:"filter,omitempty"`
}

// QueryResponse is a page of query results.
type QueryResponse struct {
	Results    []Page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// Page is the subset of a page object we read.
type Page struct {
	ID string `json:"id"`
}

// Properties is a page property payload keyed by property name.
type Properties map[string]any

// RetrieveDatabase fetches a database by id.
func (c *Client) RetrieveDatabase(ctx context.Context, id string) (*Database, error) {
	var db Database
	if err := c.do(ctx, http.MethodGet, "/v1/databases/"+id, nil, &db); err != nil {
		return nil, err
	}
	return &db, nil
}

// RetrieveDataSource fetches a data source, including its property schema.
func (c *Client) RetrieveDataSource(ctx context.Context, id string) (*DataSource, error) {
	var ds DataSource
	if err := c.do(ctx, http.MethodGet, "/v1/data_sources/"+id, nil, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// QueryDataSource runs a filtered query against a data source.
func (c *Client) QueryDataSource(ctx context.Context, id string, req QueryRequest) (*QueryResponse, error) {
	var res QueryResponse
	if err := c.do(ctx, http.MethodPost, "/v1/data_sources/"+id+"/query", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CreatePage creates a page under a data source.
func (c *Client) CreatePage(ctx context.Context, dataSourceID string, props Properties) (*Page, error) {
	payload := map[string]any{
		"parent":     map[string]string{"type": "data_source_id", "data_source_id": dataSourceID},
		"properties": props,
	}
	var page Page
	if err := c.do(ctx, http.MethodPost, "/v1/pages", payload, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UpdatePage overwrites the given properties of a page.
func (c *Client) UpdatePage(ctx context.Context, pageID string, props Properties) (*Page, error) {
	var page Page
	if err := c.do(ctx, http.MethodPatch, "/v1/pages/"+pageID, map[string]any{"properties": props}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("notion: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("notion: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("notion: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("notion: read %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("notion: decode %s %s: %w", method, path, err)
	}
	return nil
}
