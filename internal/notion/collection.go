package notion

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/deusflow/incidentfeed/internal/news"
)

// Property names in the articles data source.
const (
	PropSource      = "Source"
	PropURL         = "URL"
	PropIngestedAt  = "Ingested At"
	PropFingerprint = "Fingerprint"
	PropPublishedAt = "Published At"
	PropSummary     = "Summary"
)

// SummaryMaxRunes keeps rich_text under the API's 2000 character limit.
const SummaryMaxRunes = 1900

var requiredProps = []string{PropSource, PropURL, PropIngestedAt, PropFingerprint}

// Collection is the articles data source: the remote store records are
// looked up in and written to.
type Collection struct {
	client        *Client
	DataSourceID  string
	Name          string
	TitleProperty string
	schema        map[string]PropertySchema
}

// Discover resolves the first data source of databaseID, reads its schema
// and checks the properties records are written to. Every error here is a
// configuration problem and should stop the run.
func Discover(ctx context.Context, c *Client, databaseID string) (*Collection, error) {
	db, err := c.RetrieveDatabase(ctx, databaseID)
	if err != nil {
		return nil, fmt.Errorf("retrieve database %s: %w", databaseID, err)
	}
	if len(db.DataSources) == 0 {
		return nil, fmt.Errorf("database %s: %w", databaseID, ErrNoDataSource)
	}
	ref := db.DataSources[0]

	ds, err := c.RetrieveDataSource(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("retrieve data source %s: %w", ref.ID, err)
	}

	title, err := TitleProperty(ds.Properties)
	if err != nil {
		return nil, fmt.Errorf("data source %s: %w", ref.ID, err)
	}
	for _, name := range requiredProps {
		if _, ok := ds.Properties[name]; !ok {
			return nil, fmt.Errorf("data source %s: %w: %q", ref.ID, ErrMissingProperty, name)
		}
	}

	return &Collection{
		client:        c,
		DataSourceID:  ref.ID,
		Name:          ref.Name,
		TitleProperty: title,
		schema:        ds.Properties,
	}, nil
}

// TitleProperty returns the name of the property of type "title".
func TitleProperty(props map[string]PropertySchema) (string, error) {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if props[name].Type == "title" {
			return name, nil
		}
	}
	return "", ErrNoTitleProperty
}

// FindRecord returns the id of the first page whose Fingerprint equals fp.
// Extra matches (manual duplicates) are ignored.
func (c *Collection) FindRecord(ctx context.Context, fp string) (string, bool, error) {
	res, err := c.client.QueryDataSource(ctx, c.DataSourceID, QueryRequest{
		PageSize: 1,
		Filter: map[string]any{
			"property":  PropFingerprint,
			"rich_text": map[string]string{"equals": fp},
		},
	})
	if err != nil {
		return "", false, err
	}
	if len(res.Results) == 0 || res.Results[0].ID == "" {
		return "", false, nil
	}
	return res.Results[0].ID, true, nil
}

// CreateRecord creates a page for rec and returns its id.
func (c *Collection) CreateRecord(ctx context.Context, rec news.Record) (string, error) {
	page, err := c.client.CreatePage(ctx, c.DataSourceID, c.Properties(rec))
	if err != nil {
		return "", err
	}
	if page.ID == "" {
		return "", fmt.Errorf("notion: create page returned no id")
	}
	return page.ID, nil
}

// UpdateRecord overwrites the properties of page id with rec.
func (c *Collection) UpdateRecord(ctx context.Context, id string, rec news.Record) error {
	_, err := c.client.UpdatePage(ctx, id, c.Properties(rec))
	return err
}

// Properties builds the payload for rec, leaving out optional properties
// this data source does not define.
func (c *Collection) Properties(rec news.Record) Properties {
	props := BuildProperties(c.TitleProperty, rec)
	for _, name := range []string{PropPublishedAt, PropSummary} {
		if _, ok := c.schema[name]; !ok {
			delete(props, name)
		}
	}
	return props
}

// BuildProperties renders rec as a Notion property map. Published At is
// omitted when unknown and Summary when empty; Summary is cut to
// SummaryMaxRunes.
func BuildProperties(titleProperty string, rec news.Record) Properties {
	props := Properties{
		titleProperty:   map[string]any{"title": richText(rec.Title)},
		PropSource:      map[string]any{"select": map[string]string{"name": rec.Source}},
		PropURL:         map[string]any{"url": rec.URL},
		PropIngestedAt:  map[string]any{"date": map[string]string{"start": rec.IngestedAt.Format(time.RFC3339)}},
		PropFingerprint: map[string]any{"rich_text": richText(rec.Fingerprint)},
	}
	if rec.PublishedISO != "" {
		props[PropPublishedAt] = map[string]any{"date": map[string]string{"start": rec.PublishedISO}}
	}
	if rec.Summary != "" {
		props[PropSummary] = map[string]any{"rich_text": richText(truncateRunes(rec.Summary, SummaryMaxRunes))}
	}
	return props
}

func richText(content string) []map[string]any {
	return []map[string]any{{
		"type": "text",
		"text": map[string]string{"content": content},
	}}
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
