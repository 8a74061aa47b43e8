package notion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/incidentfeed/internal/news"
)

const articlesSchema = `{
	"id": "ds-1",
	"properties": {
		"Name": {"id": "title", "name": "Name", "type": "title"},
		"Source": {"id": "a", "name": "Source", "type": "select"},
		"URL": {"id": "b", "name": "URL", "type": "url"},
		"Ingested At": {"id": "c", "name": "Ingested At", "type": "date"},
		"Fingerprint": {"id": "d", "name": "Fingerprint", "type": "rich_text"},
		"Published At": {"id": "e", "name": "Published At", "type": "date"},
		"Summary": {"id": "f", "name": "Summary", "type": "rich_text"}
	}
}`

type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]any
}

// fakeNotion serves the endpoints Collection uses and records every request.
type fakeNotion struct {
	t        *testing.T
	schema   string
	database string
	query    func(body map[string]any) (int, string)
	create   func(body map[string]any) (int, string)
	update   func(id string, body map[string]any) (int, string)
	requests []recordedRequest
}

func (f *fakeNotion) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	if len(raw) > 0 {
		assert.NoError(f.t, json.Unmarshal(raw, &body))
	}
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: body})

	status, resp := http.StatusNotFound, `{"object":"error","code":"object_not_found","message":"not found"}`
	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/databases/"):
		status, resp = http.StatusOK, f.database
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/data_sources/"):
		status, resp = http.StatusOK, f.schema
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/query"):
		status, resp = f.query(body)
	case r.Method == http.MethodPost && r.URL.Path == "/v1/pages":
		status, resp = f.create(body)
	case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/v1/pages/"):
		status, resp = f.update(strings.TrimPrefix(r.URL.Path, "/v1/pages/"), body)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(resp))
}

func newFakeNotion(t *testing.T) (*fakeNotion, *Client) {
	t.Helper()
	f := &fakeNotion{
		t:        t,
		schema:   articlesSchema,
		database: `{"id":"db-1","data_sources":[{"id":"ds-1","name":"Articles"}]}`,
		query:    func(map[string]any) (int, string) { return http.StatusOK, `{"results":[]}` },
		create:   func(map[string]any) (int, string) { return http.StatusOK, `{"id":"page-new"}` },
		update:   func(id string, _ map[string]any) (int, string) { return http.StatusOK, `{"id":"` + id + `"}` },
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, NewClient(Config{Token: "secret", BaseURL: srv.URL})
}

func testRecord() news.Record {
	return news.Record{
		Title:       "랜섬웨어 공격",
		Source:      "보안뉴스",
		URL:         "http://www.boannews.com/a",
		IngestedAt:  time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC),
		Fingerprint: "fp-1",
	}
}

func TestDiscover(t *testing.T) {
	f, c := newFakeNotion(t)

	col, err := Discover(context.Background(), c, "db-1")

	require.NoError(t, err)
	assert.Equal(t, "ds-1", col.DataSourceID)
	assert.Equal(t, "Articles", col.Name)
	assert.Equal(t, "Name", col.TitleProperty)

	require.Len(t, f.requests, 2)
	assert.Equal(t, "/v1/databases/db-1", f.requests[0].Path)
	assert.Equal(t, "/v1/data_sources/ds-1", f.requests[1].Path)
	assert.Equal(t, "Bearer secret", f.requests[0].Header.Get("Authorization"))
	assert.Equal(t, DefaultVersion, f.requests[0].Header.Get("Notion-Version"))
	assert.Equal(t, DefaultUserAgent, f.requests[0].Header.Get("User-Agent"))
}

func TestDiscover_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name     string
		database string
		schema   string
		want     error
	}{
		{
			name:     "no data sources",
			database: `{"id":"db-1","data_sources":[]}`,
			schema:   articlesSchema,
			want:     ErrNoDataSource,
		},
		{
			name:     "no title property",
			database: `{"id":"db-1","data_sources":[{"id":"ds-1"}]}`,
			schema:   `{"properties":{"Source":{"type":"select"},"URL":{"type":"url"},"Ingested At":{"type":"date"},"Fingerprint":{"type":"rich_text"}}}`,
			want:     ErrNoTitleProperty,
		},
		{
			name:     "missing fingerprint property",
			database: `{"id":"db-1","data_sources":[{"id":"ds-1"}]}`,
			schema:   `{"properties":{"Name":{"type":"title"},"Source":{"type":"select"},"URL":{"type":"url"},"Ingested At":{"type":"date"}}}`,
			want:     ErrMissingProperty,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, c := newFakeNotion(t)
			f.database = tt.database
			f.schema = tt.schema

			_, err := Discover(context.Background(), c, "db-1")

			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDiscover_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"object":"error","status":401,"code":"unauthorized","message":"API token is invalid."}`))
	}))
	defer srv.Close()
	c := NewClient(Config{Token: "bad", BaseURL: srv.URL})

	_, err := Discover(context.Background(), c, "db-1")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "unauthorized", apiErr.Code)
	assert.Contains(t, apiErr.Body, "API token is invalid.")
}

func TestFindRecord(t *testing.T) {
	f, c := newFakeNotion(t)
	col, err := Discover(context.Background(), c, "db-1")
	require.NoError(t, err)

	f.query = func(body map[string]any) (int, string) {
		return http.StatusOK, `{"results":[{"id":"page-1"},{"id":"page-dup"}]}`
	}

	id, found, err := col.FindRecord(context.Background(), "fp-1")

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "page-1", id)

	last := f.requests[len(f.requests)-1]
	assert.Equal(t, "/v1/data_sources/ds-1/query", last.Path)
	assert.EqualValues(t, 1, last.Body["page_size"])
	assert.Equal(t, map[string]any{
		"property":  "Fingerprint",
		"rich_text": map[string]any{"equals": "fp-1"},
	}, last.Body["filter"])
}

func TestFindRecord_NotFound(t *testing.T) {
	_, c := newFakeNotion(t)
	col, err := Discover(context.Background(), c, "db-1")
	require.NoError(t, err)

	id, found, err := col.FindRecord(context.Background(), "fp-1")

	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, id)
}

func TestCreateRecord(t *testing.T) {
	f, c := newFakeNotion(t)
	col, err := Discover(context.Background(), c, "db-1")
	require.NoError(t, err)

	id, err := col.CreateRecord(context.Background(), testRecord())

	require.NoError(t, err)
	assert.Equal(t, "page-new", id)

	last := f.requests[len(f.requests)-1]
	assert.Equal(t, map[string]any{"type": "data_source_id", "data_source_id": "ds-1"}, last.Body["parent"])
	props := last.Body["properties"].(map[string]any)
	assert.Contains(t, props, "Name")
	assert.Contains(t, props, "Fingerprint")
	assert.NotContains(t, props, "Published At")
	assert.NotContains(t, props, "Summary")
}

func TestUpdateRecord_PropagatesServerError(t *testing.T) {
	f, c := newFakeNotion(t)
	col, err := Discover(context.Background(), c, "db-1")
	require.NoError(t, err)

	f.update = func(string, map[string]any) (int, string) {
		return http.StatusBadGateway, `upstream down`
	}

	err = col.UpdateRecord(context.Background(), "page-1", testRecord())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream down", apiErr.Body)
	assert.Equal(t, http.MethodPatch, f.requests[len(f.requests)-1].Method)
	assert.Equal(t, "/v1/pages/page-1", f.requests[len(f.requests)-1].Path)
}

func TestBuildProperties(t *testing.T) {
	rec := testRecord()
	rec.PublishedISO = "2025-09-03T09:00:00+09:00"
	rec.Summary = strings.Repeat("가", SummaryMaxRunes+50)

	props := BuildProperties("Name", rec)

	assert.Equal(t, map[string]any{"title": richText("랜섬웨어 공격")}, props["Name"])
	assert.Equal(t, map[string]any{"select": map[string]string{"name": "보안뉴스"}}, props[PropSource])
	assert.Equal(t, map[string]any{"url": "http://www.boannews.com/a"}, props[PropURL])
	assert.Equal(t, map[string]any{"date": map[string]string{"start": "2025-09-03T00:00:00Z"}}, props[PropIngestedAt])
	assert.Equal(t, map[string]any{"rich_text": richText("fp-1")}, props[PropFingerprint])
	assert.Equal(t, map[string]any{"date": map[string]string{"start": "2025-09-03T09:00:00+09:00"}}, props[PropPublishedAt])

	summary := props[PropSummary].(map[string]any)["rich_text"].([]map[string]any)[0]["text"].(map[string]string)["content"]
	assert.Equal(t, SummaryMaxRunes, len([]rune(summary)))
}

func TestBuildProperties_OmitsOptionalFields(t *testing.T) {
	props := BuildProperties("Title", testRecord())

	assert.Len(t, props, 5)
	assert.NotContains(t, props, PropPublishedAt)
	assert.NotContains(t, props, PropSummary)
}

func TestCollectionProperties_DropsUndefinedOptional(t *testing.T) {
	col := &Collection{
		TitleProperty: "Name",
		schema: map[string]PropertySchema{
			"Name": {Type: "title"}, PropSource: {}, PropURL: {}, PropIngestedAt: {}, PropFingerprint: {},
		},
	}
	rec := testRecord()
	rec.PublishedISO = "2025-09-03T09:00:00+09:00"
	rec.Summary = "요약"

	props := col.Properties(rec)

	assert.NotContains(t, props, PropPublishedAt)
	assert.NotContains(t, props, PropSummary)
	assert.Contains(t, props, PropFingerprint)
}

func TestTitleProperty(t *testing.T) {
	props := map[string]PropertySchema{}
	props["제목"] = PropertySchema{Type: "title"}
	props["URL"] = PropertySchema{Type: "url"}

	name, err := TitleProperty(props)
	require.NoError(t, err)
	assert.Equal(t, "제목", name)

	_, err = TitleProperty(map[string]PropertySchema{"URL": {Type: "url"}})
	assert.ErrorIs(t, err, ErrNoTitleProperty)
}
