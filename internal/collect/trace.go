package collect

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/deusflow/incidentfeed/internal/normalize"
)

// Trace describes how one collected item's published time was read.
type Trace struct {
	Source    string
	Keyword   string
	Title     string
	URL       string
	Published normalize.Timestamp
}

// Tracer receives a Trace for every item a collector keeps.
type Tracer interface {
	Trace(t Trace)
}

// NopTracer discards traces.
type NopTracer struct{}

func (NopTracer) Trace(Trace) {}

type traceLine struct {
	Source          string  `json:"source"`
	Keyword         string  `json:"keyword,omitempty"`
	Title           string  `json:"title"`
	URL             string  `json:"url"`
	PubRaw          *string `json:"pub_raw"`
	PubUTC          *string `json:"pub_utc"`
	PubKST          *string `json:"pub_kst"`
	ChosenForNotion *string `json:"chosen_for_notion"`
}

// FileTracer appends one JSON object per trace to a file.
type FileTracer struct {
	mu   sync.Mutex
	f    *os.File
	werr error
}

// NewFileTracer opens path for appending, creating it if needed.
func NewFileTracer(path string) (*FileTracer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file %s: %w", path, err)
	}
	return &FileTracer{f: f}, nil
}

func (ft *FileTracer) Trace(t Trace) {
	line := traceLine{
		Source:          t.Source,
		Keyword:         t.Keyword,
		Title:           t.Title,
		URL:             t.URL,
		PubRaw:          nullable(t.Published.Raw),
		PubUTC:          nullable(t.Published.UTC),
		PubKST:          nullable(t.Published.KST),
		ChosenForNotion: nullable(t.Published.KST),
	}
	ft.write(line)
}

func (ft *FileTracer) write(v any) {
	buf, err := json.Marshal(v)

	ft.mu.Lock()
	defer ft.mu.Unlock()
	if err == nil {
		_, err = ft.f.Write(append(buf, '\n'))
	}
	if err != nil && ft.werr == nil {
		ft.werr = fmt.Errorf("write trace: %w", err)
	}
}

// Close closes the file and reports the first encode or write error, if any.
func (ft *FileTracer) Close() error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if err := ft.f.Close(); err != nil {
		return err
	}
	return ft.werr
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
