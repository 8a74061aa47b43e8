// Package normalize turns the raw strings collectors receive into the
// canonical text and timestamps stored on records.
package normalize

import (
	"html"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

// Seoul is the zone naive timestamps are assumed to be in. Korean outlets
// and the Naver API publish local time.
var Seoul = loadSeoul()

func loadSeoul() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

// CleanText decodes entities, then strips markup and collapses whitespace.
// Markup that arrives entity-escaped is removed like literal markup.
func CleanText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	s = html.UnescapeString(s)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapse(s)
	}
	doc.Find("script, style").Remove()
	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Timestamp is a published time as received and as rendered for storage.
// UTC and KST are empty when Raw could not be parsed.
type Timestamp struct {
	Raw string
	UTC string
	KST string
}

// Valid reports whether Raw was understood.
func (ts Timestamp) Valid() bool { return ts.KST != "" }

// ParseTime accepts any common date layout. Times without a zone are read
// as Asia/Seoul.
func ParseTime(raw string) Timestamp {
	ts := Timestamp{Raw: raw}
	if strings.TrimSpace(raw) == "" {
		return ts
	}
	t, err := dateparse.ParseIn(strings.TrimSpace(raw), Seoul)
	if err != nil {
		return ts
	}
	ts.UTC = t.UTC().Format(time.RFC3339)
	ts.KST = t.In(Seoul).Format(time.RFC3339)
	return ts
}
