// Package news holds the canonical candidate item produced by collectors,
// its identity fingerprint and the batch-level dedup applied before sync.
package news

import (
	"strings"
	"time"
)

// Item is one candidate article produced by a collector.
type Item struct {
	Source       string
	URL          string
	Title        string
	PublishedISO string // empty when the published time is unknown
	Summary      string
}

// Key identifies an item inside a single batch.
type Key struct {
	Source string
	URL    string
}

// Key returns the (source, url) pair used for batch dedup.
func (it Item) Key() Key {
	return Key{Source: it.Source, URL: it.URL}
}

// Valid reports whether the item carries the fields every record needs.
func (it Item) Valid() bool {
	return strings.TrimSpace(it.URL) != "" && strings.TrimSpace(it.Title) != ""
}

// Prepare drops malformed items and collapses duplicates by (source, url).
// A later item with the same key replaces the earlier one but keeps the
// position where the key was first seen.
func Prepare(items []Item) []Item {
	index := make(map[Key]int, len(items))
	out := make([]Item, 0, len(items))

	for _, it := range items {
		if !it.Valid() {
			continue
		}
		k := it.Key()
		if i, dup := index[k]; dup {
			out[i] = it
			continue
		}
		index[k] = len(out)
		out = append(out, it)
	}
	return out
}

// Record is the store-neutral payload a remote record is written from.
type Record struct {
	Title        string
	Source       string
	URL          string
	IngestedAt   time.Time
	Fingerprint  string
	PublishedISO string
	Summary      string
}

// NewRecord builds the payload for an item synced at ingestedAt.
func NewRecord(it Item, fingerprint string, ingestedAt time.Time) Record {
	return Record{
		Title:        it.Title,
		Source:       it.Source,
		URL:          it.URL,
		IngestedAt:   ingestedAt,
		Fingerprint:  fingerprint,
		PublishedISO: it.PublishedISO,
		Summary:      it.Summary,
	}
}
