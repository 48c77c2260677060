// Package models defines the note archive's domain types.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/dates"
)

// NoteRecord is one note as extracted from disk. Body is indexed but never
// serialised into the stored payload.
type NoteRecord struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Subtitle string         `json:"subtitle"`
	Author   string         `json:"author"`
	Filename string         `json:"filename"`
	Tags     []string       `json:"tags"`
	Date     time.Time      `json:"date"`
	Category string         `json:"category,omitempty"`
	Body     string         `json:"-"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// NoteMetadata is a lightweight representation returned by vault listings.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Defaults fill gaps in front matter.
type Defaults struct {
	Location *time.Location
	Author   string
}

var knownFields = map[string]struct{}{
	"id": {}, "title": {}, "subtitle": {}, "author": {}, "filename": {},
	"tags": {}, "date": {}, "category": {},
}

// NewNoteRecord normalises extracted front matter into a NoteRecord. A missing
// or unparsable date is returned as an apperr.ErrDateParse error.
func NewNoteRecord(fields map[string]any, body, filename string, def Defaults) (NoteRecord, error) {
	date, err := dates.ParseValue(fields["date"], def.Location)
	if err != nil {
		return NoteRecord{}, err
	}
	n := NoteRecord{
		Title:    stringField(fields, "title"),
		Subtitle: stringField(fields, "subtitle"),
		Author:   stringField(fields, "author"),
		Filename: filename,
		Tags:     NormalizeTags(fields["tags"]),
		Date:     date,
		Category: stringField(fields, "category"),
		Body:     body,
	}
	if n.Author == "" {
		n.Author = def.Author
	}
	for k, v := range fields {
		if _, ok := knownFields[k]; ok {
			continue
		}
		if n.Extra == nil {
			n.Extra = make(map[string]any)
		}
		n.Extra[k] = v
	}
	if n.Extra != nil {
		if n.Extra, err = normalizeExtra(n.Extra); err != nil {
			return NoteRecord{}, err
		}
	}
	return n, nil
}

// normalizeExtra gives extra fields the shapes a stored payload decodes
// to: numbers become float64 and dates RFC 3339 strings.
func normalizeExtra(extra map[string]any) (map[string]any, error) {
	data, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("%w: extra fields: %v", apperr.ErrExtraction, err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: extra fields: %v", apperr.ErrExtraction, err)
	}
	return out, nil
}

// NormalizeTags turns a scalar or list tag value into an ordered set.
// Duplicates are detected case-insensitively; the first spelling wins.
func NormalizeTags(v any) []string {
	var raw []string
	switch t := v.(type) {
	case nil:
	case string:
		raw = []string{t}
	case []string:
		raw = t
	case []any:
		for _, item := range t {
			if item == nil {
				continue
			}
			raw = append(raw, fmt.Sprint(item))
		}
	default:
		raw = []string{fmt.Sprint(t)}
	}

	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// HasTag reports whether the record carries tag, ignoring case.
func (n NoteRecord) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if strings.EqualFold(t, strings.TrimSpace(tag)) {
			return true
		}
	}
	return false
}

func stringField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case time.Time:
		return s.Format(time.RFC3339)
	default:
		return fmt.Sprint(s)
	}
}
