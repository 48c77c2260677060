package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/dates"
)

// EncodePayload serialises the record for storage alongside its document.
func EncodePayload(n NoteRecord) ([]byte, error) {
	if n.Tags == nil {
		n.Tags = []string{}
	}
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("models: encode payload: %w", err)
	}
	return data, nil
}

// DecodePayload reads a stored payload back. Fields of the wrong shape or
// missing altogether become empty values; only an undecodable blob or an
// unusable date is an error.
func DecodePayload(data []byte) (NoteRecord, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return NoteRecord{}, fmt.Errorf("%w: decode payload: %v", apperr.ErrRender, err)
	}

	n := NoteRecord{
		ID:       stringField(m, "id"),
		Title:    stringField(m, "title"),
		Subtitle: stringField(m, "subtitle"),
		Author:   stringField(m, "author"),
		Filename: stringField(m, "filename"),
		Category: stringField(m, "category"),
		Tags:     NormalizeTags(m["tags"]),
	}
	if extra, ok := m["extra"].(map[string]any); ok && len(extra) > 0 {
		n.Extra = extra
	}

	raw, _ := m["date"].(string)
	if raw == "" {
		return n, fmt.Errorf("%w: payload has no date", apperr.ErrRender)
	}
	date, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		if date, err = dates.Parse(raw, time.UTC); err != nil {
			return n, fmt.Errorf("%w: payload date: %v", apperr.ErrRender, err)
		}
	}
	n.Date = date
	return n, nil
}
