package api

import (
	"time"

	"github.com/starford/laguz/internal/indexer"
	"github.com/starford/laguz/internal/journal"
	"github.com/starford/laguz/internal/noteservice"
	"github.com/starford/laguz/internal/outline"
)

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// SearchMatch is a single decoded hit.
type SearchMatch = outline.MatchResult

// RenderFailure is a hit whose stored payload could not be decoded.
type RenderFailure struct {
	Rank  int    `json:"rank" example:"3" validate:"required"`
	DocID int64  `json:"docid" example:"42" validate:"required"`
	Error string `json:"error" validate:"required"`
}

// SearchResponse wraps structured search results.
type SearchResponse struct {
	Query    string          `json:"query" example:"title:walking"`
	Tags     []string        `json:"tags"`
	Order    string          `json:"order" example:"date" validate:"required"`
	Matches  []SearchMatch   `json:"matches" validate:"required"`
	Failures []RenderFailure `json:"failures,omitempty"`
	Total    int             `json:"total" example:"2" validate:"required"`
}

// TagsResponse lists the tags across a query's matches.
type TagsResponse struct {
	Tags []string `json:"tags" validate:"required"`
}

// FailureDTO is one file a batch could not index.
type FailureDTO struct {
	Path  string `json:"path" example:"journal/2020-01-01.md" validate:"required"`
	Kind  string `json:"kind" example:"date" validate:"required"`
	Error string `json:"error" validate:"required"`
}

// SyncResponse summarises a sync run.
type SyncResponse struct {
	Indexed  int          `json:"indexed" example:"12" validate:"required"`
	Skipped  int          `json:"skipped" example:"300" validate:"required"`
	Removed  int          `json:"removed" example:"1" validate:"required"`
	Failures []FailureDTO `json:"failures"`
}

func newSyncResponse(r *indexer.Report) SyncResponse {
	out := SyncResponse{
		Indexed:  r.Indexed,
		Skipped:  r.Skipped,
		Removed:  r.Removed,
		Failures: make([]FailureDTO, 0, len(r.Failures)),
	}
	for _, f := range r.Failures {
		out.Failures = append(out.Failures, FailureDTO{Path: f.Path, Kind: indexer.Kind(f.Err), Error: f.Err.Error()})
	}
	return out
}

// JournalFailureDTO is a file whose last index attempt failed.
type JournalFailureDTO struct {
	FailureDTO
	UpdatedAt time.Time `json:"updated_at" validate:"required"`
}

// FailuresResponse lists the files still failing to index.
type FailuresResponse struct {
	Failures []JournalFailureDTO `json:"failures" validate:"required"`
}

func newFailuresResponse(entries []journal.Entry) FailuresResponse {
	out := FailuresResponse{Failures: make([]JournalFailureDTO, 0, len(entries))}
	for _, e := range entries {
		out.Failures = append(out.Failures, JournalFailureDTO{
			FailureDTO: FailureDTO{Path: e.Path, Kind: e.Kind, Error: e.Message},
			UpdatedAt:  e.UpdatedAt,
		})
	}
	return out
}
