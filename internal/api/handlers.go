package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// notePath extracts the note path from the URL (everything after /api/notes/).
// Supports encoded slashes (e.g. journal%2F2020-01-01.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// searchRequest reads q, tag and order. tag may repeat or hold a
// comma-separated list.
func searchRequest(r *http.Request) (noteservice.SearchRequest, string) {
	q := r.URL.Query()
	var tags []string
	for _, v := range q["tag"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	order := q.Get("order")
	if order == "" {
		order = "relevance"
	}
	return noteservice.SearchRequest{
		Query:  q.Get("q"),
		Tags:   tags,
		ByDate: order == "date",
	}, order
}

// writeError maps domain errors onto status codes.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrQuery):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrIndexMissing):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("index not built"))
	case errors.Is(err, apperr.ErrIndexLocked):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("index is busy"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// Search handles GET /api/search.
//
//	@Summary		Search notes
//	@Tags			search
//	@Produce		json,plain
//	@Param			q		query		string	false	"Query string"
//	@Param			tag		query		string	false	"Tag filter (repeatable)"
//	@Param			order	query		string	false	"Ordering"	Enums(relevance, date)
//	@Param			format	query		string	false	"Response format"	Enums(json, text)
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	req, order := searchRequest(r)
	if order != "date" && order != "relevance" {
		writeJSON(w, http.StatusBadRequest, errorBody("order must be date or relevance"))
		return
	}

	if r.URL.Query().Get("format") == "text" {
		lines, err := h.svc.Outline(r.Context(), req)
		if err != nil {
			writeError(w, "search", err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(strings.Join(lines, "\n") + "\n"))
		return
	}

	res, err := h.svc.Search(r.Context(), req)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	resp := SearchResponse{
		Query:   req.Query,
		Tags:    req.Tags,
		Order:   order,
		Matches: res.Matches,
		Total:   res.Returned,
	}
	if resp.Matches == nil {
		resp.Matches = []SearchMatch{}
	}
	for _, f := range res.Failures {
		resp.Failures = append(resp.Failures, RenderFailure{Rank: f.Rank, DocID: f.DocID, Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Tags handles GET /api/tags.
//
//	@Summary		List tags across matching notes
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	false	"Query string"
//	@Param			tag	query		string	false	"Tag filter (repeatable)"
//	@Success		200	{object}	TagsResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	req, _ := searchRequest(r)
	tags, err := h.svc.Tags(r.Context(), req)
	if err != nil {
		writeError(w, "tags", err)
		return
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

// Sync handles POST /api/sync.
//
//	@Summary		Bring the index up to date with the vault
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	SyncResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Sync(r.Context())
	if err != nil {
		writeError(w, "sync", err)
		return
	}
	writeJSON(w, http.StatusOK, newSyncResponse(report))
}

// Failures handles GET /api/failures.
//
//	@Summary		List notes whose last index attempt failed
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	FailuresResponse
//	@Security		BearerAuth
//	@Router			/failures [get]
func (h *Handler) Failures(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Failures(r.Context())
	if err != nil {
		writeError(w, "failures", err)
		return
	}
	writeJSON(w, http.StatusOK, newFailuresResponse(entries))
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a single note by vault path
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), path)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}
