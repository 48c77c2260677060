// Package noteservice coordinates the vault, the index and queries for the
// CLI, HTTP and MCP surfaces. Every call opens its own engine handle and
// releases it before returning.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/checksum"
	"github.com/starford/laguz/internal/engine"
	"github.com/starford/laguz/internal/indexer"
	"github.com/starford/laguz/internal/journal"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/outline"
	"github.com/starford/laguz/internal/parser"
	"github.com/starford/laguz/internal/query"
	"github.com/starford/laguz/internal/schema"
	"github.com/starford/laguz/internal/storage"
)

// Options configure a Service.
type Options struct {
	IndexPath string
	// JournalPath holds the per-file outcomes of index runs. It defaults
	// to IndexPath with a ".journal" suffix.
	JournalPath string
	PageSize    int
	// Location places query date bounds that carry no offset.
	Location *time.Location
	Indexer  indexer.Options
}

// SearchRequest is one query as entered by a user.
type SearchRequest struct {
	Query  string   `json:"query"`
	Tags   []string `json:"tags"`
	ByDate bool     `json:"by_date"`
}

func (r SearchRequest) header() outline.Header {
	return outline.Header{Query: r.Query, Tags: r.Tags, ByDate: r.ByDate}
}

// NoteDetail is a single note as read from the vault.
type NoteDetail struct {
	Record   models.NoteRecord `json:"record"`
	Content  string            `json:"content"`
	Checksum string            `json:"checksum"`
}

// Service coordinates storage and index operations.
type Service struct {
	store   storage.Provider
	schema  *schema.Schema
	builder *query.Builder
	opts    Options
	logger  *slog.Logger
}

// NewService creates a new note service.
func NewService(store storage.Provider, opts Options, logger *slog.Logger) (*Service, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Indexer.Defaults.Location == nil {
		opts.Indexer.Defaults.Location = opts.Location
	}
	if opts.JournalPath == "" {
		opts.JournalPath = opts.IndexPath + ".journal"
	}
	if logger == nil {
		logger = slog.Default()
	}
	sch := schema.Notes()
	b, err := query.NewBuilder(sch, opts.Indexer.Stemming, opts.Location)
	if err != nil {
		return nil, fmt.Errorf("noteservice: %w", err)
	}
	return &Service{store: store, schema: sch, builder: b, opts: opts, logger: logger}, nil
}

// Store returns the vault provider.
func (s *Service) Store() storage.Provider { return s.store }

func (s *Service) withReader(fn func(db *engine.Database) error) error {
	db, err := engine.Open(s.opts.IndexPath, engine.ModeRead, indexer.EngineOptions(s.schema, s.opts.Indexer))
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func (s *Service) withWriter(fn func(ix *indexer.Indexer) error) error {
	db, err := engine.Open(s.opts.IndexPath, engine.ModeCreateOrOpen, indexer.EngineOptions(s.schema, s.opts.Indexer))
	if err != nil {
		return err
	}
	defer db.Close()
	ix, err := indexer.New(db, s.store, s.schema, s.opts.Indexer, s.logger)
	if err != nil {
		return err
	}
	return fn(ix)
}

func (s *Service) build(req SearchRequest) (*query.Built, error) {
	return s.builder.Build(req.Query, req.Tags, req.ByDate)
}

// Outline runs req and renders it as outline lines.
func (s *Service) Outline(ctx context.Context, req SearchRequest) ([]string, error) {
	built, err := s.build(req)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("search", slog.String("query", built.String()))
	var lines []string
	err = s.withReader(func(db *engine.Database) error {
		lines, err = outline.New(db, s.opts.PageSize, s.logger).Run(ctx, built, req.header())
		return err
	})
	return lines, err
}

// Search runs req and returns structured matches.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*outline.Result, error) {
	built, err := s.build(req)
	if err != nil {
		return nil, err
	}
	var res *outline.Result
	err = s.withReader(func(db *engine.Database) error {
		res, err = outline.New(db, s.opts.PageSize, s.logger).Matches(ctx, built)
		return err
	})
	return res, err
}

// Tags returns the sorted tags across req's matches.
func (s *Service) Tags(ctx context.Context, req SearchRequest) ([]string, error) {
	built, err := s.build(req)
	if err != nil {
		return nil, err
	}
	var tags []string
	err = s.withReader(func(db *engine.Database) error {
		tags, err = outline.New(db, s.opts.PageSize, s.logger).Tags(ctx, built)
		return err
	})
	return tags, err
}

// Count returns the number of indexed documents.
func (s *Service) Count(ctx context.Context) (int, error) {
	var n int
	err := s.withReader(func(db *engine.Database) error {
		var err error
		n, err = db.DocCount(ctx)
		return err
	})
	return n, err
}

// IndexTree indexes every note under dir.
func (s *Service) IndexTree(ctx context.Context, dir string) (*indexer.Report, error) {
	var report *indexer.Report
	err := s.withWriter(func(ix *indexer.Indexer) error {
		var err error
		report, err = ix.IndexTree(ctx, dir)
		s.journalReport(ctx, report)
		return err
	})
	return report, err
}

// Sync brings the index up to date with the vault.
func (s *Service) Sync(ctx context.Context) (*indexer.Report, error) {
	var report *indexer.Report
	err := s.withWriter(func(ix *indexer.Indexer) error {
		var err error
		report, err = ix.Sync(ctx)
		s.journalReport(ctx, report)
		return err
	})
	return report, err
}

// IndexFile indexes one vault file.
func (s *Service) IndexFile(ctx context.Context, rel string) error {
	return s.withWriter(func(ix *indexer.Indexer) error {
		err := ix.IndexFile(ctx, rel)
		if ctx.Err() == nil {
			s.record(ctx, []journal.Entry{entry(rel, err)}, nil)
		}
		return err
	})
}

// Remove drops the document indexed from rel.
func (s *Service) Remove(ctx context.Context, rel string) (int, error) {
	var n int
	err := s.withWriter(func(ix *indexer.Indexer) error {
		var err error
		n, err = ix.Remove(ctx, rel)
		if err == nil {
			s.record(ctx, nil, []string{rel})
		}
		return err
	})
	return n, err
}

// Failures lists the files whose last index attempt failed.
func (s *Service) Failures(ctx context.Context) ([]journal.Entry, error) {
	j, err := journal.Open(s.opts.JournalPath)
	if err != nil {
		return nil, err
	}
	defer j.Close()
	return j.Failures(ctx)
}

func entry(rel string, err error) journal.Entry {
	if err == nil {
		return journal.Entry{Path: rel, Status: journal.StatusIndexed}
	}
	return journal.Entry{Path: rel, Status: journal.StatusFailed, Kind: indexer.Kind(err), Message: err.Error()}
}

func (s *Service) journalReport(ctx context.Context, r *indexer.Report) {
	if r == nil {
		return
	}
	entries := make([]journal.Entry, 0, len(r.Stored)+len(r.Failures))
	for _, p := range r.Stored {
		entries = append(entries, entry(p, nil))
	}
	for _, f := range r.Failures {
		entries = append(entries, entry(f.Path, f.Err))
	}
	s.record(ctx, entries, r.Pruned)
}

// record stores outcomes in the journal. The journal is advisory: its own failures are
// logged, never returned.
func (s *Service) record(ctx context.Context, entries []journal.Entry, forget []string) {
	if len(entries) == 0 && len(forget) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	j, err := journal.Open(s.opts.JournalPath)
	if err != nil {
		s.logger.Warn("journal: open failed", slog.String("error", err.Error()))
		return
	}
	defer j.Close()
	if err := j.Record(ctx, entries); err != nil {
		s.logger.Warn("journal: record failed", slog.String("error", err.Error()))
	}
	if err := j.Forget(ctx, forget...); err != nil {
		s.logger.Warn("journal: forget failed", slog.String("error", err.Error()))
	}
}

// GetNote reads and extracts one note from the vault.
func (s *Service) GetNote(_ context.Context, rel string) (*NoteDetail, error) {
	data, err := s.store.Read(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	res, err := parser.Extract(data)
	if err != nil {
		return nil, err
	}
	n, err := models.NewNoteRecord(res.Fields, res.Body, rel, s.opts.Indexer.Defaults)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{Record: n, Content: string(data), Checksum: checksum.Sum(data)}, nil
}

// WriteOutline stores rendered lines at rel inside the vault.
func (s *Service) WriteOutline(rel string, lines []string) error {
	return s.store.Write(rel, []byte(strings.Join(lines, "\n")+"\n"))
}
