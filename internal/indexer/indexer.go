// Package indexer turns notes into engine documents and keeps the index in
// step with the vault.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/checksum"
	"github.com/starford/laguz/internal/dates"
	"github.com/starford/laguz/internal/engine"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/parser"
	"github.com/starford/laguz/internal/schema"
	"github.com/starford/laguz/internal/storage"
)

// Identity selects what makes two notes the same document.
type Identity string

const (
	// IdentityPath keys notes by their vault path.
	IdentityPath Identity = "path"
	// IdentityDate keys notes by their normalised publish date. Two notes
	// with the same timestamp overwrite each other.
	IdentityDate Identity = "date"
)

// Settings stored in the index next to the schema version.
const (
	SettingIdentity = "identity"
	SettingStemmer  = "stemmer"
)

// Options tune document construction.
type Options struct {
	Identity Identity
	Stemming bool
	Defaults models.Defaults
}

// Settings returns the index settings these options depend on. Reopening
// an index under different settings fails until it is rebuilt.
func (o Options) Settings() map[string]string {
	id := o.Identity
	if id == "" {
		id = IdentityPath
	}
	stemmer := "none"
	if o.Stemming {
		stemmer = "english"
	}
	return map[string]string{SettingIdentity: string(id), SettingStemmer: stemmer}
}

// EngineOptions returns what engine.Open needs to open an index written
// by an indexer with opts.
func EngineOptions(sch *schema.Schema, opts Options) engine.Options {
	return sch.EngineOptions(opts.Settings())
}

// Source describes where a note came from.
type Source struct {
	Path     string
	Checksum string
}

// Indexer writes notes into an engine database opened for writing. It does
// not own the database.
type Indexer struct {
	db     *engine.Database
	store  storage.Provider
	schema *schema.Schema
	opts   Options
	logger *slog.Logger
}

// New returns an indexer writing to db and reading notes from store.
func New(db *engine.Database, store storage.Provider, sch *schema.Schema, opts Options, logger *slog.Logger) (*Indexer, error) {
	if opts.Identity == "" {
		opts.Identity = IdentityPath
	}
	if opts.Identity != IdentityPath && opts.Identity != IdentityDate {
		return nil, fmt.Errorf("indexer: unknown identity %q", opts.Identity)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{db: db, store: store, schema: sch, opts: opts, logger: logger}, nil
}

// IdentityKey returns the key a note is stored under.
func (ix *Indexer) IdentityKey(n models.NoteRecord, src Source) string {
	if ix.opts.Identity == IdentityDate {
		if n.Date.IsZero() {
			return ""
		}
		return n.Date.UTC().Format(time.RFC3339)
	}
	if src.Path != "" {
		return src.Path
	}
	return n.Filename
}

// BuildDocument projects a note into an engine document and returns it with
// its unique identity term.
func (ix *Indexer) BuildDocument(n models.NoteRecord, src Source) (*engine.Document, string, error) {
	if n.Date.IsZero() {
		return nil, "", fmt.Errorf("%w: %s has no date", apperr.ErrDateParse, src.Path)
	}
	key := ix.IdentityKey(n, src)
	if key == "" {
		return nil, "", fmt.Errorf("indexer: note has no identity")
	}
	n.ID = key
	xdate := dates.Sortable(n.Date)

	doc := engine.NewDocument()
	doc.SetStemming(ix.opts.Stemming)

	p := ix.schema.Prefix
	doc.AddText(p(schema.FieldAuthor), n.Author)
	doc.AddText(p(schema.FieldDate), xdate)
	doc.AddText(p(schema.FieldFilename), n.Filename)
	doc.AddText(p(schema.FieldTitle), n.Title)
	doc.AddText(p(schema.FieldSubtitle), n.Subtitle)
	for _, tag := range n.Tags {
		doc.AddText(p(schema.FieldTag), tag)
	}
	doc.AddText(p(schema.FieldCategory), n.Category)

	doc.AddValue(schema.SlotDate, xdate)
	if src.Path != "" {
		doc.AddValue(schema.SlotPath, src.Path)
		doc.AddBooleanTerm(ix.schema.PathTerm(src.Path))
	}
	if src.Checksum != "" {
		doc.AddValue(schema.SlotChecksum, src.Checksum)
	}

	// Cross-field stream, one segment per field value.
	doc.AddText("", n.Title)
	doc.AddText("", n.Subtitle)
	for _, tag := range n.Tags {
		doc.AddText("", tag)
	}
	doc.AddText("", n.Body)

	for _, tag := range n.Tags {
		if term := ix.schema.TagTerm(tag); term != p(schema.FieldTagged) {
			doc.AddBooleanTerm(term)
		}
	}
	idTerm := ix.schema.IdentityTerm(key)
	doc.AddBooleanTerm(idTerm)

	payload, err := models.EncodePayload(n)
	if err != nil {
		return nil, "", fmt.Errorf("indexer: encode payload: %w", err)
	}
	doc.SetData(payload)
	return doc, idTerm, nil
}

// Upsert stores n, replacing any earlier document with the same identity.
// Under date identity, a document left behind by the same path under an
// older date is removed too.
func (ix *Indexer) Upsert(ctx context.Context, n models.NoteRecord, src Source) (engine.DocID, error) {
	doc, idTerm, err := ix.BuildDocument(n, src)
	if err != nil {
		return 0, err
	}
	if ix.opts.Identity == IdentityDate && src.Path != "" {
		if err := ix.dropMoved(ctx, src.Path, idTerm); err != nil {
			return 0, err
		}
	}
	id, err := ix.db.ReplaceDocument(ctx, idTerm, doc)
	if err != nil {
		return 0, fmt.Errorf("indexer: upsert %s: %w", idTerm, err)
	}
	return id, nil
}

func (ix *Indexer) dropMoved(ctx context.Context, path, idTerm string) error {
	byPath, err := ix.db.DocIDs(ctx, ix.schema.PathTerm(path))
	if err != nil || len(byPath) == 0 {
		return err
	}
	byID, err := ix.db.DocIDs(ctx, idTerm)
	if err != nil {
		return err
	}
	keep := make(map[engine.DocID]struct{}, len(byID))
	for _, id := range byID {
		keep[id] = struct{}{}
	}
	for _, id := range byPath {
		if _, ok := keep[id]; ok {
			continue
		}
		if err := ix.db.DeleteDocID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Load reads and extracts one vault file into a note.
func (ix *Indexer) Load(rel string) (models.NoteRecord, Source, error) {
	data, err := ix.store.Read(rel)
	if err != nil {
		return models.NoteRecord{}, Source{}, err
	}
	src := Source{Path: rel, Checksum: checksum.Sum(data)}
	res, err := parser.Extract(data)
	if err != nil {
		return models.NoteRecord{}, src, err
	}
	n, err := models.NewNoteRecord(res.Fields, res.Body, rel, ix.opts.Defaults)
	if err != nil {
		return models.NoteRecord{}, src, err
	}
	return n, src, nil
}

// IndexFile extracts and upserts one vault file. Errors surface directly.
// A file that no longer indexes loses the document it had.
func (ix *Indexer) IndexFile(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ix.indexOne(ctx, rel); err != nil {
		return fmt.Errorf("%s: %w", rel, err)
	}
	return nil
}

func (ix *Indexer) indexOne(ctx context.Context, rel string) error {
	n, src, err := ix.Load(rel)
	if err == nil {
		_, err = ix.Upsert(ctx, n, src)
	}
	if err == nil || ctx.Err() != nil {
		return err
	}
	return ix.dropStale(ctx, rel, err)
}

// dropStale removes the document of a file that failed to index and
// returns cause.
func (ix *Indexer) dropStale(ctx context.Context, rel string, cause error) error {
	removed, err := ix.Remove(ctx, rel)
	if err != nil {
		return errors.Join(cause, err)
	}
	if removed > 0 {
		ix.logger.Info("index: dropped stale document",
			slog.String("path", rel),
			slog.String("error", cause.Error()))
	}
	return cause
}

// Remove deletes the document indexed from rel.
func (ix *Indexer) Remove(ctx context.Context, rel string) (int, error) {
	n, err := ix.db.DeleteDocument(ctx, ix.schema.PathTerm(rel))
	if err != nil {
		return 0, fmt.Errorf("indexer: remove %s: %w", rel, err)
	}
	return n, nil
}

// Kind names the failure class of a batch error for reports.
func Kind(err error) string {
	switch {
	case errors.Is(err, apperr.ErrDateParse):
		return "date"
	case errors.Is(err, apperr.ErrExtraction):
		return "extraction"
	case errors.Is(err, apperr.ErrEngine):
		return "engine"
	default:
		return "io"
	}
}
