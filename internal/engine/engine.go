// Package engine is a small term-based search engine on top of a bleve
// scorch index.
//
// Documents carry prefixed free-text fields, boolean terms, numbered value
// slots and an opaque data blob. A document is replaced atomically by a
// unique term, queries are trees of term lookups and combinators compiled
// to bleve queries, and matches are ranked by bleve's tf-idf score or
// sorted by a value slot.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/index/scorch"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/starford/laguz/internal/apperr"
)

// Mode selects how a database is opened.
type Mode int

const (
	// ModeRead opens an existing database read-only.
	ModeRead Mode = iota
	// ModeCreateOrOpen opens for writing, creating the database if needed.
	// Only one writer may hold a database at a time.
	ModeCreateOrOpen
)

func (m Mode) String() string {
	if m == ModeCreateOrOpen {
		return "create-or-open"
	}
	return "read"
}

// DocID is the engine-internal document number.
type DocID int64

// LockTimeout bounds how long a writer waits for another writer to finish,
// and how long a reader waits for an open writer to let go of the index.
var LockTimeout = 5 * time.Second

// SettingVersion is the settings key holding the schema version.
const SettingVersion = "schema_version"

// Options describe an index. Text and Slots shape the field mapping of a
// new index; an existing index keeps the mapping it was created with.
// Settings are recorded on creation and every later open must match them.
type Options struct {
	// Text lists free-text prefixes; "" is the unprefixed stream.
	Text     []string
	Slots    []int
	Settings map[string]string
}

const (
	internalNextDocID = "engine:next_docid"
	internalSetting   = "engine:setting:"
)

// Database is an open handle. Close must be called on every path.
type Database struct {
	idx  bleve.Index
	path string
	mode Mode
	lock *fileLock
	text map[string]struct{}
}

// Open opens the index directory at path.
func Open(path string, mode Mode, opts Options) (*Database, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty database path", apperr.ErrEngine)
	}
	if opts.Settings[SettingVersion] == "" {
		return nil, fmt.Errorf("%w: no %s setting", apperr.ErrEngine, SettingVersion)
	}

	var lock *fileLock
	switch mode {
	case ModeRead:
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", apperr.ErrIndexMissing, path)
			}
			return nil, fmt.Errorf("%w: stat %s: %v", apperr.ErrEngine, path, err)
		}
	case ModeCreateOrOpen:
		l, err := acquireLock(path+".lock", LockTimeout)
		if err != nil {
			return nil, err
		}
		lock = l
	default:
		return nil, fmt.Errorf("%w: unknown mode %d", apperr.ErrEngine, mode)
	}

	db, err := open(path, mode, opts)
	if err != nil {
		if lock != nil {
			_ = lock.release()
		}
		return nil, err
	}
	db.lock = lock
	return db, nil
}

func open(path string, mode Mode, opts Options) (*Database, error) {
	runtime := map[string]interface{}{
		"bolt_timeout": LockTimeout.String(),
	}
	if mode == ModeRead {
		runtime["read_only"] = true
	}

	created := false
	idx, err := bleve.OpenUsing(path, runtime)
	switch {
	case err == nil:
	case mode == ModeRead && (errors.Is(err, bleve.ErrorIndexPathDoesNotExist) || errors.Is(err, bleve.ErrorIndexMetaMissing)):
		return nil, fmt.Errorf("%w: %s", apperr.ErrIndexMissing, path)
	case mode == ModeCreateOrOpen && errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
		m, merr := newIndexMapping(opts)
		if merr != nil {
			return nil, merr
		}
		idx, err = bleve.NewUsing(path, m, scorch.Name, scorch.Name, runtime)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", apperr.ErrEngine, path, err)
		}
		created = true
	default:
		return nil, fmt.Errorf("%w: open %s: %v", apperr.ErrEngine, path, err)
	}

	db := &Database{idx: idx, path: path, mode: mode, text: make(map[string]struct{})}
	for _, p := range opts.Text {
		db.text[p] = struct{}{}
	}
	if err := db.checkSettings(opts.Settings, created); err != nil {
		idx.Close()
		return nil, err
	}
	return db, nil
}

// checkSettings records settings on a new index and compares them on an
// existing one. A key the index has never seen is recorded by writers and
// ignored by readers, except the schema version which must be present.
func (db *Database) checkSettings(settings map[string]string, created bool) error {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var (
		record   []string
		mismatch []string
	)
	for _, k := range keys {
		if created {
			record = append(record, k)
			continue
		}
		stored, err := db.idx.GetInternal([]byte(internalSetting + k))
		if err != nil {
			return fmt.Errorf("%w: read setting %s: %v", apperr.ErrEngine, k, err)
		}
		switch {
		case stored == nil && k == SettingVersion:
			if db.mode == ModeRead {
				return fmt.Errorf("%w: %s has no schema version", apperr.ErrIndexMissing, db.path)
			}
			record = append(record, k)
		case stored == nil:
			if db.mode == ModeCreateOrOpen {
				record = append(record, k)
			}
		case string(stored) != settings[k]:
			mismatch = append(mismatch, fmt.Sprintf("%s is %q, want %q", k, stored, settings[k]))
		}
	}
	if len(mismatch) > 0 {
		return fmt.Errorf("%w: index %s: %s; rebuild the index", apperr.ErrSchemaMismatch, db.path, strings.Join(mismatch, ", "))
	}
	if len(record) == 0 {
		return nil
	}
	b := db.idx.NewBatch()
	for _, k := range record {
		b.SetInternal([]byte(internalSetting+k), []byte(settings[k]))
	}
	if err := db.idx.Batch(b); err != nil {
		return fmt.Errorf("%w: record settings: %v", apperr.ErrEngine, err)
	}
	return nil
}

// Setting returns a recorded setting, or "" when unset.
func (db *Database) Setting(key string) (string, error) {
	v, err := db.idx.GetInternal([]byte(internalSetting + key))
	if err != nil {
		return "", fmt.Errorf("%w: read setting %s: %v", apperr.ErrEngine, key, err)
	}
	return string(v), nil
}

// Path returns the database path.
func (db *Database) Path() string { return db.path }

// Mode returns the mode the database was opened with.
func (db *Database) Mode() Mode { return db.mode }

// Close closes the index and releases the writer lock.
func (db *Database) Close() error {
	err := db.idx.Close()
	if db.lock != nil {
		if lerr := db.lock.release(); err == nil {
			err = lerr
		}
		db.lock = nil
	}
	return err
}

// DocCount returns the number of stored documents.
func (db *Database) DocCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := db.idx.DocCount()
	if err != nil {
		return 0, fmt.Errorf("%w: doc count: %v", apperr.ErrEngine, err)
	}
	return int(n), nil
}

// hit is one document found by a lookup.
type hit struct {
	key    string
	id     DocID
	fields map[string]interface{}
}

// lookup runs q and returns every hit in ascending docid order, with the
// named stored fields loaded.
func (db *Database) lookup(ctx context.Context, q query.Query, fields ...string) ([]hit, error) {
	n, err := db.idx.DocCount()
	if err != nil {
		return nil, fmt.Errorf("%w: doc count: %v", apperr.ErrEngine, err)
	}
	req := bleve.NewSearchRequestOptions(q, int(n), 0, false)
	req.Fields = append([]string{fieldDocID}, fields...)
	req.SortBy([]string{fieldDocID})
	res, err := db.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup: %v", apperr.ErrEngine, err)
	}
	out := make([]hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := parseDocID(h.Fields[fieldDocID])
		if err != nil {
			return nil, fmt.Errorf("%w: document %s: %v", apperr.ErrEngine, h.ID, err)
		}
		out = append(out, hit{key: h.ID, id: id, fields: h.Fields})
	}
	return out, nil
}

func parseDocID(v interface{}) (DocID, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("no docid")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return DocID(n), nil
}

func storedString(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case []interface{}:
		if len(v) > 0 {
			s, _ := v[0].(string)
			return s
		}
	}
	return ""
}

// Data returns the stored data blob of a document.
func (db *Database) Data(ctx context.Context, id DocID) ([]byte, error) {
	hits, err := db.lookup(ctx, keywordQuery(fieldDocID, docIDKey(id)), fieldData)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("document %d: %w", id, apperr.ErrNotFound)
	}
	return []byte(storedString(hits[0].fields[fieldData])), nil
}

// Values returns every document's value in slot.
func (db *Database) Values(ctx context.Context, slot int) (map[DocID]string, error) {
	field := slotField(slot)
	hits, err := db.lookup(ctx, bleve.NewMatchAllQuery(), field)
	if err != nil {
		return nil, err
	}
	out := make(map[DocID]string, len(hits))
	for _, h := range hits {
		if v, ok := h.fields[field]; ok {
			out[h.id] = storedString(v)
		}
	}
	return out, nil
}

// TermList returns the distinct boolean terms starting with prefix, sorted.
// Only terms still carried by a live document are listed.
func (db *Database) TermList(ctx context.Context, prefix string) ([]string, error) {
	dict, err := db.idx.FieldDictPrefix(fieldTerms, []byte(prefix))
	if err != nil {
		return nil, fmt.Errorf("%w: term list %q: %v", apperr.ErrEngine, prefix, err)
	}
	var candidates []string
	for {
		entry, err := dict.Next()
		if err != nil {
			dict.Close()
			return nil, fmt.Errorf("%w: term list %q: %v", apperr.ErrEngine, prefix, err)
		}
		if entry == nil {
			break
		}
		candidates = append(candidates, entry.Term)
	}
	if err := dict.Close(); err != nil {
		return nil, fmt.Errorf("%w: term list %q: %v", apperr.ErrEngine, prefix, err)
	}

	// Dictionaries may still list terms of deleted documents until segments
	// merge.
	var out []string
	for _, t := range candidates {
		n, err := db.TermFreq(ctx, t)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out, nil
}

// DocIDs returns the documents carrying boolean term, ascending.
func (db *Database) DocIDs(ctx context.Context, term string) ([]DocID, error) {
	hits, err := db.lookup(ctx, keywordQuery(fieldTerms, term))
	if err != nil {
		return nil, err
	}
	ids := make([]DocID, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	return ids, nil
}

// TermFreq returns how many documents carry boolean term.
func (db *Database) TermFreq(ctx context.Context, term string) (int, error) {
	req := bleve.NewSearchRequestOptions(keywordQuery(fieldTerms, term), 0, 0, false)
	res, err := db.idx.SearchInContext(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("%w: term freq %q: %v", apperr.ErrEngine, term, err)
	}
	return int(res.Total), nil
}

func keywordQuery(field, term string) query.Query {
	q := bleve.NewTermQuery(term)
	q.SetField(field)
	return q
}
