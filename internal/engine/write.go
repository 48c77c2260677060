package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/starford/laguz/internal/apperr"
)

func (db *Database) writable() error {
	if db.mode != ModeCreateOrOpen {
		return fmt.Errorf("%w: database opened read-only", apperr.ErrEngine)
	}
	return nil
}

func (db *Database) checkText(doc *Document) error {
	for _, p := range doc.order {
		if _, ok := db.text[p]; !ok {
			return fmt.Errorf("%w: no text field for prefix %q", apperr.ErrEngine, p)
		}
	}
	return nil
}

// nextDocID reads the docid counter; ids are never reused.
func (db *Database) nextDocID() (DocID, error) {
	v, err := db.idx.GetInternal([]byte(internalNextDocID))
	if err != nil {
		return 0, fmt.Errorf("%w: read docid counter: %v", apperr.ErrEngine, err)
	}
	if v == nil {
		return 1, nil
	}
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: docid counter %q: %v", apperr.ErrEngine, v, err)
	}
	return DocID(n), nil
}

// ReplaceDocument stores doc under uniqueTerm in one batch. The first
// document already indexed by uniqueTerm keeps its docid and any others
// are deleted, so the term identifies at most one document after every
// call. The unique term is added to doc when missing.
func (db *Database) ReplaceDocument(ctx context.Context, uniqueTerm string, doc *Document) (DocID, error) {
	if err := db.writable(); err != nil {
		return 0, err
	}
	if uniqueTerm == "" {
		return 0, fmt.Errorf("%w: empty unique term", apperr.ErrEngine)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := db.checkText(doc); err != nil {
		return 0, err
	}
	doc.AddBooleanTerm(uniqueTerm)

	holders, err := db.lookup(ctx, keywordQuery(fieldTerms, uniqueTerm))
	if err != nil {
		return 0, err
	}

	b := db.idx.NewBatch()
	var id DocID
	if len(holders) == 0 {
		if id, err = db.nextDocID(); err != nil {
			return 0, err
		}
		b.SetInternal([]byte(internalNextDocID), []byte(strconv.FormatInt(int64(id)+1, 10)))
	} else {
		id = holders[0].id
		for _, h := range holders {
			if h.key != uniqueTerm {
				b.Delete(h.key)
			}
		}
	}
	if err := b.Index(uniqueTerm, doc.fields(id)); err != nil {
		return 0, fmt.Errorf("%w: index document %d: %v", apperr.ErrEngine, id, err)
	}
	if err := db.idx.Batch(b); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", apperr.ErrEngine, err)
	}
	return id, nil
}

// DeleteDocument removes every document indexed by uniqueTerm and returns
// how many were removed.
func (db *Database) DeleteDocument(ctx context.Context, uniqueTerm string) (int, error) {
	if err := db.writable(); err != nil {
		return 0, err
	}
	holders, err := db.lookup(ctx, keywordQuery(fieldTerms, uniqueTerm))
	if err != nil {
		return 0, err
	}
	if err := db.deleteHits(holders); err != nil {
		return 0, err
	}
	return len(holders), nil
}

// DeleteDocID removes a single document by id.
func (db *Database) DeleteDocID(ctx context.Context, id DocID) error {
	if err := db.writable(); err != nil {
		return err
	}
	hits, err := db.lookup(ctx, keywordQuery(fieldDocID, docIDKey(id)))
	if err != nil {
		return err
	}
	return db.deleteHits(hits)
}

func (db *Database) deleteHits(hits []hit) error {
	if len(hits) == 0 {
		return nil
	}
	b := db.idx.NewBatch()
	for _, h := range hits {
		b.Delete(h.key)
	}
	if err := db.idx.Batch(b); err != nil {
		return fmt.Errorf("%w: commit: %v", apperr.ErrEngine, err)
	}
	return nil
}
