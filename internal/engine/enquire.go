package engine

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"

	"github.com/starford/laguz/internal/apperr"
)

// Match is one ranked result.
type Match struct {
	// Rank is the 0-based position in the full ordering.
	Rank   int
	DocID  DocID
	Weight float64
	Data   []byte
}

// MSet is a page of results.
type MSet struct {
	Items []Match
	// Total counts every match, not just this page.
	Total int
}

// Enquire runs a query against a database.
type Enquire struct {
	db          *Database
	query       Query
	byValue     bool
	sortSlot    int
	sortReverse bool
}

// Enquire returns a session with relevance ordering and no query.
func (db *Database) Enquire() *Enquire {
	return &Enquire{db: db}
}

func (e *Enquire) SetQuery(q Query) { e.query = q }

// SetSortByRelevance orders by weight, highest first.
func (e *Enquire) SetSortByRelevance() {
	e.byValue = false
}

// SetSortByValueThenRelevance orders by the value in slot (descending when
// reverse is set), then by weight.
func (e *Enquire) SetSortByValueThenRelevance(slot int, reverse bool) {
	e.byValue = true
	e.sortSlot = slot
	e.sortReverse = reverse
}

func (e *Enquire) sortOrder() []string {
	if !e.byValue {
		return []string{"-_score", fieldDocID}
	}
	key := slotField(e.sortSlot)
	if e.sortReverse {
		key = "-" + key
	}
	return []string{key, "-_score", fieldDocID}
}

// GetMSet returns up to maxItems matches starting at rank first. Equal keys
// keep ascending document order. The page, its data and the total all come
// from one search over a single index snapshot.
func (e *Enquire) GetMSet(ctx context.Context, first, maxItems int) (*MSet, error) {
	if e.query == nil {
		return &MSet{}, nil
	}
	if first < 0 || maxItems < 0 {
		return nil, fmt.Errorf("%w: invalid page %d+%d", apperr.ErrEngine, first, maxItems)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequestOptions(e.query.compile(), maxItems, first, false)
	req.Fields = []string{fieldDocID, fieldData}
	req.SortBy(e.sortOrder())
	res, err := e.db.idx.SearchInContext(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: search %s: %v", apperr.ErrEngine, e.query, err)
	}

	ms := &MSet{Total: int(res.Total)}
	for i, h := range res.Hits {
		id, err := parseDocID(h.Fields[fieldDocID])
		if err != nil {
			return nil, fmt.Errorf("%w: document %s: %v", apperr.ErrEngine, h.ID, err)
		}
		ms.Items = append(ms.Items, Match{
			Rank:   first + i,
			DocID:  id,
			Weight: h.Score,
			Data:   []byte(storedString(h.Fields[fieldData])),
		})
	}
	return ms, nil
}
