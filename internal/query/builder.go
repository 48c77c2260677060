// Package query composes user input into engine queries.
package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/laguz/internal/engine"
	"github.com/starford/laguz/internal/schema"
)

// Builder turns free text, a tag set and a sort mode into one engine query.
// Its parser prefixes come from the same schema the indexer writes with.
type Builder struct {
	schema *schema.Schema
	parser *engine.QueryParser
}

// NewBuilder returns a builder. loc places date-range bounds that carry no
// offset.
func NewBuilder(sch *schema.Schema, stemming bool, loc *time.Location) (*Builder, error) {
	p, err := engine.NewQueryParser()
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	p.SetStemming(stemming)
	for _, f := range sch.Fields() {
		switch {
		case f.Kind == schema.Free:
			p.AddPrefix(f.Name, f.Prefix)
		case f.Name == schema.FieldTagged:
			p.AddBooleanPrefix(f.Name, f.Prefix, schema.NormalizeBoolean)
		default:
			p.AddBooleanPrefix(f.Name, f.Prefix, nil)
		}
	}
	p.AddRangeProcessor(engine.DateRangeProcessor{Slot: schema.SlotDate, Location: loc})
	return &Builder{schema: sch, parser: p}, nil
}

// Built is a composed query plus its ordering.
type Built struct {
	Query      engine.Query
	SortByDate bool
}

func (b *Built) String() string {
	order := "relevance"
	if b.SortByDate {
		order = "date"
	}
	return b.Query.String() + " by " + order
}

// Apply sets the query and ordering on enq. Date order is newest first,
// ties broken by relevance.
func (b *Built) Apply(enq *engine.Enquire) {
	enq.SetQuery(b.Query)
	if b.SortByDate {
		enq.SetSortByValueThenRelevance(schema.SlotDate, true)
	} else {
		enq.SetSortByRelevance()
	}
}

// Build composes the query. Empty free text matches everything. A tag set
// admits documents carrying any of the tags without touching their weight.
func (b *Builder) Build(freeText string, tags []string, orderByDate bool) (*Built, error) {
	var q engine.Query
	if strings.TrimSpace(freeText) == "" {
		q = engine.NewMatchAll()
	} else {
		parsed, err := b.parser.Parse(freeText)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		q = parsed
	}

	if terms := b.tagTerms(tags); len(terms) > 0 {
		q = engine.NewFilter(q, engine.NewOr(terms...))
	}
	return &Built{Query: q, SortByDate: orderByDate}, nil
}

func (b *Builder) tagTerms(tags []string) []engine.Query {
	seen := make(map[string]struct{}, len(tags))
	out := make([]engine.Query, 0, len(tags))
	for _, tag := range tags {
		if schema.NormalizeBoolean(tag) == "" {
			continue
		}
		term := b.schema.TagTerm(tag)
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, engine.NewBooleanTerm(term))
	}
	return out
}
