package engine

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Query is a node of a query tree. Build trees with the New* constructors.
type Query interface {
	// String describes the tree; it is stable and used in tests and logs.
	String() string
	compile() query.Query
}

// MatchAll matches every document.
type MatchAll struct{}

// MatchNothing matches no document.
type MatchNothing struct{}

// Term matches documents whose free text contains Name, a word written with
// its field prefix ("Sbig") and StemPrefix when it is a stem ("ZSbig").
type Term struct {
	Name string
}

// BooleanTerm matches documents carrying Name as a boolean term. It never
// contributes weight.
type BooleanTerm struct {
	Name string
}

// Phrase matches documents where Terms occur at consecutive positions of
// one segment. All terms share one prefix.
type Phrase struct {
	Terms []string
}

// And matches documents matched by every subquery; weights add.
type And struct {
	Subqueries []Query
}

// Or matches documents matched by any subquery; weights add.
type Or struct {
	Subqueries []Query
}

// AndNot matches Left minus anything matched by Right.
type AndNot struct {
	Left, Right Query
}

// AndMaybe matches Left; Right only adds weight where it also matches.
type AndMaybe struct {
	Left, Right Query
}

// Filter matches Scored restricted to documents matched by By. By never
// contributes weight.
type Filter struct {
	Scored Query
	By     Query
}

// ValueRange matches documents whose value in Slot lies in [Begin, End],
// compared as strings. An empty bound is open.
type ValueRange struct {
	Slot       int
	Begin, End string
}

// Native wraps a bleve query the parser produced directly, such as a
// wildcard or fuzzy match.
type Native struct {
	Desc  string
	Query query.Query
}

func NewMatchAll() Query     { return &MatchAll{} }
func NewMatchNothing() Query { return &MatchNothing{} }

func NewTerm(name string) Query        { return &Term{Name: name} }
func NewBooleanTerm(name string) Query { return &BooleanTerm{Name: name} }

// NewPhrase returns a Phrase, or a Term for a single word.
func NewPhrase(terms ...string) Query {
	switch len(terms) {
	case 0:
		return NewMatchNothing()
	case 1:
		return NewTerm(terms[0])
	}
	return &Phrase{Terms: terms}
}

// NewAnd combines subqueries; nil entries are skipped.
func NewAnd(qs ...Query) Query {
	qs = compact(qs)
	switch len(qs) {
	case 0:
		return NewMatchNothing()
	case 1:
		return qs[0]
	}
	return &And{Subqueries: qs}
}

// NewOr combines subqueries; nil entries are skipped.
func NewOr(qs ...Query) Query {
	qs = compact(qs)
	switch len(qs) {
	case 0:
		return NewMatchNothing()
	case 1:
		return qs[0]
	}
	return &Or{Subqueries: qs}
}

func NewAndNot(left, right Query) Query {
	if right == nil {
		return left
	}
	return &AndNot{Left: left, Right: right}
}

func NewAndMaybe(left, right Query) Query {
	if right == nil {
		return left
	}
	return &AndMaybe{Left: left, Right: right}
}

func NewFilter(scored, by Query) Query {
	if by == nil {
		return scored
	}
	return &Filter{Scored: scored, By: by}
}

func NewValueRange(slot int, begin, end string) Query {
	return &ValueRange{Slot: slot, Begin: begin, End: end}
}

func compact(qs []Query) []Query {
	out := qs[:0:0]
	for _, q := range qs {
		if q != nil {
			out = append(out, q)
		}
	}
	return out
}

func (*MatchAll) String() string      { return "<alldocuments>" }
func (*MatchNothing) String() string  { return "<nothing>" }
func (q *Term) String() string        { return q.Name }
func (q *BooleanTerm) String() string { return q.Name }
func (q *Phrase) String() string      { return "(" + strings.Join(q.Terms, " PHRASE ") + ")" }
func (q *And) String() string         { return join(q.Subqueries, " AND ") }
func (q *Or) String() string          { return join(q.Subqueries, " OR ") }
func (q *AndNot) String() string      { return "(" + q.Left.String() + " AND_NOT " + q.Right.String() + ")" }
func (q *AndMaybe) String() string {
	return "(" + q.Left.String() + " AND_MAYBE " + q.Right.String() + ")"
}
func (q *Filter) String() string { return "(" + q.Scored.String() + " FILTER " + q.By.String() + ")" }
func (q *Native) String() string { return q.Desc }

func (q *ValueRange) String() string {
	return fmt.Sprintf("VALUE_RANGE %d %s %s", q.Slot, q.Begin, q.End)
}

func join(qs []Query, op string) string {
	parts := make([]string, len(qs))
	for i, q := range qs {
		parts[i] = q.String()
	}
	return "(" + strings.Join(parts, op) + ")"
}

// splitTerm separates a free-text term into its field and word. Prefixes
// are upper case and analysed words never are.
func splitTerm(term string) (field, word string) {
	stemmed := false
	rest := term
	if strings.HasPrefix(rest, StemPrefix) {
		stemmed = true
		rest = rest[len(StemPrefix):]
	}
	i := 0
	for i < len(rest) && rest[i] >= 'A' && rest[i] <= 'Z' {
		i++
	}
	prefix, word := rest[:i], rest[i:]
	if stemmed {
		return stemField(prefix), word
	}
	return textField(prefix), word
}

// constant matches what q matches with a flat score: everything minus
// everything q does not match. q's own weight is never used.
func constant(q query.Query) query.Query {
	not := query.NewBooleanQuery(nil, nil, []query.Query{q})
	return query.NewBooleanQuery(nil, nil, []query.Query{not})
}

func (*MatchAll) compile() query.Query     { return bleve.NewMatchAllQuery() }
func (*MatchNothing) compile() query.Query { return bleve.NewMatchNoneQuery() }

func (q *Term) compile() query.Query {
	field, word := splitTerm(q.Name)
	tq := bleve.NewTermQuery(word)
	tq.SetField(field)
	return tq
}

func (q *BooleanTerm) compile() query.Query {
	tq := bleve.NewTermQuery(q.Name)
	tq.SetField(fieldTerms)
	return constant(tq)
}

func (q *Phrase) compile() query.Query {
	field, _ := splitTerm(q.Terms[0])
	words := make([]string, len(q.Terms))
	for i, t := range q.Terms {
		_, words[i] = splitTerm(t)
	}
	return bleve.NewPhraseQuery(words, field)
}

func compileAll(qs []Query) []query.Query {
	out := make([]query.Query, len(qs))
	for i, q := range qs {
		out[i] = q.compile()
	}
	return out
}

func (q *And) compile() query.Query { return bleve.NewConjunctionQuery(compileAll(q.Subqueries)...) }
func (q *Or) compile() query.Query  { return bleve.NewDisjunctionQuery(compileAll(q.Subqueries)...) }

func (q *AndNot) compile() query.Query {
	return query.NewBooleanQuery([]query.Query{q.Left.compile()}, nil, []query.Query{q.Right.compile()})
}

func (q *AndMaybe) compile() query.Query {
	return query.NewBooleanQuery([]query.Query{q.Left.compile()}, []query.Query{q.Right.compile()}, nil)
}

func (q *Filter) compile() query.Query {
	outside := query.NewBooleanQuery(nil, nil, []query.Query{q.By.compile()})
	return query.NewBooleanQuery([]query.Query{q.Scored.compile()}, nil, []query.Query{outside})
}

func (q *ValueRange) compile() query.Query {
	// Empty bounds are open.
	inclusive := true
	rq := bleve.NewTermRangeInclusiveQuery(q.Begin, q.End, &inclusive, &inclusive)
	rq.SetField(slotField(q.Slot))
	return constant(rq)
}

func (q *Native) compile() query.Query { return q.Query }
