package engine

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/starford/laguz/internal/apperr"
)

// RangeProcessor turns "begin..end" into a query. ok is false when the
// processor does not recognise the bounds.
type RangeProcessor interface {
	ProcessRange(begin, end string) (q Query, ok bool)
}

// DateRangeProcessor matches dates in a value slot holding YYYYMMDD.
// Bounds are parsed leniently, month before day when ambiguous.
type DateRangeProcessor struct {
	Slot     int
	Location *time.Location
}

func (p DateRangeProcessor) ProcessRange(begin, end string) (Query, bool) {
	if begin == "" && end == "" {
		return nil, false
	}
	b, ok := p.bound(begin)
	if !ok {
		return nil, false
	}
	e, ok := p.bound(end)
	if !ok {
		return nil, false
	}
	return NewValueRange(p.Slot, b, e), true
}

func (p DateRangeProcessor) bound(s string) (string, bool) {
	if s == "" {
		return "", true
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	t, err := dateparse.ParseIn(s, loc)
	if err != nil {
		return "", false
	}
	return t.Format("20060102"), true
}

// QueryParser turns user query strings into query trees.
//
// The syntax is bleve's query string: bare words, "quoted phrases",
// field:word and field:"phrase", +word (required), -word (excluded),
// wildcards and word~N fuzzy matches. On top of it, begin..end tokens go
// to the range processors. Plain words are OR'd.
type QueryParser struct {
	an       *analyzers
	stem     bool
	free     map[string]string
	boolean  map[string]booleanPrefix
	rangeOps []RangeProcessor
}

type booleanPrefix struct {
	prefix    string
	normalize func(string) string
}

// NewQueryParser returns a parser with no prefixes and stemming off.
func NewQueryParser() (*QueryParser, error) {
	an, err := loadAnalyzers()
	if err != nil {
		return nil, err
	}
	return &QueryParser{
		an:      an,
		free:    make(map[string]string),
		boolean: make(map[string]booleanPrefix),
	}, nil
}

// SetStemming enables stemmed matching for lower-case words.
func (p *QueryParser) SetStemming(on bool) { p.stem = on }

// AddPrefix maps field: to a free-text term prefix.
func (p *QueryParser) AddPrefix(field, prefix string) { p.free[field] = prefix }

// AddBooleanPrefix maps field: to a filter prefix. normalize, when set, is
// applied to the value before it is prefixed.
func (p *QueryParser) AddBooleanPrefix(field, prefix string, normalize func(string) string) {
	p.boolean[field] = booleanPrefix{prefix: prefix, normalize: normalize}
}

func (p *QueryParser) AddRangeProcessor(rp RangeProcessor) {
	p.rangeOps = append(p.rangeOps, rp)
}

// Parse parses q. An empty or word-less query yields MatchNothing.
func (p *QueryParser) Parse(q string) (Query, error) {
	var g group
	rest, ranges := p.splitRanges(q)
	for _, r := range ranges {
		if err := p.rangeClause(&g, r); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(rest) != "" {
		parsed, err := bleve.NewQueryStringQuery(rest).Parse()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrQuery, err)
		}
		if err := p.walk(&g, parsed, 0); err != nil {
			return nil, err
		}
	}
	out := g.build()
	if out == nil {
		return NewMatchNothing(), nil
	}
	return out, nil
}

// rangeToken is a begin..end token lifted out of the query string.
type rangeToken struct {
	sign       byte
	begin, end string
	text       string
}

// splitRanges removes unquoted begin..end tokens from s. Tokens holding a
// field separator stay for the query string parser.
func (p *QueryParser) splitRanges(s string) (string, []rangeToken) {
	if len(p.rangeOps) == 0 {
		return s, nil
	}
	var (
		kept    []string
		ranges  []rangeToken
		inQuote bool
	)
	for _, f := range strings.Fields(s) {
		if !inQuote && !strings.ContainsAny(f, `":`) {
			body := f
			var sign byte
			if body[0] == '+' || body[0] == '-' {
				sign, body = body[0], body[1:]
			}
			if begin, end, ok := strings.Cut(body, ".."); ok {
				ranges = append(ranges, rangeToken{sign: sign, begin: begin, end: end, text: f})
				continue
			}
		}
		if strings.Count(f, `"`)%2 == 1 {
			inQuote = !inQuote
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " "), ranges
}

func (p *QueryParser) rangeClause(g *group, r rangeToken) error {
	for _, rp := range p.rangeOps {
		if q, ok := rp.ProcessRange(r.begin, r.end); ok {
			if r.sign == '-' {
				g.hated = append(g.hated, q)
			} else {
				g.addFilter("R", q)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: unrecognised range %q", apperr.ErrQuery, r.text)
}

// walk folds a parsed query string into g. The parser yields one boolean
// query whose must, should and must-not lists hold the clauses.
func (p *QueryParser) walk(g *group, q query.Query, sign byte) error {
	switch q := q.(type) {
	case nil:
		return nil
	case *query.BooleanQuery:
		if err := p.walk(g, q.Must, '+'); err != nil {
			return err
		}
		if err := p.walk(g, q.Should, sign); err != nil {
			return err
		}
		return p.walk(g, q.MustNot, '-')
	case *query.ConjunctionQuery:
		for _, c := range q.Conjuncts {
			if err := p.walk(g, c, sign); err != nil {
				return err
			}
		}
		return nil
	case *query.DisjunctionQuery:
		for _, c := range q.Disjuncts {
			// Bare numbers also come with a numeric range; no field is numeric.
			if _, ok := c.(*query.NumericRangeQuery); ok {
				continue
			}
			if err := p.walk(g, c, sign); err != nil {
				return err
			}
		}
		return nil
	case *query.MatchQuery:
		if q.Fuzziness > 0 {
			return p.native(g, sign, q, fmt.Sprintf("FUZZY %s~%d", q.Match, q.Fuzziness))
		}
		return p.clause(g, sign, q.FieldVal, q.Match, false)
	case *query.MatchPhraseQuery:
		return p.clause(g, sign, q.FieldVal, q.MatchPhrase, true)
	case *query.WildcardQuery:
		q.Wildcard = strings.ToLower(q.Wildcard)
		return p.native(g, sign, q, "WILDCARD "+q.Wildcard)
	case *query.RegexpQuery:
		return p.native(g, sign, q, "REGEXP "+q.Regexp)
	}
	return fmt.Errorf("%w: unsupported query %T", apperr.ErrQuery, q)
}

// native keeps a bleve query as is, moved onto the free-text field its
// field name maps to.
func (p *QueryParser) native(g *group, sign byte, q query.FieldableQuery, desc string) error {
	name := q.Field()
	if _, ok := p.boolean[name]; ok && name != "" {
		return fmt.Errorf("%w: %s: needs a plain value", apperr.ErrQuery, name)
	}
	prefix := p.free[name]
	q.SetField(textField(prefix))
	if m, ok := q.(*query.MatchQuery); ok {
		m.Analyzer = plainAnalyzerName
	}
	g.add(sign, &Native{Desc: desc, Query: q})
	return nil
}

func (p *QueryParser) clause(g *group, sign byte, field, text string, phrase bool) error {
	if bp, ok := p.boolean[field]; ok && field != "" {
		v := text
		if bp.normalize != nil {
			v = bp.normalize(v)
		}
		if v == "" {
			return nil
		}
		q := NewBooleanTerm(bp.prefix + v)
		if sign == '-' {
			g.hated = append(g.hated, q)
		} else {
			g.addFilter("B"+bp.prefix, q)
		}
		return nil
	}

	prefix, ok := p.free[field]
	if !ok && field != "" {
		// Unknown fields are plain text.
		text = field + " " + text
	}
	g.add(sign, p.textQuery(prefix, text, !phrase))
	return nil
}

// group collects the clauses of a query.
type group struct {
	loved, plain, hated []Query
	filters             map[string][]Query
	filterOrder         []string
}

func (g *group) addFilter(key string, q Query) {
	if g.filters == nil {
		g.filters = make(map[string][]Query)
	}
	if _, ok := g.filters[key]; !ok {
		g.filterOrder = append(g.filterOrder, key)
	}
	g.filters[key] = append(g.filters[key], q)
}

func (g *group) add(sign byte, q Query) {
	if q == nil {
		return
	}
	switch sign {
	case '+':
		g.loved = append(g.loved, q)
	case '-':
		g.hated = append(g.hated, q)
	default:
		g.plain = append(g.plain, q)
	}
}

// build combines a group: required clauses are AND'd with optional ones
// adding weight, filters of one field are OR'd and different fields AND'd,
// and excluded clauses are removed last.
func (g *group) build() Query {
	var base Query
	switch {
	case len(g.loved) > 0:
		base = NewAnd(g.loved...)
		if len(g.plain) > 0 {
			base = NewAndMaybe(base, NewOr(g.plain...))
		}
	case len(g.plain) > 0:
		base = NewOr(g.plain...)
	}
	if len(g.filterOrder) > 0 {
		fs := make([]Query, 0, len(g.filterOrder))
		for _, key := range g.filterOrder {
			fs = append(fs, NewOr(g.filters[key]...))
		}
		if base == nil {
			base = NewMatchAll()
		}
		base = NewFilter(base, NewAnd(fs...))
	}
	if len(g.hated) > 0 {
		if base == nil {
			base = NewMatchAll()
		}
		base = NewAndNot(base, NewOr(g.hated...))
	}
	return base
}

// textQuery analyses text into a term or, for several words, a phrase.
// A single word is stemmed when stemming is on, allowStem is set and the
// word does not start with an upper-case letter.
func (p *QueryParser) textQuery(prefix, text string, allowStem bool) Query {
	toks := p.an.words(text)
	switch len(toks) {
	case 0:
		return nil
	case 1:
		word := string(toks[0].Term)
		if p.stem && allowStem && !startsUpper(text) && stemmable(word) {
			return NewTerm(StemPrefix + prefix + p.an.stemWord(word))
		}
		return NewTerm(prefix + word)
	}
	terms := make([]string, len(toks))
	for i, tok := range toks {
		terms[i] = prefix + string(tok.Term)
	}
	return NewPhrase(terms...)
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}
