// Package outline runs queries and renders matches as a navigable outline:
// nested year, month and day headings by date, or a flat relevance list.
package outline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/starford/laguz/internal/engine"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/query"
)

// DefaultPageSize bounds one result window. Matches beyond it are dropped.
const DefaultPageSize = 100000

// MatchResult is one decoded match.
type MatchResult struct {
	Rank   int               `json:"rank"` // 1-based
	DocID  int64             `json:"docid"`
	Weight float64           `json:"weight"`
	Note   models.NoteRecord `json:"note"`
}

// Failure is a match whose payload could not be rendered.
type Failure struct {
	Rank  int
	DocID int64
	Err   error
}

// Line is the diagnostic line shown in place of the entry.
func (f Failure) Line() string {
	return fmt.Sprintf("[render error] doc %d: %v", f.DocID, f.Err)
}

// Result is one executed window.
type Result struct {
	Matches  []MatchResult
	Failures []Failure
	// Returned counts every match in the window, rendered or not.
	Returned int
	// Total counts all matches, including any beyond the window.
	Total int
}

// Header describes a query for the first output line.
type Header struct {
	Query  string
	Tags   []string
	ByDate bool
}

func (h Header) String() string {
	var b strings.Builder
	b.WriteString("#")
	if h.Query != "" {
		b.WriteString(" Query: " + h.Query)
	}
	if len(h.Tags) > 0 {
		b.WriteString(" Tags: " + strings.Join(h.Tags, ", "))
	}
	if h.ByDate {
		b.WriteString(" Ordered By Date")
	} else {
		b.WriteString(" Ordered By Relevance")
	}
	return b.String()
}

// Aggregator executes queries against a read handle.
type Aggregator struct {
	db       *engine.Database
	pageSize int
	logger   *slog.Logger
}

// New returns an aggregator; a non-positive pageSize means DefaultPageSize.
func New(db *engine.Database, pageSize int, logger *slog.Logger) *Aggregator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{db: db, pageSize: pageSize, logger: logger}
}

// Matches executes built and decodes every match in the window. Engine
// failures are returned; a bad payload only becomes a Failure.
func (a *Aggregator) Matches(ctx context.Context, built *query.Built) (*Result, error) {
	enq := a.db.Enquire()
	built.Apply(enq)
	ms, err := enq.GetMSet(ctx, 0, a.pageSize)
	if err != nil {
		return nil, fmt.Errorf("outline: %w", err)
	}
	if ms.Total > len(ms.Items) {
		a.logger.Debug("outline: window truncated",
			slog.Int("total", ms.Total),
			slog.Int("window", len(ms.Items)))
	}

	res := &Result{Returned: len(ms.Items), Total: ms.Total}
	for _, m := range ms.Items {
		rank := m.Rank + 1
		n, err := models.DecodePayload(m.Data)
		if err != nil {
			res.fail(a.logger, rank, int64(m.DocID), err)
			continue
		}
		res.Matches = append(res.Matches, MatchResult{
			Rank:   rank,
			DocID:  int64(m.DocID),
			Weight: m.Weight,
			Note:   n,
		})
	}
	return res, nil
}

func (r *Result) fail(logger *slog.Logger, rank int, docID int64, err error) {
	r.Failures = append(r.Failures, Failure{Rank: rank, DocID: docID, Err: err})
	logger.Warn("outline: render failed",
		slog.Int64("docid", docID),
		slog.Int("rank", rank),
		slog.String("error", err.Error()))
}

// Run executes built and renders the outline: header, blank line, entries,
// blank line, match count.
func (a *Aggregator) Run(ctx context.Context, built *query.Built, h Header) ([]string, error) {
	res, err := a.Matches(ctx, built)
	if err != nil {
		return nil, err
	}
	h.ByDate = built.SortByDate

	lines := []string{h.String(), ""}
	if built.SortByDate {
		lines = append(lines, a.grouped(res)...)
	} else {
		lines = append(lines, a.flat(res)...)
	}
	for _, f := range res.Failures {
		lines = append(lines, f.Line())
	}
	lines = append(lines, "", fmt.Sprintf("Found %d matches", res.Returned))
	return lines, nil
}

// flat renders matches in engine order, detailed.
func (a *Aggregator) flat(res *Result) []string {
	out := make([]string, 0, len(res.Matches))
	for _, m := range res.Matches {
		if line, ok := a.render(res, m, models.Detailed); ok {
			out = append(out, line)
		}
	}
	return out
}

type day struct {
	key   string
	items []MatchResult
}

type month struct {
	key  string
	days []*day
}

type year struct {
	key    string
	months []*month
}

// grouped buckets matches by year, month and day in order of first
// appearance, then renders each day's entries newest first, compact.
func (a *Aggregator) grouped(res *Result) []string {
	var years []*year
	for _, m := range res.Matches {
		d := m.Note.Date
		yk, mk, dk := d.Format("2006"), d.Format("January"), d.Format("02")

		var y *year
		if i := slices.IndexFunc(years, func(y *year) bool { return y.key == yk }); i >= 0 {
			y = years[i]
		} else {
			y = &year{key: yk}
			years = append(years, y)
		}
		var mo *month
		if i := slices.IndexFunc(y.months, func(mo *month) bool { return mo.key == mk }); i >= 0 {
			mo = y.months[i]
		} else {
			mo = &month{key: mk}
			y.months = append(y.months, mo)
		}
		var dy *day
		if i := slices.IndexFunc(mo.days, func(dy *day) bool { return dy.key == dk }); i >= 0 {
			dy = mo.days[i]
		} else {
			dy = &day{key: dk}
			mo.days = append(mo.days, dy)
		}
		dy.items = append(dy.items, m)
	}

	var out []string
	for _, y := range years {
		out = append(out, y.key)
		for _, mo := range y.months {
			out = append(out, mo.key)
			for _, dy := range mo.days {
				out = append(out, dy.items[0].Note.Date.Format("Monday 02"))
				slices.SortStableFunc(dy.items, func(a, b MatchResult) int {
					return b.Note.Date.Compare(a.Note.Date)
				})
				for _, m := range dy.items {
					if line, ok := a.render(res, m, models.Compact); ok {
						out = append(out, line)
					}
				}
			}
		}
	}
	return out
}

func (a *Aggregator) render(res *Result, m MatchResult, mode models.RenderMode) (string, bool) {
	line, err := models.NewDisplayItem(m.Note, m.Rank, m.DocID).Format(mode)
	if err != nil {
		res.fail(a.logger, m.Rank, m.DocID, err)
		return "", false
	}
	return line, true
}

// Tags returns the sorted set of tags carried by built's matches. Spellings
// differing only in case collapse to the first one seen.
func (a *Aggregator) Tags(ctx context.Context, built *query.Built) ([]string, error) {
	res, err := a.Matches(ctx, built)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	out := []string{}
	for _, m := range res.Matches {
		for _, tag := range m.Note.Tags {
			key := strings.ToLower(tag)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, tag)
		}
	}
	slices.Sort(out)
	return out, nil
}
