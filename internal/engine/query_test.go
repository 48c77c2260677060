package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/laguz/internal/apperr"
)

func docIDs(ms *MSet) []DocID {
	out := make([]DocID, len(ms.Items))
	for i, m := range ms.Items {
		out[i] = m.DocID
	}
	return out
}

func run(t *testing.T, db *Database, q Query) *MSet {
	t.Helper()
	enq := db.Enquire()
	enq.SetQuery(q)
	ms, err := enq.GetMSet(context.Background(), 0, 100)
	if err != nil {
		t.Fatalf("GetMSet(%s): %v", q, err)
	}
	return ms
}

func equalIDs(a, b []DocID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type fruitIDs struct{ a, b, c DocID }

func fruitDB(t *testing.T) (*Database, fruitIDs) {
	t.Helper()
	ctx := context.Background()
	db := openTestDB(t)

	var ids fruitIDs
	var err error
	a := newTextDoc(t, "apple banana")
	a.AddValue(1, "20200101")
	if ids.a, err = db.ReplaceDocument(ctx, "Qa", a); err != nil {
		t.Fatal(err)
	}
	b := newTextDoc(t, "apple apple cherry")
	b.AddValue(1, "20210615")
	if ids.b, err = db.ReplaceDocument(ctx, "Qb", b); err != nil {
		t.Fatal(err)
	}
	c := newTextDoc(t, "cherry")
	c.AddValue(1, "20200102")
	if ids.c, err = db.ReplaceDocument(ctx, "Qc", c); err != nil {
		t.Fatal(err)
	}
	return db, ids
}

func TestTermRanking(t *testing.T) {
	db, ids := fruitDB(t)

	ms := run(t, db, NewTerm("apple"))
	if got, want := docIDs(ms), []DocID{ids.b, ids.a}; !equalIDs(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if ms.Total != 2 {
		t.Errorf("total = %d", ms.Total)
	}
	if ms.Items[0].Rank != 0 || ms.Items[1].Rank != 1 {
		t.Errorf("ranks = %d, %d", ms.Items[0].Rank, ms.Items[1].Rank)
	}
	if string(ms.Items[0].Data) != "apple apple cherry" {
		t.Errorf("data = %q", ms.Items[0].Data)
	}
}

func TestBooleanOperators(t *testing.T) {
	db, ids := fruitDB(t)

	tests := []struct {
		name string
		q    Query
		want []DocID
	}{
		{"and", NewAnd(NewTerm("apple"), NewTerm("cherry")), []DocID{ids.b}},
		{"or", NewOr(NewTerm("banana"), NewTerm("cherry")), nil},
		{"and not", NewAndNot(NewTerm("apple"), NewTerm("cherry")), []DocID{ids.a}},
		{"and maybe", NewAndMaybe(NewTerm("cherry"), NewTerm("apple")), []DocID{ids.b, ids.c}},
		{"match all", NewMatchAll(), []DocID{ids.a, ids.b, ids.c}},
		{"match nothing", NewMatchNothing(), []DocID{}},
		{"missing term", NewTerm("durian"), []DocID{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := run(t, db, tt.q)
			if tt.want == nil {
				if ms.Total != 3 {
					t.Errorf("total = %d, want 3", ms.Total)
				}
				return
			}
			if got := docIDs(ms); !equalIDs(got, tt.want) {
				t.Errorf("%s = %v, want %v", tt.q, got, tt.want)
			}
		})
	}
}

func weights(ms *MSet) map[DocID]float64 {
	out := make(map[DocID]float64, len(ms.Items))
	for _, m := range ms.Items {
		out[m.DocID] = m.Weight
	}
	return out
}

func TestFilterDoesNotScore(t *testing.T) {
	db, ids := fruitDB(t)

	scored := NewOr(NewTerm("apple"), NewTerm("cherry"))
	plain := weights(run(t, db, scored))

	ms := run(t, db, NewFilter(scored, NewOr(NewTerm("banana"), NewBooleanTerm("Qb"))))
	if got, want := docIDs(ms), []DocID{ids.b, ids.a}; !equalIDs(got, want) {
		t.Fatalf("filtered = %v, want %v", got, want)
	}
	// Filtering leaves the relative weights of the scored part alone.
	got := weights(ms)
	if r1, r2 := got[ids.a]/got[ids.b], plain[ids.a]/plain[ids.b]; math.Abs(r1-r2) > 1e-9 {
		t.Errorf("weight ratio = %v, want %v", r1, r2)
	}

	// Boolean terms give every match the same weight.
	ms = run(t, db, NewOr(NewBooleanTerm("Qa"), NewBooleanTerm("Qb")))
	if len(ms.Items) != 2 || ms.Items[0].Weight != ms.Items[1].Weight {
		t.Errorf("boolean terms: %+v", ms.Items)
	}
	if got, want := docIDs(ms), []DocID{ids.a, ids.b}; !equalIDs(got, want) {
		t.Errorf("ties = %v, want docid order %v", got, want)
	}
}

func TestPhrase(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	adjacent := NewDocument()
	adjacent.AddText("", "the quick brown fox")
	idAdj, err := db.ReplaceDocument(ctx, "Qadj", adjacent)
	if err != nil {
		t.Fatal(err)
	}

	split := NewDocument()
	split.AddText("", "quick")
	split.AddText("", "brown")
	if _, err := db.ReplaceDocument(ctx, "Qsplit", split); err != nil {
		t.Fatal(err)
	}

	ms := run(t, db, NewPhrase("quick", "brown"))
	if got := docIDs(ms); !equalIDs(got, []DocID{idAdj}) {
		t.Errorf("phrase = %v, want [%d]", got, idAdj)
	}
	if ms := run(t, db, NewPhrase("brown", "quick")); ms.Total != 0 {
		t.Errorf("reversed phrase matched %v", docIDs(ms))
	}
	if ms := run(t, db, NewAnd(NewTerm("quick"), NewTerm("brown"))); ms.Total != 2 {
		t.Errorf("and total = %d, want 2", ms.Total)
	}
}

func TestPrefixedAndStemmedTerms(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	doc := NewDocument()
	doc.AddText("S", "Running Dogs")
	doc.AddText("", "walked home")
	id, err := db.ReplaceDocument(ctx, "Qa", doc)
	if err != nil {
		t.Fatal(err)
	}

	for _, q := range []Query{
		NewTerm("Srunning"),
		NewTerm("ZSrun"),
		NewTerm("ZSdog"),
		NewTerm("Zwalk"),
		NewPhrase("Srunning", "Sdogs"),
	} {
		if got := docIDs(run(t, db, q)); !equalIDs(got, []DocID{id}) {
			t.Errorf("%s = %v, want [%d]", q, got, id)
		}
	}
	for _, q := range []Query{NewTerm("running"), NewTerm("Swalked"), NewTerm("Srun")} {
		if ms := run(t, db, q); ms.Total != 0 {
			t.Errorf("%s matched %v", q, docIDs(ms))
		}
	}
}

func TestPhrase(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	g, err := NewTermGenerator(false)
	if err != nil {
		t.Fatal(err)
	}

	adjacent := NewDocument()
	g.SetDocument(adjacent)
	g.IndexText("the quick brown fox", 1, "")
	idAdj, err := db.ReplaceDocument(ctx, "Qadj", adjacent)
	if err != nil {
		t.Fatal(err)
	}

	split := NewDocument()
	g.SetDocument(split)
	g.IndexText("quick", 1, "")
	g.IncreaseTermpos(DefaultTermposGap)
	g.IndexText("brown", 1, "")
	if _, err := db.ReplaceDocument(ctx, "Qsplit", split); err != nil {
		t.Fatal(err)
	}

	ms := run(t, db, NewPhrase("quick", "brown"))
	if got := docIDs(ms); !equalIDs(got, []DocID{idAdj}) {
		t.Errorf("phrase = %v, want [%d]", got, idAdj)
	}
	if ms := run(t, db, NewPhrase("brown", "quick")); ms.Total != 0 {
		t.Errorf("reversed phrase matched %v", docIDs(ms))
	}
	if ms := run(t, db, NewAnd(NewTerm("quick"), NewTerm("brown"))); ms.Total != 2 {
		t.Errorf("and total = %d, want 2", ms.Total)
	}
}

func TestSortByValue(t *testing.T) {
	db, ids := fruitDB(t)

	enq := db.Enquire()
	enq.SetQuery(NewMatchAll())
	enq.SetSortByValueThenRelevance(1, true)
	ms, err := enq.GetMSet(context.Background(), 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := docIDs(ms), []DocID{ids.b, ids.c, ids.a}; !equalIDs(got, want) {
		t.Errorf("descending = %v, want %v", got, want)
	}

	enq.SetSortByValueThenRelevance(1, false)
	ms, err = enq.GetMSet(context.Background(), 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ms.Items) != 1 || ms.Items[0].DocID != ids.c || ms.Items[0].Rank != 1 {
		t.Errorf("page = %+v", ms.Items)
	}
	if ms.Total != 3 {
		t.Errorf("total = %d", ms.Total)
	}
}

func TestValueRange(t *testing.T) {
	db, ids := fruitDB(t)

	ms := run(t, db, NewFilter(NewMatchAll(), NewValueRange(1, "20200101", "20201231")))
	if got, want := docIDs(ms), []DocID{ids.a, ids.c}; !equalIDs(got, want) {
		t.Errorf("range = %v, want %v", got, want)
	}
	ms = run(t, db, NewValueRange(1, "20210101", ""))
	if got, want := docIDs(ms), []DocID{ids.b}; !equalIDs(got, want) {
		t.Errorf("open range = %v, want %v", got, want)
	}
}

func TestGetMSetCancelled(t *testing.T) {
	db, _ := fruitDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	enq := db.Enquire()
	enq.SetQuery(NewTerm("apple"))
	if _, err := enq.GetMSet(ctx, 0, 10); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestQueryParser(t *testing.T) {
	p, err := NewQueryParser()
	if err != nil {
		t.Fatal(err)
	}
	p.SetStemming(true)
	p.AddPrefix("title", "S")
	p.AddBooleanPrefix("tagged", "XK", func(s string) string { return s })
	p.AddRangeProcessor(DateRangeProcessor{Slot: 1})

	tests := []struct {
		in   string
		want string
	}{
		{"", "<nothing>"},
		{"hello", "Zhello"},
		{"Hello", "hello"},
		{"foo bar", "(Zfoo OR Zbar)"},
		{`"hello world"`, "(hello PHRASE world)"},
		{"title:running", "ZSrun"},
		{`title:"Big Day"`, "(Sbig PHRASE Sday)"},
		{"tagged:work", "(<alldocuments> FILTER XKwork)"},
		{"foo tagged:a tagged:b", "(Zfoo FILTER (XKa OR XKb))"},
		{"+foo bar", "(Zfoo AND_MAYBE Zbar)"},
		{"foo -bar", "(Zfoo AND_NOT Zbar)"},
		{"foo -tagged:x", "(Zfoo AND_NOT XKx)"},
		{"+foo +bar", "(Zfoo AND Zbar)"},
		{"foo-bar", "(foo PHRASE bar)"},
		{"nowhere:foo", "(nowhere PHRASE foo)"},
		{"wal*", "WILDCARD wal*"},
		{"title:Wal*", "WILDCARD wal*"},
		{`-"big day" foo`, "(Zfoo AND_NOT (big PHRASE day))"},
		{"2020-01-01..2020-12-31", "(<alldocuments> FILTER VALUE_RANGE 1 20200101 20201231)"},
		{"foo 2021-06-15..", "(Zfoo FILTER VALUE_RANGE 1 20210615 )"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			q, err := p.Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if got := q.String(); got != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestQueryParserBadRange(t *testing.T) {
	p, err := NewQueryParser()
	if err != nil {
		t.Fatal(err)
	}
	p.AddBooleanPrefix("tagged", "XK", nil)
	p.AddRangeProcessor(DateRangeProcessor{Slot: 1})

	for _, in := range []string{"soon..later", "..", "foo:", "tagged:wo*"} {
		if _, err := p.Parse(in); !errors.Is(err, apperr.ErrQuery) {
			t.Errorf("Parse(%q): expected ErrQuery, got %v", in, err)
		}
	}
}

func TestDocumentTerms(t *testing.T) {
	doc := NewDocument()
	doc.AddText("S", "Running dogs")
	doc.AddBooleanTerm("XKpets")

	want := []string{"Sdogs", "Srunning", "XKpets", "ZSdog", "ZSrun"}
	if diff := cmp.Diff(want, doc.Terms()); diff != "" {
		t.Errorf("terms mismatch (-want +got):\n%s", diff)
	}

	doc.SetStemming(false)
	if doc.HasTerm("ZSrun") {
		t.Error("stem listed with stemming off")
	}
}
