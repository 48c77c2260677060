package engine

import (
	"slices"
	"strconv"
)

// Document is an in-memory document built before ReplaceDocument.
type Document struct {
	text   map[string][]string
	order  []string
	stem   bool
	terms  map[string]struct{}
	values map[int]string
	data   []byte
}

// NewDocument returns an empty document. Free text is also indexed
// stemmed unless SetStemming(false) is called.
func NewDocument() *Document {
	return &Document{
		text:   make(map[string][]string),
		stem:   true,
		terms:  make(map[string]struct{}),
		values: make(map[int]string),
	}
}

// SetStemming selects whether free text gets a stemmed twin.
func (d *Document) SetStemming(on bool) { d.stem = on }

// AddText appends one segment of free text under prefix. Phrases never
// match across segments.
func (d *Document) AddText(prefix, text string) {
	if text == "" {
		return
	}
	if _, ok := d.text[prefix]; !ok {
		d.order = append(d.order, prefix)
	}
	d.text[prefix] = append(d.text[prefix], text)
}

// AddBooleanTerm adds a term that matches but never contributes weight.
func (d *Document) AddBooleanTerm(term string) {
	if term == "" {
		return
	}
	d.terms[term] = struct{}{}
}

// AddValue sets the value in slot, replacing any earlier one.
func (d *Document) AddValue(slot int, value string) { d.values[slot] = value }

// SetData sets the opaque data blob.
func (d *Document) SetData(data []byte) { d.data = data }

// Data returns the data blob.
func (d *Document) Data() []byte { return d.data }

// Value returns the value in slot, or "" when unset.
func (d *Document) Value(slot int) string { return d.values[slot] }

// Text returns the segments added under prefix.
func (d *Document) Text(prefix string) []string { return slices.Clone(d.text[prefix]) }

// BooleanTerms returns the boolean terms, sorted.
func (d *Document) BooleanTerms() []string {
	out := make([]string, 0, len(d.terms))
	for t := range d.terms {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// HasTerm reports whether the document carries term, either as a boolean
// term or as a prefixed word of its free text ("Sbig", "ZSbig").
func (d *Document) HasTerm(term string) bool {
	if _, ok := d.terms[term]; ok {
		return true
	}
	return slices.Contains(d.Terms(), term)
}

// Terms lists every term the document is indexed under, sorted: analysed
// words with their prefix, stems marked with StemPrefix, then boolean terms.
func (d *Document) Terms() []string {
	an, err := loadAnalyzers()
	if err != nil {
		return d.BooleanTerms()
	}
	seen := make(map[string]struct{}, len(d.terms))
	for t := range d.terms {
		seen[t] = struct{}{}
	}
	for prefix, segs := range d.text {
		for _, seg := range segs {
			for _, tok := range an.words(seg) {
				seen[prefix+string(tok.Term)] = struct{}{}
			}
			if !d.stem {
				continue
			}
			for _, tok := range an.stem.Analyze([]byte(seg)) {
				seen[StemPrefix+prefix+string(tok.Term)] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// fields renders the document in the shape of the index mapping.
func (d *Document) fields(id DocID) map[string]interface{} {
	text := make(map[string]interface{}, len(d.text))
	for _, prefix := range d.order {
		text[prefixKey(prefix)] = slices.Clone(d.text[prefix])
	}
	slots := make(map[string]interface{}, len(d.values))
	for s, v := range d.values {
		slots[strconv.Itoa(s)] = v
	}
	out := map[string]interface{}{
		fieldDocID: docIDKey(id),
		fieldTerms: d.BooleanTerms(),
		fieldData:  string(d.data),
		textDoc:    text,
		slotDoc:    slots,
	}
	if d.stem {
		out[stemDoc] = text
	}
	return out
}
