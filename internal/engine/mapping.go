package engine

import (
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/starford/laguz/internal/apperr"
)

// Stored field names. Free text lives under text.<prefix> and, stemmed,
// under stem.<prefix>; value slots under slot.<n>.
const (
	fieldDocID = "docid"
	fieldTerms = "terms"
	fieldData  = "data"

	textDoc = "text"
	stemDoc = "stem"
	slotDoc = "slot"

	// unprefixedKey names the unprefixed stream inside text and stem.
	unprefixedKey = "any"
)

func prefixKey(prefix string) string {
	if prefix == "" {
		return unprefixedKey
	}
	return prefix
}

func textField(prefix string) string { return textDoc + "." + prefixKey(prefix) }
func stemField(prefix string) string { return stemDoc + "." + prefixKey(prefix) }
func slotField(slot int) string      { return slotDoc + "." + strconv.Itoa(slot) }

// docIDKey renders id so that keyword order is numeric order.
func docIDKey(id DocID) string { return fmt.Sprintf("%016d", int64(id)) }

func newIndexMapping(opts Options) (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	if err := addAnalyzers(im); err != nil {
		return nil, err
	}
	im.DefaultAnalyzer = plainAnalyzerName
	im.IndexDynamic = false
	im.StoreDynamic = false
	im.DocValuesDynamic = false

	dm := bleve.NewDocumentStaticMapping()

	id := bleve.NewKeywordFieldMapping()
	id.Store = true
	id.DocValues = true
	id.IncludeInAll = false
	dm.AddFieldMappingsAt(fieldDocID, id)

	terms := bleve.NewKeywordFieldMapping()
	terms.Store = false
	terms.DocValues = false
	terms.IncludeInAll = false
	dm.AddFieldMappingsAt(fieldTerms, terms)

	data := bleve.NewTextFieldMapping()
	data.Index = false
	data.Store = true
	data.DocValues = false
	data.IncludeInAll = false
	data.IncludeTermVectors = false
	dm.AddFieldMappingsAt(fieldData, data)

	text := bleve.NewDocumentStaticMapping()
	stem := bleve.NewDocumentStaticMapping()
	for _, p := range opts.Text {
		if p != "" && p[0] == StemPrefix[0] {
			return nil, fmt.Errorf("%w: prefix %q clashes with the stem marker", apperr.ErrEngine, p)
		}
		exact := bleve.NewTextFieldMapping()
		exact.Analyzer = plainAnalyzerName
		exact.Store = false
		exact.DocValues = false
		exact.IncludeInAll = false
		exact.IncludeTermVectors = true
		text.AddFieldMappingsAt(prefixKey(p), exact)

		stemmed := bleve.NewTextFieldMapping()
		stemmed.Analyzer = stemAnalyzerName
		stemmed.Store = false
		stemmed.DocValues = false
		stemmed.IncludeInAll = false
		stemmed.IncludeTermVectors = false
		stem.AddFieldMappingsAt(prefixKey(p), stemmed)
	}
	dm.AddSubDocumentMapping(textDoc, text)
	dm.AddSubDocumentMapping(stemDoc, stem)

	slots := bleve.NewDocumentStaticMapping()
	for _, s := range opts.Slots {
		fm := bleve.NewKeywordFieldMapping()
		fm.Store = true
		fm.DocValues = true
		fm.IncludeInAll = false
		slots.AddFieldMappingsAt(strconv.Itoa(s), fm)
	}
	dm.AddSubDocumentMapping(slotDoc, slots)

	im.DefaultMapping = dm
	if err := im.Validate(); err != nil {
		return nil, fmt.Errorf("%w: index mapping: %v", apperr.ErrEngine, err)
	}
	return im, nil
}
