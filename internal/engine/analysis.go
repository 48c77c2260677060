package engine

import (
	"fmt"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	unicodetok "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
)

const (
	plainAnalyzerName = "laguz_plain"
	stemAnalyzerName  = "laguz_stem"
)

// StemPrefix marks stemmed terms, ahead of any field prefix.
const StemPrefix = "Z"

type analyzers struct {
	plain analysis.Analyzer
	stem  analysis.Analyzer
}

var (
	analyzersOnce   sync.Once
	sharedAnalyzers *analyzers
	analyzersErr    error
)

func addAnalyzers(m *mapping.IndexMappingImpl) error {
	if err := m.AddCustomAnalyzer(plainAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicodetok.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return fmt.Errorf("engine: plain analyzer: %w", err)
	}
	if err := m.AddCustomAnalyzer(stemAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicodetok.Name,
		"token_filters": []string{lowercase.Name, porter.Name},
	}); err != nil {
		return fmt.Errorf("engine: stem analyzer: %w", err)
	}
	return nil
}

// loadAnalyzers builds the word-splitting and stemming pipelines once. They
// are the ones every index is created with.
func loadAnalyzers() (*analyzers, error) {
	analyzersOnce.Do(func() {
		m := mapping.NewIndexMapping()
		if err := addAnalyzers(m); err != nil {
			analyzersErr = err
			return
		}
		a := &analyzers{
			plain: m.AnalyzerNamed(plainAnalyzerName),
			stem:  m.AnalyzerNamed(stemAnalyzerName),
		}
		if a.plain == nil || a.stem == nil {
			analyzersErr = fmt.Errorf("engine: analyzers not registered")
			return
		}
		sharedAnalyzers = a
	})
	return sharedAnalyzers, analyzersErr
}

// words splits text into lower-cased tokens with 1-based positions.
func (a *analyzers) words(text string) analysis.TokenStream {
	return a.plain.Analyze([]byte(text))
}

// stemWord returns the stem of a single lower-cased word.
func (a *analyzers) stemWord(word string) string {
	ts := a.stem.Analyze([]byte(word))
	if len(ts) == 0 {
		return word
	}
	return string(ts[0].Term)
}

// stemmable reports whether a term gets a stemmed form: only words that
// start with a letter.
func stemmable(term string) bool {
	r, _ := utf8.DecodeRuneInString(term)
	return unicode.IsLetter(r)
}
