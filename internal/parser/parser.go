// Package parser extracts front matter fields and indexable body text from Markdown notes.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/starford/laguz/internal/apperr"
)

// Result holds the output of extracting a note.
type Result struct {
	Fields map[string]any
	Body   string
}

// Extract splits data into front matter fields and plain body text. When the
// front matter has no title, the first level-one heading is used.
//
// A note without front matter yields empty fields. A front matter block that
// is never closed or is not valid YAML is an apperr.ErrExtraction error.
func Extract(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	if fm == nil {
		fm = make(map[string]any)
	}

	plain, heading := bodyText([]byte(body))
	if s, _ := fm["title"].(string); s == "" && heading != "" {
		fm["title"] = heading
	}

	return &Result{Fields: fm, Body: plain}, nil
}

// splitFrontmatter separates the YAML block between a leading "---" and a
// closing "---" or "..." line from the Markdown body.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	const open = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(open)) {
		return nil, string(data), nil
	}
	rest := trimmed[len(open):]
	if len(rest) > 0 && rest[0] != '\n' && rest[0] != '\r' {
		// "----" or "---foo" is a thematic break, not front matter.
		return nil, string(data), nil
	}

	end, next := closingDelimiter(rest)
	if end < 0 {
		return nil, "", fmt.Errorf("%w: front matter is not closed", apperr.ErrExtraction)
	}

	var fm map[string]any
	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return nil, "", fmt.Errorf("%w: front matter: %v", apperr.ErrExtraction, err)
	}
	body := strings.TrimLeft(string(rest[next:]), "\n\r")
	return fm, body, nil
}

// closingDelimiter returns the offset of the newline before the closing
// delimiter and the offset just past the delimiter line.
func closingDelimiter(rest []byte) (int, int) {
	offset := 0
	for offset < len(rest) {
		nl := bytes.IndexByte(rest[offset:], '\n')
		if nl < 0 {
			return -1, -1
		}
		lineStart := offset + nl + 1
		lineEnd := len(rest)
		if i := bytes.IndexByte(rest[lineStart:], '\n'); i >= 0 {
			lineEnd = lineStart + i
		}
		line := strings.TrimRight(string(rest[lineStart:lineEnd]), " \t\r")
		if line == "---" || line == "..." {
			return offset + nl, lineEnd
		}
		offset = lineStart
	}
	return -1, -1
}

// bodyText walks the Markdown AST and returns its visible text with one line
// per block, plus the first level-one heading.
func bodyText(src []byte) (string, string) {
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var b strings.Builder
	var heading string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level == 1 && heading == "" {
				heading = strings.TrimSpace(string(node.Text(src)))
			}
		case *ast.Text:
			b.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.AutoLink:
			b.Write(node.Label(src))
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(src))
			}
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String()), heading
}
