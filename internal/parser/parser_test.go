package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/laguz/internal/apperr"
)

func TestExtract_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\nauthor: steve\ndate: '2019-02-23T00:00:00-05:00'\ntags:\n  - xapian\n  - python\ntitle: Initial exploration\nsubtitle: Install and explore\n---\n# Heading\n\nSome *body* text with `code`.\n")
	r, err := Extract(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Fields["title"] != "Initial exploration" {
		t.Errorf("title = %v", r.Fields["title"])
	}
	if r.Fields["author"] != "steve" {
		t.Errorf("author = %v", r.Fields["author"])
	}
	tags, ok := r.Fields["tags"].([]any)
	if !ok || len(tags) != 2 {
		t.Errorf("tags = %#v", r.Fields["tags"])
	}
	if !strings.Contains(r.Body, "Some body text with code.") {
		t.Errorf("body = %q", r.Body)
	}
	if strings.Contains(r.Body, "*") || strings.Contains(r.Body, "`") {
		t.Errorf("markup leaked into body: %q", r.Body)
	}
}

func TestExtract_DotsClosingDelimiter(t *testing.T) {
	r, err := Extract([]byte("---\ntitle: Pandoc style\n...\nBody\n"))
	if err != nil {
		t.Fatal(err)
	}
	if r.Fields["title"] != "Pandoc style" || r.Body != "Body" {
		t.Errorf("got fields=%v body=%q", r.Fields, r.Body)
	}
}

func TestExtract_NoFrontmatter(t *testing.T) {
	r, err := Extract([]byte("# Just a heading\nSome text.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Fields["title"] != "Just a heading" {
		t.Errorf("title = %v, want heading fallback", r.Fields["title"])
	}
	if _, ok := r.Fields["date"]; ok {
		t.Error("no date expected")
	}
}

func TestExtract_FrontmatterTitleWinsOverHeading(t *testing.T) {
	r, err := Extract([]byte("---\ntitle: FM Title\n---\n# H1 Title\ntext"))
	if err != nil {
		t.Fatal(err)
	}
	if r.Fields["title"] != "FM Title" {
		t.Errorf("title = %v", r.Fields["title"])
	}
}

func TestExtract_InvalidYAML(t *testing.T) {
	_, err := Extract([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if !errors.Is(err, apperr.ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}
}

func TestExtract_Unclosed(t *testing.T) {
	_, err := Extract([]byte("---\ntitle: x\nno closing line\n"))
	if !errors.Is(err, apperr.ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}
}

func TestExtract_ThematicBreakIsBody(t *testing.T) {
	r, err := Extract([]byte("----\n\nplain\n"))
	if err != nil {
		t.Fatal(err)
	}
	if r.Body != "plain" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestBodyText_CodeAndLinks(t *testing.T) {
	src := []byte("See <https://example.org> and [label](x.md).\n\n```\nfenced code\n```\n<div>html</div>\n")
	body, _ := bodyText(src)
	for _, want := range []string{"https://example.org", "label", "fenced code"} {
		if !strings.Contains(body, want) {
			t.Errorf("body %q missing %q", body, want)
		}
	}
	if strings.Contains(body, "<div>") {
		t.Errorf("raw html leaked: %q", body)
	}
}
