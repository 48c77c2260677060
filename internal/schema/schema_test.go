package schema

import (
	"strings"
	"testing"
)

func TestNotes_Prefixes(t *testing.T) {
	s := Notes()
	cases := map[string]string{
		FieldAuthor:   "A",
		FieldDate:     "D",
		FieldFilename: "F",
		FieldTitle:    "S",
		FieldSubtitle: "XS",
		FieldTag:      "K",
		FieldCategory: "B",
		FieldID:       "Q",
		FieldTagged:   "XK",
		FieldPath:     "XP",
	}
	for name, want := range cases {
		if got := s.Prefix(name); got != want {
			t.Errorf("Prefix(%q) = %q, want %q", name, got, want)
		}
	}
	if s.Version() != Version {
		t.Errorf("version = %d, want %d", s.Version(), Version)
	}
}

func TestNotes_SamePointer(t *testing.T) {
	if Notes() != Notes() {
		t.Fatal("Notes() must return a single shared table")
	}
}

func TestBuild_RejectsDuplicatePrefix(t *testing.T) {
	_, err := Build(1, []Field{
		{Name: "a", Prefix: "A"},
		{Name: "b", Prefix: "A"},
	})
	if err == nil || !strings.Contains(err.Error(), "shared by") {
		t.Fatalf("expected duplicate prefix error, got %v", err)
	}
}

func TestBuild_RejectsLowerCasePrefix(t *testing.T) {
	if _, err := Build(1, []Field{{Name: "a", Prefix: "x"}}); err == nil {
		t.Fatal("lower-case prefix should be rejected")
	}
}

func TestBuild_RejectsDuplicateName(t *testing.T) {
	if _, err := Build(1, []Field{{Name: "a", Prefix: "A"}, {Name: "a", Prefix: "B"}}); err == nil {
		t.Fatal("duplicate name should be rejected")
	}
}

func TestTagTerm_Normalises(t *testing.T) {
	s := Notes()
	if got := s.TagTerm("  Machine Learning "); got != "XKmachine learning" {
		t.Errorf("TagTerm = %q", got)
	}
	if got := s.IdentityTerm("notes/A.md"); got != "Qnotes/A.md" {
		t.Errorf("IdentityTerm = %q", got)
	}
	if got := s.PathTerm("Notes/A.md"); got != "XPNotes/A.md" {
		t.Errorf("PathTerm = %q", got)
	}
}

func TestPrefix_UnknownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown field")
		}
	}()
	Notes().Prefix("nope")
}

func TestBuild_RejectsStemMarker(t *testing.T) {
	if _, err := Build(1, []Field{{Name: "zone", Prefix: "ZN"}}); err == nil {
		t.Fatal("prefix starting with Z should be rejected")
	}
}

func TestTextPrefixes(t *testing.T) {
	want := []string{"", "A", "D", "F", "S", "XS", "K", "B"}
	got := Notes().TextPrefixes()
	if len(got) != len(want) {
		t.Fatalf("TextPrefixes = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("TextPrefixes = %q, want %q", got, want)
		}
	}
}
