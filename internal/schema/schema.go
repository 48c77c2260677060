// Package schema holds the field table shared by the indexing and query paths.
//
// Every prefix used when writing a document and every prefix the query parser
// understands come from the same *Schema value. Nothing else in the module
// spells a prefix literal.
package schema

import (
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/starford/laguz/internal/engine"
)

// Version identifies the layout below. An index written under another version
// is rejected on open.
const Version = 2

// Logical field names.
const (
	FieldAuthor   = "author"
	FieldDate     = "date"
	FieldFilename = "filename"
	FieldTitle    = "title"
	FieldSubtitle = "subtitle"
	FieldTag      = "tag"
	FieldCategory = "category"
	FieldID       = "id"
	FieldTagged   = "tagged"
	FieldPath     = "path"
)

// Value slots.
const (
	SlotDate     = 1 // YYYYMMDD, sortable
	SlotPath     = 2 // source path relative to the vault root
	SlotChecksum = 3 // content digest used by incremental sync
)

// Kind says how a field is indexed.
type Kind int

const (
	// Free fields are tokenised into positional, scoring terms.
	Free Kind = iota
	// Boolean fields hold exact, non-scoring terms used for filtering.
	Boolean
)

func (k Kind) String() string {
	if k == Boolean {
		return "boolean"
	}
	return "free"
}

// Field maps a logical name to its term prefix.
type Field struct {
	Name   string
	Prefix string
	Kind   Kind
}

// Schema is an immutable, versioned field table.
type Schema struct {
	version int
	fields  []Field
	byName  map[string]Field
}

var notes = mustBuild(Version, []Field{
	{Name: FieldAuthor, Prefix: "A", Kind: Free},
	{Name: FieldDate, Prefix: "D", Kind: Free},
	{Name: FieldFilename, Prefix: "F", Kind: Free},
	{Name: FieldTitle, Prefix: "S", Kind: Free},
	{Name: FieldSubtitle, Prefix: "XS", Kind: Free},
	{Name: FieldTag, Prefix: "K", Kind: Free},
	{Name: FieldCategory, Prefix: "B", Kind: Free},
	{Name: FieldID, Prefix: "Q", Kind: Boolean},
	{Name: FieldTagged, Prefix: "XK", Kind: Boolean},
	{Name: FieldPath, Prefix: "XP", Kind: Boolean},
})

// Notes returns the note archive schema. The same pointer is returned on
// every call.
func Notes() *Schema { return notes }

// Build validates fields and returns a schema. Names and prefixes must be
// unique and prefixes must be upper-case so they never collide with the
// lower-cased terms they precede.
func Build(version int, fields []Field) (*Schema, error) {
	s := &Schema{
		version: version,
		fields:  make([]Field, 0, len(fields)),
		byName:  make(map[string]Field, len(fields)),
	}
	prefixes := make(map[string]string, len(fields))
	for _, f := range fields {
		if f.Name == "" || f.Prefix == "" {
			return nil, fmt.Errorf("schema: field %q has empty name or prefix", f.Name)
		}
		if f.Prefix != strings.ToUpper(f.Prefix) {
			return nil, fmt.Errorf("schema: prefix %q for %q must be upper-case", f.Prefix, f.Name)
		}
		if strings.HasPrefix(f.Prefix, "Z") {
			return nil, fmt.Errorf("schema: prefix %q for %q: Z marks stemmed terms", f.Prefix, f.Name)
		}
		if _, dup := s.byName[f.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate field %q", f.Name)
		}
		if other, dup := prefixes[f.Prefix]; dup {
			return nil, fmt.Errorf("schema: prefix %q shared by %q and %q", f.Prefix, other, f.Name)
		}
		prefixes[f.Prefix] = f.Name
		s.byName[f.Name] = f
		s.fields = append(s.fields, f)
	}
	return s, nil
}

func mustBuild(version int, fields []Field) *Schema {
	s, err := Build(version, fields)
	if err != nil {
		panic(err)
	}
	return s
}

// Version returns the schema version.
func (s *Schema) Version() int { return s.version }

// Fields returns a copy of the field table in declaration order.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// TextPrefixes returns the prefixes of the free fields plus "" for the
// unprefixed stream that carries title, subtitle, tags and body together.
func (s *Schema) TextPrefixes() []string {
	out := []string{""}
	for _, f := range s.fields {
		if f.Kind == Free {
			out = append(out, f.Prefix)
		}
	}
	return out
}

// Slots returns the value slots documents fill.
func Slots() []int { return []int{SlotDate, SlotPath, SlotChecksum} }

// EngineOptions describes the index layout for engine.Open. settings are
// stored next to the schema version and must match on every later open.
func (s *Schema) EngineOptions(settings map[string]string) engine.Options {
	all := map[string]string{engine.SettingVersion: strconv.Itoa(s.version)}
	maps.Copy(all, settings)
	return engine.Options{Text: s.TextPrefixes(), Slots: Slots(), Settings: all}
}

// Field looks up a field by logical name.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Prefix returns the term prefix for name. It panics on an unknown field:
// callers only pass the Field* constants.
func (s *Schema) Prefix(name string) string {
	f, ok := s.byName[name]
	if !ok {
		panic(fmt.Sprintf("schema: unknown field %q", name))
	}
	return f.Prefix
}

// BooleanTerm builds the exact filter term for a boolean field value.
func (s *Schema) BooleanTerm(name, value string) string {
	return s.Prefix(name) + NormalizeBoolean(value)
}

// IdentityTerm returns the unique term for an identity key.
func (s *Schema) IdentityTerm(key string) string {
	return s.Prefix(FieldID) + key
}

// PathTerm returns the boolean term naming a note's source path. Paths are
// kept verbatim.
func (s *Schema) PathTerm(rel string) string {
	return s.Prefix(FieldPath) + rel
}

// TagTerm returns the boolean filter term for a tag.
func (s *Schema) TagTerm(tag string) string {
	return s.BooleanTerm(FieldTagged, tag)
}

// NormalizeBoolean lower-cases and trims a boolean term value.
func NormalizeBoolean(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
