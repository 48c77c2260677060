// Package dates parses note dates leniently and formats them for sorting.
package dates

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/starford/laguz/internal/apperr"
)

// SortableLayout is the fixed-width form stored in the date value slot.
const SortableLayout = "20060102"

// Parse accepts any layout dateparse recognises. Values without an explicit
// offset are placed in loc, or UTC when loc is nil.
func Parse(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", apperr.ErrDateParse)
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := dateparse.ParseIn(s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", apperr.ErrDateParse, s, err)
	}
	return t, nil
}

// ParseValue accepts the shapes a YAML decoder produces for a date field.
func ParseValue(v any, loc *time.Location) (time.Time, error) {
	switch d := v.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("%w: missing", apperr.ErrDateParse)
	case time.Time:
		if d.IsZero() {
			return time.Time{}, fmt.Errorf("%w: zero time", apperr.ErrDateParse)
		}
		return d, nil
	case string:
		return Parse(d, loc)
	case int, int64, uint64, float64:
		return Parse(fmt.Sprint(d), loc)
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported type %T", apperr.ErrDateParse, v)
	}
}

// Sortable renders t as YYYYMMDD in its own offset.
func Sortable(t time.Time) string {
	return t.Format(SortableLayout)
}

// LoadLocation resolves an IANA name; an empty name means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "utc") {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
