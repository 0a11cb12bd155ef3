// Package filter evaluates filter specifications against content records.
// A Spec is a conjunction of independent optional clauses; an unset clause
// always passes.
package filter

import (
	"strings"
	"time"

	"github.com/yiblet/cliphist/internal/content"
)

// DateRange bounds record timestamps, inclusive at both ends.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// SizeRange bounds content.SizeOf, inclusive at both ends.
type SizeRange struct {
	Min *int64
	Max *int64
}

// Spec is a filter specification. Empty sets impose no restriction.
type Spec struct {
	Search         string
	Types          map[content.Kind]bool
	DateRange      DateRange
	SizeRange      *SizeRange
	MimeTypes      map[string]bool
	OnlyCompressed bool
	OnlyFavorites  bool
}

// Default returns the spec that matches every record.
func Default() Spec {
	return Spec{
		Types:     map[content.Kind]bool{},
		MimeTypes: map[string]bool{},
	}
}

// Clone returns a deep copy of s.
func (s Spec) Clone() Spec {
	out := s
	out.Types = make(map[content.Kind]bool, len(s.Types))
	for k, v := range s.Types {
		out.Types[k] = v
	}
	out.MimeTypes = make(map[string]bool, len(s.MimeTypes))
	for k, v := range s.MimeTypes {
		out.MimeTypes[k] = v
	}
	if s.SizeRange != nil {
		sr := *s.SizeRange
		out.SizeRange = &sr
	}
	return out
}

// IsZero reports whether the spec matches every record.
func (s Spec) IsZero() bool {
	return s.Search == "" && len(s.Types) == 0 && s.DateRange.Start == nil &&
		s.DateRange.End == nil && s.SizeRange == nil && len(s.MimeTypes) == 0 &&
		!s.OnlyCompressed && !s.OnlyFavorites
}

// Patch is a partial update of a Spec. Nil fields leave the current value
// unchanged. A non-nil empty slice clears the corresponding set.
type Patch struct {
	Search         *string
	Types          []content.Kind
	DateRange      *DateRange
	SizeRange      *SizeRange
	ClearSizeRange bool
	MimeTypes      []string
	OnlyCompressed *bool
	OnlyFavorites  *bool
}

// Merge applies p on top of s and returns the result. s is not modified.
func Merge(s Spec, p Patch) Spec {
	out := s.Clone()
	if p.Search != nil {
		out.Search = *p.Search
	}
	if p.Types != nil {
		out.Types = make(map[content.Kind]bool, len(p.Types))
		for _, k := range p.Types {
			out.Types[k] = true
		}
	}
	if p.DateRange != nil {
		out.DateRange = *p.DateRange
	}
	if p.ClearSizeRange {
		out.SizeRange = nil
	}
	if p.SizeRange != nil {
		sr := *p.SizeRange
		out.SizeRange = &sr
	}
	if p.MimeTypes != nil {
		out.MimeTypes = make(map[string]bool, len(p.MimeTypes))
		for _, m := range p.MimeTypes {
			out.MimeTypes[m] = true
		}
	}
	if p.OnlyCompressed != nil {
		out.OnlyCompressed = *p.OnlyCompressed
	}
	if p.OnlyFavorites != nil {
		out.OnlyFavorites = *p.OnlyFavorites
	}
	return out
}

// Matches reports whether r satisfies every clause of s.
func Matches(r content.Record, s Spec) bool {
	return newMatcher(s).match(r)
}

// Apply returns the records of history that match s, preserving order.
// It runs in linear time and never returns nil.
func Apply(history []content.Record, s Spec) []content.Record {
	m := newMatcher(s)
	out := make([]content.Record, 0, len(history))
	for _, r := range history {
		if m.match(r) {
			out = append(out, r)
		}
	}
	return out
}

// matcher holds a spec with its search term pre-lowered.
type matcher struct {
	spec   Spec
	needle string
}

func newMatcher(s Spec) matcher {
	return matcher{spec: s, needle: strings.ToLower(strings.TrimSpace(s.Search))}
}

func (m matcher) match(r content.Record) bool {
	s := m.spec

	if len(s.Types) > 0 && !s.Types[r.Kind()] {
		return false
	}

	if s.DateRange.Start != nil && r.Timestamp.Before(*s.DateRange.Start) {
		return false
	}
	if s.DateRange.End != nil && r.Timestamp.After(*s.DateRange.End) {
		return false
	}

	if s.SizeRange != nil {
		size := content.SizeOf(r)
		if s.SizeRange.Min != nil && size < *s.SizeRange.Min {
			return false
		}
		if s.SizeRange.Max != nil && size > *s.SizeRange.Max {
			return false
		}
	}

	if len(s.MimeTypes) > 0 {
		mime, ok := content.MimeOf(r)
		if !ok || !s.MimeTypes[mime] {
			return false
		}
	}

	if s.OnlyCompressed && !content.IsCompressed(r) {
		return false
	}

	if s.OnlyFavorites && !r.Favorite {
		return false
	}

	if m.needle != "" && !strings.Contains(strings.ToLower(content.SearchText(r)), m.needle) {
		return false
	}

	return true
}
