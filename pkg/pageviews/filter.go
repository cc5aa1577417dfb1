package pageviews

import (
	"regexp"
	"slices"
)

// Filters selects a subset of a dump. The line regex is applied to raw
// lines before parsing; the remaining predicates are applied to parsed
// records and combined with AND. Nil fields are ignored, so the zero
// value passes everything.
//
// A Filters value must not be mutated while a pipeline is running over
// it. Sharing one value across pipelines is safe.
type Filters struct {
	LineRegex   *regexp.Regexp
	DomainCodes []string
	PageTitle   *regexp.Regexp
	MinViews    *uint32
	MaxViews    *uint32
	Languages   []string
	Domains     []string
	Mobile      *bool
}

// Uint32 returns a pointer to v for use in filter literals.
func Uint32(v uint32) *uint32 { return &v }

// Bool returns a pointer to v for use in filter literals.
func Bool(v bool) *bool { return &v }

// PrePass reports whether a raw line survives the pre-parse stage.
// Rejecting here skips the parse cost of the line entirely.
func (f *Filters) PrePass(line string) bool {
	if f == nil || f.LineRegex == nil {
		return true
	}
	return f.LineRegex.MatchString(line)
}

// PostPass reports whether a parsed record survives the post-parse
// stage. A configured domain predicate rejects records whose domain did
// not resolve.
func (f *Filters) PostPass(r *Record) bool {
	if f == nil {
		return true
	}
	if f.DomainCodes != nil && !slices.Contains(f.DomainCodes, r.DomainCode) {
		return false
	}
	if f.PageTitle != nil && !f.PageTitle.MatchString(r.PageTitle) {
		return false
	}
	if f.MinViews != nil && r.Views < *f.MinViews {
		return false
	}
	if f.MaxViews != nil && r.Views > *f.MaxViews {
		return false
	}
	if f.Languages != nil && !slices.Contains(f.Languages, r.Parsed.Language) {
		return false
	}
	if f.Domains != nil {
		if !r.Parsed.HasDomain() || !slices.Contains(f.Domains, r.Parsed.Domain) {
			return false
		}
	}
	if f.Mobile != nil && r.Parsed.Mobile != *f.Mobile {
		return false
	}
	return true
}
