package pageviews

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/pvstream/pkg/errors"
)

// Record is one parsed line from a pageviews dump. DomainCode holds the
// raw first column unmodified; Parsed is its decomposition.
type Record struct {
	DomainCode string
	PageTitle  string
	Views      uint32
	Parsed     DomainCode
}

// normalizeTitle undoes the quoting applied to some dump strings.
//
// Strings may arrive wrapped in double quotes, apparently for some
// empty strings and strings containing a quote, which is escaped as \".
// Upstream does not document this, so the rule is deliberately narrow:
// strip one quote layer and un-escape \" only.
func normalizeTitle(value string) string {
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		return strings.ReplaceAll(value[1:len(value)-1], `\"`, `"`)
	}
	return value
}

// ParseLine parses a single dump line into a Record.
//
// Lines carry at least three space separated columns; anything after the
// third is ignored. Failures are typed: missing columns report
// ErrorTypeMissingField, an unparseable view count or domain code
// reports ErrorTypeInvalidField, with the offending field named in the
// error details.
func ParseLine(line string) (*Record, error) {
	fields := strings.SplitN(line, " ", 4)

	if len(fields) < 1 {
		return nil, errors.New(errors.ErrorTypeMissingField, "missing domain code").
			WithDetail("field", "domain_code")
	}
	domainCode := fields[0]

	if len(fields) < 2 {
		return nil, errors.New(errors.ErrorTypeMissingField, "missing page title").
			WithDetail("field", "page_title")
	}
	pageTitle := normalizeTitle(fields[1])

	if len(fields) < 3 {
		return nil, errors.New(errors.ErrorTypeMissingField, "missing view count").
			WithDetail("field", "views")
	}
	views, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeInvalidField, "invalid view count").
			WithDetail("field", "views").
			WithDetail("value", fields[2])
	}

	parsed, ok := ParseDomainCode(domainCode)
	if !ok {
		return nil, errors.New(errors.ErrorTypeInvalidField, "invalid domain code").
			WithDetail("field", "domain_code").
			WithDetail("value", domainCode)
	}

	return &Record{
		DomainCode: domainCode,
		PageTitle:  pageTitle,
		Views:      uint32(views),
		Parsed:     parsed,
	}, nil
}
