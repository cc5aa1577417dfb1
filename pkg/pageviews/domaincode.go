package pageviews

import "strings"

// domains maps sister-project short codes to canonical domains. The
// table is part of the dump format:
// https://wikitech.wikimedia.org/wiki/Data_Platform/Data_Lake/Traffic/Pageviews
var domains = map[string]string{
	"b":   "wikibooks.org",
	"d":   "wiktionary.org",
	"f":   "wikimediafoundation.org",
	"m":   "wikimedia.org",
	"n":   "wikinews.org",
	"q":   "wikiquote.org",
	"s":   "wikisource.org",
	"v":   "wikiversity.org",
	"voy": "wikivoyage.org",
	"w":   "mediawiki.org",
	"wd":  "wikidata.org",
}

// wikimediaProjects maps cross-language project names to their domains.
// These are addressed without a language prefix.
var wikimediaProjects = map[string]string{
	"commons":   "commons.wikimedia.org",
	"meta":      "meta.wikimedia.org",
	"incubator": "incubator.wikimedia.org",
	"species":   "species.wikimedia.org",
	"strategy":  "strategy.wikimedia.org",
	"outreach":  "outreach.wikimedia.org",
	"usability": "usability.wikimedia.org",
	"quality":   "quality.wikimedia.org",
}

// DomainCode is a domain code broken into its semantic dimensions.
// Language is always populated. Domain is empty when the project portion
// of the code is not in the short-code table.
type DomainCode struct {
	Language string
	Domain   string
	Mobile   bool
}

// HasDomain reports whether the project portion of the code resolved to
// a known domain.
func (d DomainCode) HasDomain() bool {
	return d.Domain != ""
}

// ParseDomainCode parses a domain code into language, project domain,
// and mobile flag. It returns false for input matching none of the
// documented shapes.
func ParseDomainCode(code string) (DomainCode, bool) {
	// The code has 1-3 parts separated by periods. A third part keeps
	// any remaining periods.
	parts := strings.SplitN(code, ".", 3)
	first := parts[0]

	// Codes starting with a listed project name follow their own
	// pattern: "commons.m" is the desktop site, "commons.m.m" mobile.
	if domain, ok := wikimediaProjects[first]; ok {
		return DomainCode{Language: "en", Domain: domain, Mobile: len(parts) == 3}, true
	}

	switch len(parts) {
	case 1:
		// A lone quoted blank appears in the wild and resolves to
		// wikifunctions. Not documented upstream.
		if first == `""` {
			return DomainCode{Language: "en", Domain: "wikifunctions.org"}, true
		}
		// One part is a language code on desktop wikipedia.org,
		// e.g. "en" or "no".
		return DomainCode{Language: first, Domain: "wikipedia.org"}, true
	case 2:
		// "m" and "zero" mark mobile wikipedia.org pages, e.g.
		// "en.m" or "no.zero".
		if parts[1] == "m" || parts[1] == "zero" {
			return DomainCode{Language: first, Domain: "wikipedia.org", Mobile: true}, true
		}
		// Any other second part is a sister-project short code,
		// e.g. "en.b" for en.wikibooks.org.
		return DomainCode{Language: first, Domain: domains[parts[1]]}, true
	case 3:
		// Three parts is a mobile sister-project page, e.g.
		// "en.m.b" for en.m.wikibooks.org.
		return DomainCode{Language: first, Domain: domains[parts[2]], Mobile: true}, true
	}

	// Input is untrusted; fail rather than guess a shape.
	return DomainCode{}, false
}
