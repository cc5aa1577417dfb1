// Package pageviews parses and filters lines from Wikimedia's hourly
// pageview dumps.
//
// Each line in a dump is space separated with at least three columns:
//
//	<domain_code> <page_title> <views> ...
//
// The first column is a dot separated code identifying the language
// edition, the project, and whether the page was served from the mobile
// site. ParseDomainCode breaks it into those three dimensions, ParseLine
// turns a whole line into a Record, and Filters selects subsets of a
// dump without parsing lines the caller does not want.
//
// # Filtering
//
// Filtering happens in two stages. The line regex runs against the raw
// line before parsing, so a selective pattern skips the parse cost of
// rejected lines entirely. The remaining predicates run against the
// parsed Record and are ANDed together; unset predicates always pass.
//
// # Failure Handling
//
// Stream yields per-line failures interleaved with records instead of
// stopping: a malformed line or a read error becomes an error element
// and the sequence continues. Filters never drop failures, so callers
// decide whether to count, log, or abort.
//
// # Usage
//
//	filters := &pageviews.Filters{
//	    Languages: []string{"en"},
//	    MinViews:  pageviews.Uint32(100),
//	}
//
//	for rec, err := range pageviews.Stream(lines, filters) {
//	    if err != nil {
//	        log.Printf("skipping line: %v", err)
//	        continue
//	    }
//	    fmt.Println(rec.PageTitle, rec.Views)
//	}
package pageviews
