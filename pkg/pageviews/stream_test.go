package pageviews

import (
	"iter"
	"regexp"
	"testing"

	"github.com/ajitpratap0/pvstream/pkg/errors"
)

func lineSource(lines ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, line := range lines {
			if !yield(line, nil) {
				return
			}
		}
	}
}

func collect(seq iter.Seq2[*Record, error]) (records []*Record, errs []error) {
	for rec, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, rec)
	}
	return records, errs
}

func TestStream(t *testing.T) {
	source := lineSource(
		"en.m Copenhagen 54 0",
		"uk.b Ядро_Linux/Модулі 2 0",
		"de Hauptseite 100 0",
	)

	records, errs := collect(Stream(source, nil))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].PageTitle != "Copenhagen" || records[2].PageTitle != "Hauptseite" {
		t.Error("records out of order")
	}
}

func TestStreamAppliesFilters(t *testing.T) {
	source := lineSource(
		"en.m Copenhagen 54 0",
		"en.m London 200 0",
		"en Paris 200 0",
	)
	filters := &Filters{
		Mobile:   Bool(true),
		MinViews: Uint32(100),
	}

	records, errs := collect(Stream(source, filters))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(records) != 1 || records[0].PageTitle != "London" {
		t.Fatalf("got %v, want only London", records)
	}
}

func TestStreamPreFilterSkipsLines(t *testing.T) {
	source := lineSource(
		"en.m Copenhagen 54 0",
		"de Hauptseite 100 0",
		"en London 30 0",
	)
	filters := &Filters{LineRegex: regexp.MustCompile(`^en`)}

	records, errs := collect(Stream(source, filters))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	for _, rec := range records {
		if rec.Parsed.Language != "en" {
			t.Errorf("unexpected record %q", rec.DomainCode)
		}
	}
}

func TestStreamFailuresPassFilters(t *testing.T) {
	readErr := errors.New(errors.ErrorTypeRead, "stream truncated")
	source := func(yield func(string, error) bool) {
		if !yield("en.m Copenhagen 54 0", nil) {
			return
		}
		if !yield("completely-broken", nil) { // parses with missing fields
			return
		}
		if !yield("", readErr) {
			return
		}
		yield("en.m London 200 0", nil)
	}

	// Filters that would reject everything must still pass failures.
	filters := &Filters{
		LineRegex: regexp.MustCompile(`^en\.m `),
		MinViews:  Uint32(1000),
	}

	var errs []error
	var records []*Record
	for rec, err := range Stream(source, filters) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, rec)
	}

	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
	// The read failure survives; the malformed line was rejected by the
	// line regex before parsing, so only one failure comes through.
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	if !errors.IsType(errs[0], errors.ErrorTypeRead) {
		t.Errorf("error type = %v, want read", errs[0])
	}
}

func TestStreamYieldsParseFailures(t *testing.T) {
	source := lineSource(
		"en.m Copenhagen 54 0",
		"en Broken abc 0",
		"en.m London 200 0",
	)

	var sawFailure bool
	var titles []string
	for rec, err := range Stream(source, nil) {
		if err != nil {
			sawFailure = true
			if !errors.IsType(err, errors.ErrorTypeInvalidField) {
				t.Errorf("error type = %v, want invalid_field", err)
			}
			continue
		}
		titles = append(titles, rec.PageTitle)
	}

	if !sawFailure {
		t.Error("parse failure was dropped")
	}
	if len(titles) != 2 || titles[0] != "Copenhagen" || titles[1] != "London" {
		t.Errorf("titles = %v", titles)
	}
}

func TestStreamIsLazy(t *testing.T) {
	var pulled int
	source := func(yield func(string, error) bool) {
		// Unbounded source; only consumer demand bounds it.
		for {
			pulled++
			if !yield("en Main_Page 1 0", nil) {
				return
			}
		}
	}

	var got int
	for range Stream(source, nil) {
		got++
		if got == 3 {
			break
		}
	}

	if got != 3 {
		t.Fatalf("got %d records, want 3", got)
	}
	if pulled != 3 {
		t.Errorf("source pulled %d times, want 3", pulled)
	}
}
