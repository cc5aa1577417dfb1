package pageviews

import "iter"

// Stream composes pre-filter, parse, and post-filter over a line
// sequence into one lazy record sequence.
//
// Elements are produced one at a time as the consumer pulls; stopping
// early stops the source. Read errors from the line sequence and
// per-line parse failures are yielded as error elements in input order,
// interleaved with records, and are never dropped by either filter
// stage. A nil filters value passes everything.
func Stream(lines iter.Seq2[string, error], filters *Filters) iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		for line, err := range lines {
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			if !filters.PrePass(line) {
				continue
			}
			record, err := ParseLine(line)
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			if !filters.PostPass(record) {
				continue
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}
