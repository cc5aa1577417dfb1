package formats

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/pvstream/pkg/errors"
)

// rowValues is one pageview row decoded out of a chunk
type rowValues struct {
	DomainCode string
	PageTitle  string
	Views      uint32
	Language   string
	Domain     string
	HasDomain  bool
	Mobile     bool
}

// rowReader decodes rows from one chunk for the row-oriented writers.
// Column positions are fixed by the chunk schema.
type rowReader struct {
	domainCode       *array.Dictionary
	domainCodeValues *array.String
	pageTitle        *array.String
	views            *array.Uint32
	language         *array.Dictionary
	languageValues   *array.String
	domain           *array.Dictionary
	domainValues     *array.String
	mobile           *array.Boolean
	rows             int
}

func newRowReader(record arrow.Record) (*rowReader, error) {
	if err := checkSchema(record); err != nil {
		return nil, err
	}

	r := &rowReader{rows: int(record.NumRows())}

	var ok bool
	if r.domainCode, ok = record.Column(0).(*array.Dictionary); !ok {
		return nil, errors.New(errors.ErrorTypeInternal, "domain_code column is not dictionary encoded")
	}
	if r.domainCodeValues, ok = r.domainCode.Dictionary().(*array.String); !ok {
		return nil, errors.New(errors.ErrorTypeInternal, "domain_code dictionary is not utf8")
	}
	if r.pageTitle, ok = record.Column(1).(*array.String); !ok {
		return nil, errors.New(errors.ErrorTypeInternal, "page_title column is not utf8")
	}
	if r.views, ok = record.Column(2).(*array.Uint32); !ok {
		return nil, errors.New(errors.ErrorTypeInternal, "views column is not uint32")
	}
	if r.language, ok = record.Column(3).(*array.Dictionary); !ok {
		return nil, errors.New(errors.ErrorTypeInternal, "language column is not dictionary encoded")
	}
	if r.languageValues, ok = r.language.Dictionary().(*array.String); !ok {
		return nil, errors.New(errors.ErrorTypeInternal, "language dictionary is not utf8")
	}
	if r.domain, ok = record.Column(4).(*array.Dictionary); !ok {
		return nil, errors.New(errors.ErrorTypeInternal, "domain column is not dictionary encoded")
	}
	if r.domainValues, ok = r.domain.Dictionary().(*array.String); !ok {
		return nil, errors.New(errors.ErrorTypeInternal, "domain dictionary is not utf8")
	}
	if r.mobile, ok = record.Column(5).(*array.Boolean); !ok {
		return nil, errors.New(errors.ErrorTypeInternal, "mobile column is not boolean")
	}

	return r, nil
}

func (r *rowReader) len() int { return r.rows }

func (r *rowReader) row(i int) rowValues {
	v := rowValues{
		DomainCode: r.domainCodeValues.Value(r.domainCode.GetValueIndex(i)),
		PageTitle:  r.pageTitle.Value(i),
		Views:      r.views.Value(i),
		Language:   r.languageValues.Value(r.language.GetValueIndex(i)),
		Mobile:     r.mobile.Value(i),
	}
	if !r.domain.IsNull(i) {
		v.Domain = r.domainValues.Value(r.domain.GetValueIndex(i))
		v.HasDomain = true
	}
	return v
}
