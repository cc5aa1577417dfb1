package pipeline

import (
	"regexp"

	"github.com/ajitpratap0/pvstream/pkg/config"
	"github.com/ajitpratap0/pvstream/pkg/errors"
	"github.com/ajitpratap0/pvstream/pkg/pageviews"
)

// compileFilters turns filter configuration into the runtime filter
// set. Regex patterns compile once here; a bad pattern fails the run
// before any line is read.
func compileFilters(cfg *config.FiltersConfig) (*pageviews.Filters, error) {
	filters := &pageviews.Filters{
		DomainCodes: cfg.DomainCodes,
		MinViews:    cfg.MinViews,
		MaxViews:    cfg.MaxViews,
		Languages:   cfg.Languages,
		Domains:     cfg.Domains,
		Mobile:      cfg.Mobile,
	}

	if cfg.LineRegex != "" {
		re, err := regexp.Compile(cfg.LineRegex)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid line_regex").
				WithDetail("pattern", cfg.LineRegex)
		}
		filters.LineRegex = re
	}

	if cfg.PageTitle != "" {
		re, err := regexp.Compile(cfg.PageTitle)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid page_title pattern").
				WithDetail("pattern", cfg.PageTitle)
		}
		filters.PageTitle = re
	}

	return filters, nil
}
