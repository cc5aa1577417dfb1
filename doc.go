// Package pvstream streams, filters, and columnar-encodes Wikimedia's
// hourly pageview dumps.
//
// An hourly dump is a gzip-compressed text file with one line per
// (domain, page) pair. pvstream turns those files into compact columnar
// artifacts without ever materializing a whole file: lines are pulled
// one at a time through a lazy pipeline of pre-parse filtering, parsing,
// post-parse filtering, and bounded-size Arrow chunk encoding, and each
// finished chunk is appended to the artifact before the next begins.
//
// # Architecture
//
// The pipeline is strictly pull based. Nothing is read, parsed, or
// buffered beyond the chunk currently being filled, so memory use is
// bounded by the batch size regardless of dump size. Malformed lines
// never abort a run by default; they are surfaced as typed error
// elements interleaved with records so callers can count or fail fast.
//
// # Quick Start
//
// Export the English mobile pages with at least 100 views:
//
//	import (
//	    "context"
//
//	    "github.com/ajitpratap0/pvstream/internal/pipeline"
//	    "github.com/ajitpratap0/pvstream/pkg/config"
//	    "github.com/ajitpratap0/pvstream/pkg/logger"
//	    "github.com/ajitpratap0/pvstream/pkg/pageviews"
//	)
//
//	cfg := config.New()
//	cfg.Source.Location = "pageviews-20250601-000000.gz"
//	cfg.Filters.Languages = []string{"en"}
//	cfg.Filters.MinViews = pageviews.Uint32(100)
//	cfg.Filters.Mobile = pageviews.Bool(true)
//	cfg.Output.Format = "parquet"
//
//	p, err := pipeline.New(cfg, logger.Get())
//	if err != nil {
//	    return err
//	}
//	result, err := p.Run(context.Background())
//
// Or from the command line:
//
//	pvstream run pageviews-20250601-000000.gz \
//	    --languages en --min-views 100 --mobile --format parquet
//
// # Key Packages
//
//	pkg/pageviews    - Line and domain-code parsing, two-stage filtering
//	pkg/chunk        - Bounded Arrow record batches with dictionary columns
//	pkg/stream       - Local and HTTP dump sources with decompression
//	pkg/formats      - Parquet, Arrow IPC, Avro, CSV and JSONL writers
//	pkg/upload       - S3 and GCS artifact uploaders
//	internal/pipeline - Run orchestration
package pvstream
