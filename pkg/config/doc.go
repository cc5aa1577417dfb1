// Package config provides unified configuration management for pvstream.
//
// A single Config structure describes a whole pipeline run: the dump
// source, both filter stages, chunk sizing, the output artifact, an
// optional upload target, and observability switches.
//
// # Key Features
//
// - Config: single structure covering a run end to end
// - Structured sections: Source, Filters, Batch, Output, Upload, HTTP, Observability
// - Environment variable substitution with ${VAR_NAME} syntax
// - Automatic defaults and validation
//
// # Usage
//
// ## Basic Configuration Loading
//
//	cfg, err := config.LoadFile("run.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// ## Environment Variable Substitution
//
//	# run.yaml
//	upload:
//	  provider: s3
//	  s3:
//	    bucket: ${PVSTREAM_BUCKET}
//	    region: ${AWS_REGION}
//
// ## Programmatic Creation
//
//	cfg := config.New()
//	cfg.Source.Location = "pageviews-20250601-000000.gz"
//	cfg.Filters.Languages = []string{"en"}
//	cfg.Output.Path = "pageviews.parquet"
//
// # Filter Semantics
//
// Every field in the filters section is optional. Empty strings, empty
// lists and absent numeric bounds are "not configured" and pass all
// records; configured predicates combine with AND. The line_regex field
// is the only pre-parse filter; everything else applies to parsed
// records.
//
// # Usage Pattern
//
// 1. Start from New() or LoadFile()
// 2. Overlay CLI flags on top
// 3. Validate() before running
// 4. Hand the Config to the pipeline
package config
