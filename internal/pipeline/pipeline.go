// Package pipeline orchestrates a full dump-to-artifact run,
// streaming raw pageview lines through filtering, parsing and chunk
// encoding into a columnar artifact, with optional object storage
// upload at the end.
//
// # Stages
//
// A run flows through fixed stages:
//   - Open: the dump source is opened (local file or HTTP) and wired
//     through the decompressor
//   - Process: lines are filtered, parsed, filtered again, batched
//     into Arrow chunks and appended to the artifact
//   - Upload: the finished artifact is optionally pushed to S3 or GCS
//
// # Failure Handling
//
// Per-line failures (read errors, malformed lines) are counted and
// skipped by default so one corrupt line cannot sink an hour of
// traffic. With FailFast enabled the first such failure aborts the
// run. Batch corruption always aborts: a chunk whose builders failed
// mid-append cannot be trusted.
//
// # Basic Usage
//
//	cfg := config.New()
//	cfg.Source.Location = "pageviews-20250601-000000.gz"
//	cfg.Output.Format = "parquet"
//
//	p, err := pipeline.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	result, err := p.Run(ctx)
package pipeline

import (
	"context"
	stderrors "errors"
	"iter"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pvstream/pkg/chunk"
	"github.com/ajitpratap0/pvstream/pkg/clients"
	"github.com/ajitpratap0/pvstream/pkg/config"
	"github.com/ajitpratap0/pvstream/pkg/errors"
	"github.com/ajitpratap0/pvstream/pkg/formats"
	"github.com/ajitpratap0/pvstream/pkg/metrics"
	"github.com/ajitpratap0/pvstream/pkg/observability"
	"github.com/ajitpratap0/pvstream/pkg/pageviews"
	"github.com/ajitpratap0/pvstream/pkg/performance"
	"github.com/ajitpratap0/pvstream/pkg/stream"
	"github.com/ajitpratap0/pvstream/pkg/upload"
)

// Pipeline executes one dump-to-artifact run. Create it with New and
// run it once; a Pipeline is not reusable.
type Pipeline struct {
	cfg        *config.Config
	logger     *zap.Logger
	tracer     *observability.StageTracer
	filters    *pageviews.Filters
	format     formats.Format
	sourceKind string
	httpClient *clients.HTTPClient

	// Pre-bound hot path counters; per-line WithLabelValues lookups
	// cost more than the work they measure.
	mLines        prometheus.Counter
	mParsedOK     prometheus.Counter
	mParsedFail   prometheus.Counter
	mFilteredPre  prometheus.Counter
	mFilteredPost prometheus.Counter
	mChunks       prometheus.Counter
	mWriteLatency prometheus.Observer

	// Run counters
	linesRead       int64
	recordsParsed   int64
	parseFailures   int64
	readFailures    int64
	filteredLines   int64
	filteredRecords int64
	rowsWritten     int64
	chunksWritten   int64

	abortErr error
}

// Result summarizes a finished run
type Result struct {
	LinesRead        int64
	RecordsParsed    int64
	ParseFailures    int64
	ReadFailures     int64
	FilteredLines    int64
	FilteredRecords  int64
	Rows             int64
	Chunks           int64
	BytesRead        int64
	ArtifactPath     string
	ArtifactBytes    int64
	UploadKey        string
	Uploaded         bool
	Duration         time.Duration
	RecordsPerSecond float64
}

// New validates the configuration and prepares a run.
func New(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid configuration")
	}

	filters, err := compileFilters(&cfg.Filters)
	if err != nil {
		return nil, err
	}

	format, err := formats.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	sourceKind := "file"
	if stream.IsRemote(cfg.Source.Location) {
		sourceKind = "http"
	}

	return &Pipeline{
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "pipeline"), zap.String("run", cfg.Name)),
		tracer:     observability.NewStageTracer(sourceKind, string(format)),
		filters:    filters,
		format:     format,
		sourceKind: sourceKind,

		mLines:        metrics.LinesRead.WithLabelValues(sourceKind),
		mParsedOK:     metrics.RecordsParsed.WithLabelValues(sourceKind, "success"),
		mParsedFail:   metrics.RecordsParsed.WithLabelValues(sourceKind, "failure"),
		mFilteredPre:  metrics.FilteredOut.WithLabelValues(sourceKind, "pre"),
		mFilteredPost: metrics.FilteredOut.WithLabelValues(sourceKind, "post"),
		mChunks:       metrics.ChunksEmitted.WithLabelValues(sourceKind),
		mWriteLatency: metrics.StageLatency.WithLabelValues("write", sourceKind),
	}, nil
}

// Run executes the pipeline and blocks until the artifact is complete.
// The returned Result is valid only when the error is nil.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	monitor := performance.NewRunMonitor(p.cfg.Name)
	throughput := metrics.NewThroughputTracker(p.sourceKind, string(p.format))

	p.logger.Info("starting run",
		zap.String("source", p.cfg.Source.Location),
		zap.String("format", string(p.format)),
		zap.Int("batch_size", p.cfg.Batch.Size),
		zap.Bool("fail_fast", p.cfg.FailFast))

	var reader *stream.LineReader
	err := p.tracer.TraceStage(ctx, "open", func(ctx context.Context) error {
		var err error
		reader, err = stream.Open(ctx, p.cfg.Source.Location, p.sourceOptions())
		return err
	})
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	defer p.closeHTTPClient()

	artifactPath := p.artifactPath()
	artifact, err := os.Create(artifactPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create artifact").
			WithDetail("path", artifactPath)
	}

	writer, err := formats.NewWriter(artifact, &formats.WriterConfig{
		Format:      p.format,
		Compression: p.cfg.Output.Compression,
	})
	if err != nil {
		artifact.Close()
		os.Remove(artifactPath)
		return nil, err
	}

	processErr := p.tracer.TraceStage(ctx, "process", func(ctx context.Context) error {
		return p.process(ctx, reader, writer, monitor, throughput)
	})

	if err := writer.Close(); err != nil && processErr == nil {
		processErr = err
	}
	if err := artifact.Close(); err != nil && processErr == nil {
		processErr = errors.Wrap(err, errors.ErrorTypeFile, "failed to close artifact")
	}
	if processErr != nil {
		// A failed run leaves no partial artifact behind.
		os.Remove(artifactPath)
		return nil, processErr
	}

	artifactBytes := writer.BytesWritten()
	metrics.ArtifactBytes.WithLabelValues(string(p.format)).Add(float64(artifactBytes))
	monitor.IncrementBytes(artifactBytes)

	uploaded := false
	uploadKey := ""
	if p.cfg.Upload.HasUpload() {
		err := p.tracer.TraceStage(ctx, "upload", func(ctx context.Context) error {
			var err error
			uploadKey, err = p.upload(ctx, artifactPath, artifactBytes)
			return err
		})
		if err != nil {
			// The local artifact is complete; the caller can retry the
			// upload without reprocessing.
			return nil, err
		}
		uploaded = true
	}

	stats := monitor.Finish()
	rate := throughput.GetAndReset()

	p.logger.Info("run complete",
		zap.Int64("lines_read", p.linesRead),
		zap.Int64("rows_written", p.rowsWritten),
		zap.Int64("chunks", p.chunksWritten),
		zap.Int64("parse_failures", p.parseFailures),
		zap.Int64("filtered", p.filteredLines+p.filteredRecords),
		zap.Int64("artifact_bytes", artifactBytes),
		zap.Duration("duration", time.Since(start)))
	p.logger.Debug("run summary", zap.String("report", stats.Report()))

	return &Result{
		LinesRead:        p.linesRead,
		RecordsParsed:    p.recordsParsed,
		ParseFailures:    p.parseFailures,
		ReadFailures:     p.readFailures,
		FilteredLines:    p.filteredLines,
		FilteredRecords:  p.filteredRecords,
		Rows:             p.rowsWritten,
		Chunks:           p.chunksWritten,
		BytesRead:        reader.BytesRead(),
		ArtifactPath:     artifactPath,
		ArtifactBytes:    artifactBytes,
		UploadKey:        uploadKey,
		Uploaded:         uploaded,
		Duration:         time.Since(start),
		RecordsPerSecond: rate,
	}, nil
}

// process drives the record stream through chunk encoding into the
// writer. It owns the per-chunk bookkeeping; per-line bookkeeping
// happens inside records.
func (p *Pipeline) process(ctx context.Context, reader *stream.LineReader, writer formats.Writer, monitor *performance.RunMonitor, throughput *metrics.ThroughputTracker) error {
	for chunkRecord, err := range chunk.Encode(p.records(reader), p.cfg.Batch.Size) {
		if err != nil {
			return err
		}
		if p.abortErr != nil {
			chunkRecord.Release()
			return p.abortErr
		}
		if err := ctx.Err(); err != nil {
			chunkRecord.Release()
			return err
		}

		rows := chunkRecord.NumRows()
		writeStart := time.Now()
		writeErr := writer.WriteChunk(chunkRecord)
		p.mWriteLatency.Observe(float64(time.Since(writeStart).Nanoseconds()))
		chunkRecord.Release()
		if writeErr != nil {
			return writeErr
		}

		p.chunksWritten++
		p.rowsWritten += rows
		p.mChunks.Inc()
		metrics.ChunkRows.Observe(float64(rows))
		monitor.IncrementRecords(rows)
		throughput.Increment(rows)
	}

	if p.abortErr != nil {
		return p.abortErr
	}
	return ctx.Err()
}

// records adapts the line reader into the record sequence consumed by
// chunk encoding, applying both filter stages and counting every
// outcome. Failures are consumed here rather than yielded; under
// FailFast the first one is stashed in abortErr and the sequence ends.
func (p *Pipeline) records(reader *stream.LineReader) iter.Seq2[*pageviews.Record, error] {
	return func(yield func(*pageviews.Record, error) bool) {
		for line, err := range reader.Lines() {
			if err != nil {
				p.readFailures++
				metrics.ParseFailures.WithLabelValues(p.sourceKind, "read").Inc()
				if p.cfg.FailFast {
					p.abortErr = err
					return
				}
				continue
			}

			p.linesRead++
			p.mLines.Inc()

			if !p.filters.PrePass(line) {
				p.filteredLines++
				p.mFilteredPre.Inc()
				continue
			}

			record, err := pageviews.ParseLine(line)
			if err != nil {
				p.parseFailures++
				p.mParsedFail.Inc()
				metrics.ParseFailures.WithLabelValues(p.sourceKind, failureKind(err)).Inc()
				if p.cfg.FailFast {
					var perr *errors.Error
					if stderrors.As(err, &perr) {
						perr.WithDetail("line_number", p.linesRead)
					}
					p.abortErr = err
					return
				}
				continue
			}

			p.recordsParsed++
			p.mParsedOK.Inc()

			if !p.filters.PostPass(record) {
				p.filteredRecords++
				p.mFilteredPost.Inc()
				continue
			}

			if !yield(record, nil) {
				return
			}
		}
	}
}

// failureKind maps a per-line error to its metric label.
func failureKind(err error) string {
	field := errors.Field(err)
	switch {
	case errors.IsType(err, errors.ErrorTypeRead):
		return "read"
	case errors.IsType(err, errors.ErrorTypeMissingField):
		if field != "" {
			return "missing_" + field
		}
		return "missing_field"
	case errors.IsType(err, errors.ErrorTypeInvalidField):
		if field != "" {
			return "invalid_" + field
		}
		return "invalid_field"
	default:
		return "other"
	}
}

func (p *Pipeline) sourceOptions() *stream.Options {
	opts := &stream.Options{
		Compression: p.cfg.Source.Compression,
		BufferSize:  p.cfg.Source.BufferBytes,
		MaxLineSize: p.cfg.Source.MaxLineBytes,
	}

	if p.sourceKind == "http" {
		httpCfg := clients.DefaultHTTPConfig()
		if p.cfg.HTTP.Timeout > 0 {
			httpCfg.RequestTimeout = p.cfg.HTTP.Timeout
		}
		if p.cfg.HTTP.ConnectTimeout > 0 {
			httpCfg.DialTimeout = p.cfg.HTTP.ConnectTimeout
		}
		if p.cfg.HTTP.MaxIdleConns > 0 {
			httpCfg.MaxIdleConns = p.cfg.HTTP.MaxIdleConns
		}
		if p.cfg.HTTP.UserAgent != "" {
			httpCfg.UserAgent = p.cfg.HTTP.UserAgent
		}
		p.httpClient = clients.NewHTTPClient(httpCfg, p.logger)
		opts.HTTPClient = p.httpClient
	}

	return opts
}

func (p *Pipeline) closeHTTPClient() {
	if p.httpClient != nil {
		p.httpClient.Close()
	}
}

// artifactPath derives the output location: the configured path, or
// the source basename with the format extension next to the working
// directory.
func (p *Pipeline) artifactPath() string {
	if p.cfg.Output.Path != "" {
		return p.cfg.Output.Path
	}

	base := p.cfg.Source.Location
	if stream.IsRemote(base) {
		if u, err := url.Parse(base); err == nil {
			base = u.Path
		}
	}

	name := filepath.Base(base)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "pageviews"
	}
	return name + p.format.Extension()
}

// upload pushes the finished artifact to the configured provider.
func (p *Pipeline) upload(ctx context.Context, artifactPath string, artifactBytes int64) (string, error) {
	uploadCfg := p.uploadConfig()

	uploader, err := upload.New(ctx, uploadCfg)
	if err != nil {
		return "", err
	}
	defer uploader.Close()

	artifact, err := os.Open(artifactPath)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to open artifact for upload").
			WithDetail("path", artifactPath)
	}
	defer artifact.Close()

	key := upload.ObjectKey(uploadCfg.Prefix, filepath.Base(artifactPath))
	if err := uploader.Upload(ctx, key, artifact, p.format.ContentType()); err != nil {
		return "", err
	}

	metrics.UploadBytes.WithLabelValues(uploader.Provider()).Add(float64(artifactBytes))
	p.logger.Info("artifact uploaded",
		zap.String("provider", uploader.Provider()),
		zap.String("bucket", uploadCfg.Bucket),
		zap.String("key", key),
		zap.Int64("bytes", artifactBytes))

	return key, nil
}

func (p *Pipeline) uploadConfig() *upload.Config {
	switch p.cfg.Upload.Provider {
	case upload.ProviderS3:
		s3cfg := p.cfg.Upload.S3
		return &upload.Config{
			Provider:    upload.ProviderS3,
			Bucket:      s3cfg.Bucket,
			Prefix:      s3cfg.Prefix,
			Region:      s3cfg.Region,
			PartSize:    int64(s3cfg.PartSizeMB) << 20,
			Concurrency: s3cfg.Concurrency,
		}
	case upload.ProviderGCS:
		gcsCfg := p.cfg.Upload.GCS
		return &upload.Config{
			Provider:        upload.ProviderGCS,
			Bucket:          gcsCfg.Bucket,
			Prefix:          gcsCfg.Prefix,
			CredentialsFile: gcsCfg.CredentialsFile,
		}
	default:
		return &upload.Config{Provider: p.cfg.Upload.Provider}
	}
}
