package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pvstream/internal/pipeline"
	"github.com/ajitpratap0/pvstream/pkg/chunk"
	"github.com/ajitpratap0/pvstream/pkg/clients"
	"github.com/ajitpratap0/pvstream/pkg/config"
	"github.com/ajitpratap0/pvstream/pkg/logger"
	"github.com/ajitpratap0/pvstream/pkg/observability"
	"github.com/ajitpratap0/pvstream/pkg/pageviews"
	"github.com/ajitpratap0/pvstream/pkg/stream"
)

// Set at build time via -ldflags "-X main.version=..."
var (
	version = "0.1.0"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "pvstream",
		Short: "pvstream - Wikimedia pageviews dump exporter",
		Long: `pvstream streams hourly Wikimedia pageviews dumps, filters them by
language, project, views and title, and writes the surviving records as a
columnar artifact (Parquet, Arrow IPC, Avro, CSV or JSONL), optionally
uploading it to S3 or GCS.`,
		SilenceUsage: true,
	}

	root.AddCommand(newRunCommand())
	root.AddCommand(newFetchCommand())
	root.AddCommand(newSchemaCommand())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pvstream v%s (commit %s, built %s)\n", version, commit, date)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runFlags mirrors the filter and output knobs exposed on the run
// command. Only flags the user actually set override the config file.
type runFlags struct {
	configFile  string
	lineRegex   string
	domainCodes []string
	pageTitle   string
	minViews    uint32
	maxViews    uint32
	languages   []string
	domains     []string
	mobile      bool
	batchSize   int
	format      string
	output      string
	compression string
	failFast    bool
	logLevel    string
	upload      string
	bucket      string
	prefix      string
	region      string
}

func newRunCommand() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <source>",
		Short: "Stream a dump into a columnar artifact",
		Long: `Run the export pipeline over one hourly dump. The source is a local
file or an http(s) URL; gzip, zstd and lz4 streams are decompressed
transparently based on the file extension.

Example:
  pvstream run https://dumps.wikimedia.org/other/pageviews/2025/2025-06/pageviews-20250601-000000.gz \
    --languages en,de --min-views 100 --format parquet --output top-pages.parquet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, args[0], flags)
			if err != nil {
				return err
			}
			return runPipeline(cfg)
		},
	}

	cmd.Flags().StringVarP(&flags.configFile, "config", "c", "", "Path to YAML run configuration (flags override it)")
	cmd.Flags().StringVar(&flags.lineRegex, "line-regex", "", "Regex matched against raw lines before parsing")
	cmd.Flags().StringSliceVar(&flags.domainCodes, "domain-codes", nil, "Keep only these exact domain codes (e.g. en,en.m)")
	cmd.Flags().StringVar(&flags.pageTitle, "page-title", "", "Regex matched against de-escaped page titles")
	cmd.Flags().Uint32Var(&flags.minViews, "min-views", 0, "Keep records with at least this many views")
	cmd.Flags().Uint32Var(&flags.maxViews, "max-views", 0, "Keep records with at most this many views")
	cmd.Flags().StringSliceVar(&flags.languages, "languages", nil, "Keep only these language codes")
	cmd.Flags().StringSliceVar(&flags.domains, "domains", nil, "Keep only these resolved project domains")
	cmd.Flags().BoolVar(&flags.mobile, "mobile", false, "Keep only mobile (true) or desktop (false) records")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", config.DefaultBatchSize, "Records per columnar chunk")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "parquet", "Artifact format (parquet, arrow, avro, csv, jsonl)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Artifact path (default: source basename plus format extension)")
	cmd.Flags().StringVar(&flags.compression, "compression", "", "Artifact compression (none, gzip, zstd, lz4, snappy)")
	cmd.Flags().BoolVar(&flags.failFast, "fail-fast", false, "Abort on the first malformed line instead of counting it")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&flags.upload, "upload", "", "Upload provider (s3, gcs)")
	cmd.Flags().StringVar(&flags.bucket, "bucket", "", "Upload bucket")
	cmd.Flags().StringVar(&flags.prefix, "prefix", "", "Upload key prefix")
	cmd.Flags().StringVar(&flags.region, "region", "", "S3 bucket region")

	return cmd
}

// buildConfig layers the run configuration: defaults, then the YAML
// file, then explicitly set flags.
func buildConfig(cmd *cobra.Command, source string, flags *runFlags) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if flags.configFile != "" {
		cfg, err = config.LoadFile(flags.configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.New()
	}

	cfg.Source.Location = source

	set := cmd.Flags().Changed
	if set("line-regex") {
		cfg.Filters.LineRegex = flags.lineRegex
	}
	if set("domain-codes") {
		cfg.Filters.DomainCodes = flags.domainCodes
	}
	if set("page-title") {
		cfg.Filters.PageTitle = flags.pageTitle
	}
	if set("min-views") {
		cfg.Filters.MinViews = pageviews.Uint32(flags.minViews)
	}
	if set("max-views") {
		cfg.Filters.MaxViews = pageviews.Uint32(flags.maxViews)
	}
	if set("languages") {
		cfg.Filters.Languages = flags.languages
	}
	if set("domains") {
		cfg.Filters.Domains = flags.domains
	}
	if set("mobile") {
		cfg.Filters.Mobile = pageviews.Bool(flags.mobile)
	}
	if set("batch-size") {
		cfg.Batch.Size = flags.batchSize
	}
	if set("format") {
		cfg.Output.Format = flags.format
	}
	if set("output") {
		cfg.Output.Path = flags.output
	}
	if set("compression") {
		cfg.Output.Compression = flags.compression
	}
	if set("fail-fast") {
		cfg.FailFast = flags.failFast
	}
	if set("log-level") {
		cfg.Observability.LogLevel = flags.logLevel
	}
	if set("upload") {
		cfg.Upload.Provider = flags.upload
	}
	if set("bucket") {
		cfg.Upload.S3.Bucket = flags.bucket
		cfg.Upload.GCS.Bucket = flags.bucket
	}
	if set("prefix") {
		cfg.Upload.S3.Prefix = flags.prefix
		cfg.Upload.GCS.Prefix = flags.prefix
	}
	if set("region") {
		cfg.Upload.S3.Region = flags.region
	}

	return cfg, nil
}

// runPipeline executes one configured run and prints its summary.
func runPipeline(cfg *config.Config) error {
	if err := logger.Init(logger.Config{Level: cfg.Observability.LogLevel, Encoding: "json"}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Observability.EnableTracing {
		tracingCfg := observability.DefaultConfig()
		tracingCfg.ServiceVersion = version
		tracingCfg.SamplingRate = cfg.Observability.TracingSampleRate
		if err := observability.Initialize(tracingCfg); err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	log := logger.Get().With(zap.String("component", "pvstream-cli"))

	p, err := pipeline.New(cfg, logger.Get())
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := p.Run(ctx)
	if cfg.Observability.EnableTracing {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := observability.Shutdown(shutdownCtx); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}
	if err != nil {
		return err
	}

	fmt.Printf("wrote %s (%d rows in %d chunks, %d bytes)\n",
		result.ArtifactPath, result.Rows, result.Chunks, result.ArtifactBytes)
	fmt.Printf("read %d lines in %v (%.0f records/s)\n",
		result.LinesRead, result.Duration.Round(time.Millisecond), result.RecordsPerSecond)
	if n := result.ParseFailures + result.ReadFailures; n > 0 {
		fmt.Printf("skipped %d malformed or unreadable lines\n", n)
	}
	if n := result.FilteredLines + result.FilteredRecords; n > 0 {
		fmt.Printf("filtered out %d lines\n", n)
	}
	if result.Uploaded {
		fmt.Printf("uploaded as %s\n", result.UploadKey)
	}

	return nil
}

func newFetchCommand() *cobra.Command {
	var output string
	var hour string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "fetch [url]",
		Short: "Download an hourly dump to a local file",
		Long: `Download a dump for repeated local processing. Pass either the full
URL or --hour with a UTC timestamp, which resolves to the canonical
dumps.wikimedia.org location.

Example:
  pvstream fetch --hour 2025-06-01T00 -o pageviews-20250601-000000.gz`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srcURL, err := resolveFetchURL(args, hour)
			if err != nil {
				return err
			}
			if output == "" {
				return fmt.Errorf("--output is required")
			}

			if err := logger.Init(logger.Config{Level: "info", Encoding: "json"}); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			httpCfg := clients.DefaultHTTPConfig()
			httpCfg.RequestTimeout = timeout
			client := clients.NewHTTPClient(httpCfg, logger.Get())
			defer func() { _ = client.Close() }()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			written, err := stream.DownloadToFile(ctx, client, srcURL, output)
			if err != nil {
				return err
			}
			fmt.Printf("downloaded %s (%d bytes) to %s\n", srcURL, written, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination path (required)")
	cmd.Flags().StringVar(&hour, "hour", "", "UTC hour of the dump, e.g. 2025-06-01T00")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Download timeout")

	return cmd
}

// resolveFetchURL picks the dump URL from the positional argument or
// the --hour shorthand.
func resolveFetchURL(args []string, hour string) (string, error) {
	if len(args) == 1 && hour != "" {
		return "", fmt.Errorf("pass either a URL or --hour, not both")
	}
	if len(args) == 1 {
		return args[0], nil
	}
	if hour == "" {
		return "", fmt.Errorf("a dump URL or --hour is required")
	}

	t, err := time.Parse("2006-01-02T15", hour)
	if err != nil {
		return "", fmt.Errorf("invalid --hour %q, expected e.g. 2025-06-01T00: %w", hour, err)
	}
	return stream.DumpURL(t), nil
}

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the columnar schema of produced artifacts",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(chunk.Schema())
		},
	}
}
