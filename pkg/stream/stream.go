// Package stream opens pageview dump sources and yields their lines.
//
// A source is either a path on the local filesystem or an http(s) URL,
// typically pointing at one of the hourly .gz files published under
// dumps.wikimedia.org/other/pageviews. The stream is decompressed and
// split into lines on the fly, so multi-gigabyte dumps are processed
// without ever being held in memory.
package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ajitpratap0/pvstream/pkg/clients"
	"github.com/ajitpratap0/pvstream/pkg/compression"
	"github.com/ajitpratap0/pvstream/pkg/errors"
	"github.com/ajitpratap0/pvstream/pkg/logger"
)

const (
	// DefaultBufferSize is the read buffer for line scanning. Dump
	// lines are short; the large buffer amortizes decompressor calls.
	DefaultBufferSize = 256 * 1024

	// DefaultMaxLineSize bounds a single line. Anything longer is
	// treated as a corrupt stream.
	DefaultMaxLineSize = 1 << 20

	// maxDownloadBytes caps DownloadToFile at 1GiB, ample for hourly
	// dump files.
	maxDownloadBytes = 1 << 30
)

// Options configures how a source is opened. The zero value selects
// sane defaults with compression detected from the location extension.
type Options struct {
	// Compression names the algorithm of the source stream. Empty
	// means detect from the file extension.
	Compression string

	// BufferSize is the scanner read buffer in bytes.
	BufferSize int

	// MaxLineSize bounds a single line in bytes.
	MaxLineSize int

	// HTTPClient fetches remote sources. A default client is created
	// when nil and closed together with the reader.
	HTTPClient *clients.HTTPClient
}

// IsRemote reports whether a location is fetched over HTTP rather than
// opened from the local filesystem.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// DumpURL returns the canonical dumps.wikimedia.org URL of the hourly
// pageviews file covering the given UTC hour.
func DumpURL(hour time.Time) string {
	hour = hour.UTC().Truncate(time.Hour)
	return fmt.Sprintf("https://dumps.wikimedia.org/other/pageviews/%s/%s/pageviews-%s-%s0000.gz",
		hour.Format("2006"), hour.Format("2006-01"), hour.Format("20060102"), hour.Format("15"))
}

// countingReader tracks compressed bytes consumed from the source
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	atomic.AddInt64(&c.n, int64(n))
	return n, err
}

// LineReader owns the whole I/O stack for one source: the file handle
// or response body, the decompressor, and the line scanner.
type LineReader struct {
	location   string
	raw        io.ReadCloser
	counted    *countingReader
	decomp     io.ReadCloser
	scanner    *bufio.Scanner
	client     *clients.HTTPClient
	ownsClient bool
}

// Open opens a dump source for line-by-line reading. The context covers
// the lifetime of a remote fetch: cancelling it fails subsequent reads.
func Open(ctx context.Context, location string, opts *Options) (*LineReader, error) {
	if opts == nil {
		opts = &Options{}
	}

	bufferSize := opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	maxLineSize := opts.MaxLineSize
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}
	if maxLineSize < bufferSize {
		maxLineSize = bufferSize
	}

	algorithm, err := detectAlgorithm(location, opts.Compression)
	if err != nil {
		return nil, err
	}

	r := &LineReader{location: location}

	if IsRemote(location) {
		r.client = opts.HTTPClient
		if r.client == nil {
			r.client = clients.NewHTTPClient(nil, logger.Get())
			r.ownsClient = true
		}
		resp, err := r.client.Get(ctx, location)
		if err != nil {
			r.closeClient()
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to fetch dump").
				WithDetail("url", location)
		}
		r.raw = resp.Body
	} else {
		f, err := os.Open(location)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open dump file").
				WithDetail("path", location)
		}
		r.raw = f
	}

	r.counted = &countingReader{r: r.raw}
	r.decomp, err = compression.NewReader(r.counted, algorithm)
	if err != nil {
		r.raw.Close()
		r.closeClient()
		return nil, errors.Wrap(err, errors.ErrorTypeRead, "failed to open decompressor").
			WithDetail("algorithm", string(algorithm))
	}

	r.scanner = bufio.NewScanner(r.decomp)
	r.scanner.Buffer(make([]byte, bufferSize), maxLineSize)

	return r, nil
}

// detectAlgorithm resolves the stream compression from an explicit name
// or the location extension. For URLs only the path is considered.
func detectAlgorithm(location, explicit string) (compression.Algorithm, error) {
	if explicit != "" && explicit != "auto" {
		return compression.ParseAlgorithm(explicit)
	}

	name := location
	if IsRemote(location) {
		if u, err := url.Parse(location); err == nil {
			name = u.Path
		}
	}
	return compression.Detect(name), nil
}

// Lines yields the decompressed lines of the source in file order. A
// failed read yields one ErrorTypeRead element and ends the sequence;
// consumers stop early by breaking out of the loop.
func (r *LineReader) Lines() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for r.scanner.Scan() {
			if !yield(r.scanner.Text(), nil) {
				return
			}
		}
		if err := r.scanner.Err(); err != nil {
			yield("", errors.Wrap(err, errors.ErrorTypeRead, "failed to read line").
				WithDetail("source", r.location))
		}
	}
}

// BytesRead returns compressed bytes consumed from the source so far
func (r *LineReader) BytesRead() int64 {
	return atomic.LoadInt64(&r.counted.n)
}

// Close releases the decompressor and the underlying file or response
// body
func (r *LineReader) Close() error {
	var firstErr error
	if r.decomp != nil {
		if err := r.decomp.Close(); err != nil {
			firstErr = err
		}
	}
	if r.raw != nil {
		if err := r.raw.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.closeClient()
	return firstErr
}

func (r *LineReader) closeClient() {
	if r.ownsClient && r.client != nil {
		r.client.Close()
	}
}

// DownloadToFile fetches a remote dump and stores it on the local
// filesystem, creating or truncating the destination. Use it with Open
// when the same file is parsed more than once; a single pass is faster
// streamed directly from the URL.
//
// The download is capped at 1GiB as a safety measure.
func DownloadToFile(ctx context.Context, client *clients.HTTPClient, srcURL, destPath string) (int64, error) {
	resp, err := client.Get(ctx, srcURL)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeConnection, "failed to fetch dump").
			WithDetail("url", srcURL)
	}
	defer resp.Body.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to create destination").
			WithDetail("path", destPath)
	}

	written, err := io.Copy(dest, io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		dest.Close()
		return written, errors.Wrap(err, errors.ErrorTypeRead, "download failed").
			WithDetail("url", srcURL)
	}

	if err := dest.Close(); err != nil {
		return written, errors.Wrap(err, errors.ErrorTypeFile, "failed to close destination").
			WithDetail("path", destPath)
	}

	return written, nil
}
