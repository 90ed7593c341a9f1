package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/IshaanNene/imgharvest/internal/fetcher"
	"github.com/IshaanNene/imgharvest/internal/observability"
	"github.com/IshaanNene/imgharvest/internal/pacing"
	"github.com/IshaanNene/imgharvest/internal/types"
)

// DefaultChunkSize is the write granularity for downloaded bodies.
const DefaultChunkSize = 1024

// Options configures a Downloader.
type Options struct {
	// Throttle is the pause before every request.
	Throttle pacing.Policy

	// RatePerSecond caps the request rate when > 0, on top of Throttle.
	RatePerSecond float64
	Burst         int

	// Retries is the number of extra attempts after a transport error.
	// HTTP errors are never retried.
	Retries    int
	RetryDelay pacing.Policy

	ChunkSize int
}

// Downloader retrieves the assets referenced by image records, one at a
// time, recording a failure per record instead of aborting the batch.
type Downloader struct {
	fetcher fetcher.Fetcher
	opts    Options
	limiter *rate.Limiter
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewDownloader creates a new media downloader.
func NewDownloader(f fetcher.Fetcher, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Downloader {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	d := &Downloader{
		fetcher: f,
		opts:    opts,
		metrics: metrics,
		logger:  logger.With("component", "media_downloader"),
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return d
}

// FetchAll downloads every record into outputDir and returns one outcome
// per record, in input order. The only fatal error is failing to create
// outputDir, which yields no outcomes. If ctx is cancelled the outcomes
// gathered so far are returned with the context's error.
func (d *Downloader) FetchAll(ctx context.Context, records []types.ImageRecord, outputDir string) ([]types.DownloadOutcome, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, &types.DirectoryCreationError{Path: outputDir, Err: err}
	}

	d.logger.Info("downloading images", "count", len(records), "dir", outputDir)

	outcomes := make([]types.DownloadOutcome, 0, len(records))
	for i := range records {
		rec := &records[i]
		target := TargetPath(outputDir, *rec)

		if err := pacing.Wait(ctx, d.opts.Throttle, i); err != nil {
			return outcomes, err
		}

		outcome := d.fetchWithRetry(ctx, rec, target)
		outcomes = append(outcomes, outcome)
		d.record(outcome)

		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
	}

	ok, failed, bytes := types.Tally(outcomes)
	d.logger.Info("downloads finished", "succeeded", ok, "failed", failed, "bytes", bytes)
	return outcomes, nil
}

// fetchWithRetry runs fetchOne, repeating retryable transport failures up
// to Retries times.
func (d *Downloader) fetchWithRetry(ctx context.Context, rec *types.ImageRecord, target string) types.DownloadOutcome {
	outcome, retryable := d.fetchOne(ctx, rec, target)
	for attempt := 1; attempt <= d.opts.Retries; attempt++ {
		if !retryable || ctx.Err() != nil {
			break
		}
		d.logger.Debug("retrying download", "index", rec.SequenceIndex, "attempt", attempt, "error", outcome.Status.Message)
		if err := pacing.Wait(ctx, d.opts.RetryDelay, attempt); err != nil {
			break
		}
		outcome, retryable = d.fetchOne(ctx, rec, target)
	}
	return outcome
}

// fetchOne performs a single streamed GET for rec and writes the body to
// target when the status is 200. retryable reports whether a failed
// attempt may succeed if repeated.
func (d *Downloader) fetchOne(ctx context.Context, rec *types.ImageRecord, target string) (outcome types.DownloadOutcome, retryable bool) {
	outcome = types.DownloadOutcome{Record: rec, TargetPath: target}
	start := time.Now()
	defer func() { d.metrics.DownloadDuration.Observe(time.Since(start).Seconds()) }()

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			outcome.Status = types.TransportFailure(err.Error())
			return outcome, false
		}
	}

	resp, err := d.fetcher.Stream(ctx, rec.SourceURL)
	if err != nil {
		outcome.Status = types.TransportFailure(err.Error())
		var fe *types.FetchError
		return outcome, errors.As(err, &fe) && fe.IsRetryable()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		outcome.Status = types.HTTPFailure(resp.StatusCode)
		return outcome, false
	}

	n, err := writeChunked(target, resp.Body, d.opts.ChunkSize)
	if err != nil {
		outcome.Status = types.TransportFailure(err.Error())
		var re *bodyReadError
		return outcome, errors.As(err, &re) && ctx.Err() == nil
	}
	outcome.Status = types.Success()
	outcome.BytesWritten = n
	return outcome, false
}

// bodyReadError marks a failure reading the response stream, as opposed
// to writing the local file.
type bodyReadError struct{ err error }

func (e *bodyReadError) Error() string { return "read body: " + e.err.Error() }
func (e *bodyReadError) Unwrap() error { return e.err }

func (d *Downloader) record(o types.DownloadOutcome) {
	d.metrics.Downloads.WithLabelValues(o.Status.Kind.String()).Inc()
	name := filepath.Base(o.TargetPath)
	if o.OK() {
		d.metrics.BytesDownloaded.Add(float64(o.BytesWritten))
		d.logger.Info("downloaded", "file", name, "bytes", o.BytesWritten)
		return
	}
	d.logger.Warn("download failed",
		"file", name,
		"index", o.Record.SequenceIndex,
		"url", o.Record.SourceURL,
		"status", o.Status.String(),
	)
}

// writeChunked copies r into a new file at path, chunk bytes at a time.
// The file is always closed; on any error the partial file is removed.
func writeChunked(path string, r io.Reader, chunk int) (written int64, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close file: %w", cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	buf := make([]byte, chunk)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			w, werr := f.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, fmt.Errorf("write file: %w", werr)
			}
		}
		if errors.Is(rerr, io.EOF) {
			return written, nil
		}
		if rerr != nil {
			return written, &bodyReadError{err: rerr}
		}
	}
}

// TargetPath is the deterministic location for rec inside dir:
// <index>_<brand>.jpg. The extension is fixed regardless of content type.
func TargetPath(dir string, rec types.ImageRecord) string {
	return filepath.Join(dir, strconv.Itoa(rec.SequenceIndex)+"_"+SanitizeBrand(rec.BrandLabel)+".jpg")
}

// SanitizeBrand makes a brand label safe to use in a file name. Spaces and
// path separators become underscores.
func SanitizeBrand(brand string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\':
			return '_'
		}
		return r
	}, brand)
}
