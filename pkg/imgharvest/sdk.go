// Package imgharvest provides a public SDK for embedding the scraper as a
// library.
//
// Example usage:
//
//	h := imgharvest.New(
//	    imgharvest.WithMaxItems(50),
//	    imgharvest.WithOutputDir("./images"),
//	)
//
//	records, err := h.ScrapeURL(ctx, "https://shop.example.com/men-tshirts")
//	if err != nil { ... }
//	outcomes, err := h.Download(ctx, records)
package imgharvest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/IshaanNene/imgharvest/internal/automation"
	"github.com/IshaanNene/imgharvest/internal/config"
	"github.com/IshaanNene/imgharvest/internal/engine"
	"github.com/IshaanNene/imgharvest/internal/fetcher"
	"github.com/IshaanNene/imgharvest/internal/observability"
	"github.com/IshaanNene/imgharvest/internal/parser"
	"github.com/IshaanNene/imgharvest/internal/storage"
	"github.com/IshaanNene/imgharvest/internal/types"
)

// Re-exported result types.
type (
	Record  = types.ImageRecord
	Outcome = types.DownloadOutcome
)

// Harvester is the high-level API for using imgharvest as a library.
type Harvester struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	pacing  *engine.Pacing
}

// Option configures a Harvester.
type Option func(*Harvester)

// WithMaxItems bounds how many containers are scanned.
func WithMaxItems(n int) Option {
	return func(h *Harvester) { h.cfg.Extract.MaxItems = n }
}

// WithOutputDir sets where images are written.
func WithOutputDir(dir string) Option {
	return func(h *Harvester) { h.cfg.Download.OutputDir = dir }
}

// WithSelectors overrides the container, image, brand and name selectors.
// Empty values keep the defaults.
func WithSelectors(container, image, brand, name string) Option {
	return func(h *Harvester) {
		if container != "" {
			h.cfg.Extract.ContainerSelector = container
		}
		if image != "" {
			h.cfg.Extract.ImageSelector = image
		}
		if brand != "" {
			h.cfg.Extract.BrandSelector = brand
		}
		if name != "" {
			h.cfg.Extract.NameSelector = name
		}
	}
}

// WithScroll sets the scroll step, settle pause and round cap.
func WithScroll(step int, pause time.Duration, maxRounds int) Option {
	return func(h *Harvester) {
		h.cfg.Scroll.Step = step
		h.cfg.Scroll.Pause = pause
		h.cfg.Scroll.MaxRounds = maxRounds
	}
}

// WithUserAgent sets a custom User-Agent for the browser and downloads.
func WithUserAgent(ua string) Option {
	return func(h *Harvester) { h.cfg.Browser.UserAgent = ua }
}

// WithHeadless toggles the browser window.
func WithHeadless(on bool) Option {
	return func(h *Harvester) { h.cfg.Browser.Headless = on }
}

// WithoutDelays disables every jittered pause. Useful against local
// fixtures.
func WithoutDelays() Option {
	return func(h *Harvester) {
		h.pacing = &engine.Pacing{}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harvester) { h.logger = l }
}

// New creates a Harvester from defaults plus opts.
func New(opts ...Option) *Harvester {
	h := &Harvester{
		cfg:    config.DefaultConfig(),
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.metrics = observability.NewMetrics(h.logger)
	return h
}

func (h *Harvester) newEngine(f fetcher.Fetcher) *engine.Engine {
	var opts []engine.Option
	if h.pacing != nil {
		opts = append(opts, engine.WithPacing(*h.pacing))
	}
	return engine.New(h.cfg, f, h.metrics, h.logger, opts...)
}

// ScrapeURL opens rawURL in a browser, scrolls it and returns the records.
func (h *Harvester) ScrapeURL(ctx context.Context, rawURL string) ([]Record, error) {
	if err := config.Validate(h.cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := config.ValidateURL(rawURL); err != nil {
		return nil, err
	}

	session, err := fetcher.NewBrowserSession(ctx, h.cfg.Browser, h.logger)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	p, err := session.Open(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	res, err := h.newEngine(nil).Run(ctx, automation.NewPage(p, h.logger), nil)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// ExtractHTML runs the extractor over a saved listing page.
func (h *Harvester) ExtractHTML(ctx context.Context, r io.Reader) ([]Record, error) {
	snap, err := parser.ParseSnapshot(r)
	if err != nil {
		return nil, err
	}
	return h.newEngine(nil).Extract(ctx, snap)
}

// Download fetches every record's image into the output directory.
func (h *Harvester) Download(ctx context.Context, records []Record) ([]Outcome, error) {
	f := fetcher.NewHTTPFetcher(h.cfg, h.logger)
	defer f.Close()
	return h.newEngine(f).Download(ctx, records)
}

// Export writes records to path; the format follows the extension.
func (h *Harvester) Export(path string, records []Record) error {
	return storage.Export(path, records, h.logger)
}

// Stats returns the counters collected so far.
func (h *Harvester) Stats() map[string]int64 {
	return h.metrics.Snapshot()
}
