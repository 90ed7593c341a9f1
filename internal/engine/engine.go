package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/imgharvest/internal/automation"
	"github.com/IshaanNene/imgharvest/internal/config"
	"github.com/IshaanNene/imgharvest/internal/fetcher"
	"github.com/IshaanNene/imgharvest/internal/media"
	"github.com/IshaanNene/imgharvest/internal/observability"
	"github.com/IshaanNene/imgharvest/internal/pacing"
	"github.com/IshaanNene/imgharvest/internal/parser"
	"github.com/IshaanNene/imgharvest/internal/types"
)

// sampleSize is how many records are logged after extraction.
const sampleSize = 3

// State represents the engine's current phase.
type State int32

const (
	StateIdle        State = 0
	StateSettling    State = 1
	StateScrolling   State = 2
	StateExtracting  State = 3
	StateDownloading State = 4
	StateDone        State = 5
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSettling:
		return "settling"
	case StateScrolling:
		return "scrolling"
	case StateExtracting:
		return "extracting"
	case StateDownloading:
		return "downloading"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Surface is a page that can be both scrolled and queried for containers.
type Surface interface {
	automation.Scroller
	parser.ContainerSource
}

// ApproveFunc decides whether the extracted records should be downloaded.
type ApproveFunc func(records []types.ImageRecord) bool

// Result is everything one run produced.
type Result struct {
	Rounds     int
	Records    []types.ImageRecord
	Outcomes   []types.DownloadOutcome
	Downloaded bool
	Elapsed    time.Duration
}

// Summary is the end-of-run tally.
type Summary struct {
	Rounds    int
	Records   int
	Succeeded int
	Failed    int
	Bytes     int64
	Elapsed   time.Duration
}

// Summary tallies r.
func (r *Result) Summary() Summary {
	ok, failed, bytes := types.Tally(r.Outcomes)
	return Summary{
		Rounds:    r.Rounds,
		Records:   len(r.Records),
		Succeeded: ok,
		Failed:    failed,
		Bytes:     bytes,
		Elapsed:   r.Elapsed,
	}
}

// Pacing holds the delay policy for every suspension point.
type Pacing struct {
	InitialSettle pacing.Policy
	ScrollSettle  pacing.Policy
	ThinkTime     pacing.Policy
	Throttle      pacing.Policy
	RetryDelay    pacing.Policy
}

// PacingFromConfig builds the jittered policies described by cfg.
func PacingFromConfig(cfg *config.Config) Pacing {
	return Pacing{
		InitialSettle: pacing.NewUniform(cfg.Browser.SettleMin, cfg.Browser.SettleMax),
		ScrollSettle:  pacing.Fixed(cfg.Scroll.Pause),
		ThinkTime:     pacing.NewUniform(cfg.Extract.ThinkMin, cfg.Extract.ThinkMax),
		Throttle:      pacing.NewUniform(cfg.Download.ThrottleMin, cfg.Download.ThrottleMax),
		RetryDelay:    pacing.Fixed(cfg.Download.RetryDelay),
	}
}

// Option configures the Engine.
type Option func(*Engine)

// WithPacing replaces the delay policies derived from config.
func WithPacing(p Pacing) Option {
	return func(e *Engine) { e.pacing = p }
}

// WithRoundObserver is called at the end of every scroll round.
func WithRoundObserver(fn func(round int, state automation.ScrollState)) Option {
	return func(e *Engine) { e.onRound = fn }
}

// WithExtractedHook is called once extraction finishes, before the
// approval gate, including when the page yielded no records.
func WithExtractedHook(fn func(ctx context.Context, records []types.ImageRecord)) Option {
	return func(e *Engine) { e.onExtracted = fn }
}

// Engine runs scroll, extraction and download in that order, each once.
type Engine struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	pacing  Pacing
	onRound func(int, automation.ScrollState)

	onExtracted func(context.Context, []types.ImageRecord)

	scroller   *automation.ScrollController
	extractor  *parser.RecordExtractor
	downloader *media.Downloader

	state atomic.Int32
}

// New creates an Engine. f is used for downloads and is not closed by
// the engine.
func New(cfg *config.Config, f fetcher.Fetcher, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg,
		logger:  logger.With("component", "engine"),
		metrics: metrics,
		pacing:  PacingFromConfig(cfg),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.scroller = automation.NewScrollController(automation.ScrollOptions{
		Step:              cfg.Scroll.Step,
		MaxRounds:         cfg.Scroll.MaxRounds,
		BottomTolerance:   cfg.Scroll.BottomTolerance,
		StagnantThreshold: cfg.Scroll.StagnantThreshold,
		Settle:            e.pacing.ScrollSettle,
		OnRound:           e.onRound,
	}, metrics, logger)

	e.extractor = parser.NewRecordExtractor(parser.ExtractorOptions{
		Selectors: parser.Selectors{
			Container:      cfg.Extract.ContainerSelector,
			Image:          cfg.Extract.ImageSelector,
			ImageAttribute: cfg.Extract.ImageAttribute,
			Brand:          cfg.Extract.BrandSelector,
			Name:           cfg.Extract.NameSelector,
		},
		WaitTimeout: cfg.Extract.WaitTimeout,
		ThinkTime:   e.pacing.ThinkTime,
	}, metrics, logger)

	if f != nil {
		e.downloader = media.NewDownloader(f, media.Options{
			Throttle:      e.pacing.Throttle,
			RatePerSecond: cfg.Download.RatePerSecond,
			Burst:         cfg.Download.Burst,
			Retries:       cfg.Download.Retries,
			RetryDelay:    e.pacing.RetryDelay,
			ChunkSize:     cfg.Download.ChunkSize,
		}, metrics, logger)
	}
	return e
}

// GetState returns the engine's current phase.
func (e *Engine) GetState() State {
	return State(e.state.Load())
}

// Run waits for the page to settle, scrolls it, extracts records and, if
// approve accepts them, downloads the assets. A nil approve skips the
// download phase.
func (e *Engine) Run(ctx context.Context, s Surface, approve ApproveFunc) (*Result, error) {
	start := time.Now()
	res := &Result{}
	defer func() {
		res.Elapsed = time.Since(start)
		e.state.Store(int32(StateDone))
	}()

	e.state.Store(int32(StateSettling))
	if err := pacing.Wait(ctx, e.pacing.InitialSettle, 0); err != nil {
		return res, err
	}

	e.state.Store(int32(StateScrolling))
	rounds, err := e.scroller.Run(ctx, s)
	res.Rounds = rounds
	if err != nil {
		return res, fmt.Errorf("scroll: %w", err)
	}

	records, err := e.Extract(ctx, s)
	res.Records = records
	if err != nil {
		return res, err
	}
	if e.onExtracted != nil {
		e.onExtracted(ctx, records)
	}

	if len(records) == 0 || approve == nil || !approve(records) {
		e.logger.Info("download phase skipped", "records", len(records))
		return res, nil
	}

	outcomes, err := e.Download(ctx, records)
	res.Outcomes = outcomes
	res.Downloaded = true
	return res, err
}

// Extract runs the record extractor once against src. An empty page is
// not an error: it yields no records.
func (e *Engine) Extract(ctx context.Context, src parser.ContainerSource) ([]types.ImageRecord, error) {
	e.state.Store(int32(StateExtracting))
	records, err := e.extractor.Extract(ctx, src, e.cfg.Extract.MaxItems)
	if err != nil {
		if errors.Is(err, types.ErrNoContentFound) {
			return nil, nil
		}
		return records, fmt.Errorf("extract: %w", err)
	}

	e.logger.Info("records extracted", "count", len(records))
	for i := 0; i < len(records) && i < sampleSize; i++ {
		r := records[i]
		e.logger.Info("sample record",
			"index", r.SequenceIndex,
			"brand", r.BrandLabel,
			"name", r.DisplayName,
			"url", r.SourceURL,
		)
	}
	return records, nil
}

// Download fetches the assets for records into the configured directory.
func (e *Engine) Download(ctx context.Context, records []types.ImageRecord) ([]types.DownloadOutcome, error) {
	if e.downloader == nil {
		return nil, errors.New("engine has no fetcher configured")
	}
	e.state.Store(int32(StateDownloading))
	outcomes, err := e.downloader.FetchAll(ctx, records, e.cfg.Download.OutputDir)
	if err != nil {
		return outcomes, fmt.Errorf("download: %w", err)
	}
	return outcomes, nil
}

// LogSummary writes the run summary and the metric snapshot.
func (e *Engine) LogSummary(res *Result) {
	s := res.Summary()
	e.logger.Info("run complete",
		"rounds", s.Rounds,
		"records", s.Records,
		"downloaded", res.Downloaded,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"bytes", s.Bytes,
		"elapsed", s.Elapsed.Round(time.Millisecond),
	)
	e.logger.Debug("metrics", "snapshot", e.metrics.Snapshot())
}
