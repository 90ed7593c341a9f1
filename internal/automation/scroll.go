package automation

import (
	"context"
	"log/slog"

	"github.com/IshaanNene/imgharvest/internal/observability"
	"github.com/IshaanNene/imgharvest/internal/pacing"
)

// ScrollMetrics is one observation of the page's scroll geometry, in px.
type ScrollMetrics struct {
	DocumentHeight int
	ViewportOffset int
	ViewportHeight int
}

// Scroller is the page surface the controller drives.
type Scroller interface {
	ScrollMetrics(ctx context.Context) (ScrollMetrics, error)
	ScrollBy(ctx context.Context, px int) error
}

// ScrollState is the controller's mutable state for one run.
type ScrollState struct {
	DocumentHeight int
	ViewportOffset int
	ViewportHeight int
	ScrollCount    int
	StagnantRounds int
}

// ScrollOptions configures a ScrollController.
type ScrollOptions struct {
	Step              int
	MaxRounds         int
	BottomTolerance   int
	StagnantThreshold int

	// Settle is the pause after each scroll command.
	Settle pacing.Policy

	// OnRound, if set, observes the state at the end of every round.
	OnRound func(round int, state ScrollState)
}

// ScrollController reveals lazily loaded content by scrolling in fixed
// steps until the viewport sits at the bottom of a page that has stopped
// growing, or the round cap is hit.
type ScrollController struct {
	opts    ScrollOptions
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewScrollController creates a scroll controller.
func NewScrollController(opts ScrollOptions, metrics *observability.Metrics, logger *slog.Logger) *ScrollController {
	if opts.StagnantThreshold < 1 {
		opts.StagnantThreshold = 3
	}
	return &ScrollController{
		opts:    opts,
		metrics: metrics,
		logger:  logger.With("component", "scroll_controller"),
	}
}

// Run scrolls s until it stops and returns the number of rounds executed.
// Read and scroll failures are logged and count as a round without growth,
// so an unresponsive page drains to MaxRounds. The only error returned is
// the context's.
func (c *ScrollController) Run(ctx context.Context, s Scroller) (int, error) {
	c.logger.Info("scrolling started",
		"step", c.opts.Step,
		"max_rounds", c.opts.MaxRounds,
	)

	var state ScrollState
	rounds := 0

	for state.ScrollCount < c.opts.MaxRounds {
		if err := ctx.Err(); err != nil {
			return rounds, err
		}
		rounds++
		c.metrics.ScrollRounds.Inc()

		before, beforeErr := s.ScrollMetrics(ctx)
		if beforeErr != nil {
			c.readFailed(rounds, beforeErr)
		}

		if err := s.ScrollBy(ctx, c.opts.Step); err != nil {
			c.metrics.ScrollFailures.Inc()
			c.logger.Warn("scroll command failed", "round", rounds, "error", err)
		}
		if err := pacing.Wait(ctx, c.opts.Settle, rounds); err != nil {
			return rounds, err
		}

		after, afterErr := s.ScrollMetrics(ctx)
		if afterErr != nil {
			c.readFailed(rounds, afterErr)
		}
		measured := beforeErr == nil && afterErr == nil

		if measured && after.DocumentHeight > before.DocumentHeight {
			state.StagnantRounds = 0
			c.metrics.HeightGrowths.Inc()
			c.logger.Debug("new content loaded", "round", rounds, "height", after.DocumentHeight)
		} else {
			state.StagnantRounds++
		}
		if afterErr == nil {
			state.DocumentHeight = after.DocumentHeight
			state.ViewportOffset = after.ViewportOffset
			state.ViewportHeight = after.ViewportHeight
		}

		if afterErr == nil && c.atBottom(after) && state.StagnantRounds >= c.opts.StagnantThreshold {
			c.observe(rounds, state)
			c.logger.Info("reached end of page", "rounds", rounds, "height", state.DocumentHeight)
			return rounds, nil
		}

		state.ScrollCount++
		c.observe(rounds, state)
	}

	c.logger.Info("scroll round cap reached", "rounds", rounds, "height", state.DocumentHeight)
	return rounds, nil
}

// atBottom reports whether the viewport's trailing edge is within the
// tolerance of the document's bottom edge.
func (c *ScrollController) atBottom(m ScrollMetrics) bool {
	return m.ViewportOffset+m.ViewportHeight >= m.DocumentHeight-c.opts.BottomTolerance
}

func (c *ScrollController) observe(round int, state ScrollState) {
	if c.opts.OnRound != nil {
		c.opts.OnRound(round, state)
	}
}

func (c *ScrollController) readFailed(round int, err error) {
	c.metrics.ScrollFailures.Inc()
	c.logger.Warn("read scroll metrics failed", "round", round, "error", err)
}
