package automation

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/IshaanNene/imgharvest/internal/observability"
	"github.com/IshaanNene/imgharvest/internal/pacing"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// scriptedPage replays a page whose height follows heights[i] after the
// i-th scroll command. Offsets advance by the step and clamp at the bottom.
type scriptedPage struct {
	heights  []int
	viewport int
	offset   int
	scrolls  int
	readErr  error
}

func (p *scriptedPage) height() int {
	if len(p.heights) == 0 {
		return 0
	}
	if p.scrolls < len(p.heights) {
		return p.heights[p.scrolls]
	}
	return p.heights[len(p.heights)-1]
}

func (p *scriptedPage) ScrollMetrics(ctx context.Context) (ScrollMetrics, error) {
	if p.readErr != nil {
		return ScrollMetrics{}, p.readErr
	}
	return ScrollMetrics{
		DocumentHeight: p.height(),
		ViewportOffset: p.offset,
		ViewportHeight: p.viewport,
	}, nil
}

func (p *scriptedPage) ScrollBy(ctx context.Context, px int) error {
	p.scrolls++
	p.offset += px
	if max := p.height() - p.viewport; p.offset > max {
		p.offset = max
	}
	if p.offset < 0 {
		p.offset = 0
	}
	return nil
}

func newController(opts ScrollOptions) *ScrollController {
	if opts.Settle == nil {
		opts.Settle = pacing.None
	}
	return NewScrollController(opts, observability.NewMetrics(testLogger), testLogger)
}

func TestScrollStopsAtBottomAfterStagnation(t *testing.T) {
	// Short static page: already at the bottom after the first scroll.
	page := &scriptedPage{heights: []int{1200}, viewport: 1000}
	c := newController(ScrollOptions{Step: 500, MaxRounds: 20, BottomTolerance: 100, StagnantThreshold: 3})

	rounds, err := c.Run(context.Background(), page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rounds != 3 {
		t.Errorf("expected 3 rounds (three stagnant rounds at the bottom), got %d", rounds)
	}
}

func TestScrollDrainsToMaxRoundsWhenNeverAtBottom(t *testing.T) {
	// Page keeps growing faster than we scroll: condition never holds.
	heights := make([]int, 100)
	for i := range heights {
		heights[i] = 5000 + i*1000
	}
	page := &scriptedPage{heights: heights, viewport: 800}
	c := newController(ScrollOptions{Step: 200, MaxRounds: 7, BottomTolerance: 100, StagnantThreshold: 3})

	rounds, err := c.Run(context.Background(), page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rounds != 7 {
		t.Errorf("expected exactly 7 rounds, got %d", rounds)
	}
	if page.scrolls != 7 {
		t.Errorf("expected 7 scroll commands, got %d", page.scrolls)
	}
}

func TestScrollStagnantButNotAtBottomKeepsGoing(t *testing.T) {
	// Tall page that never grows: stagnation alone must not stop the run
	// while the viewport is far from the bottom.
	page := &scriptedPage{heights: []int{100000}, viewport: 800}
	c := newController(ScrollOptions{Step: 100, MaxRounds: 10, BottomTolerance: 100, StagnantThreshold: 3})

	rounds, _ := c.Run(context.Background(), page)
	if rounds != 10 {
		t.Errorf("expected run to drain to 10 rounds, got %d", rounds)
	}
}

func TestScrollStagnantResetsOnGrowth(t *testing.T) {
	// Heights after each scroll: flat, flat, grow, flat, grow.
	page := &scriptedPage{heights: []int{3000, 3000, 3000, 4000, 4000, 5000, 5000}, viewport: 800}

	var states []ScrollState
	c := newController(ScrollOptions{
		Step: 100, MaxRounds: 6, BottomTolerance: 100, StagnantThreshold: 3,
		OnRound: func(round int, s ScrollState) { states = append(states, s) },
	})

	if _, err := c.Run(context.Background(), page); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int{1, 2, 0, 1, 0, 1}
	if len(states) != len(want) {
		t.Fatalf("expected %d observed rounds, got %d", len(want), len(states))
	}
	for i, s := range states {
		if s.StagnantRounds != want[i] {
			t.Errorf("round %d: expected stagnant=%d, got %d", i+1, want[i], s.StagnantRounds)
		}
		if s.ScrollCount != i+1 {
			t.Errorf("round %d: expected scroll count %d, got %d", i+1, i+1, s.ScrollCount)
		}
	}
}

func TestScrollTerminatesForArbitraryObservations(t *testing.T) {
	cases := [][]int{
		{0},
		{100, 50, 100, 50},
		{1000, 2000, 1500, 3000, 2500},
		{800, 800, 801, 801, 802},
	}
	for _, heights := range cases {
		for _, max := range []int{1, 3, 12} {
			page := &scriptedPage{heights: heights, viewport: 700}
			c := newController(ScrollOptions{Step: 300, MaxRounds: max, BottomTolerance: 100, StagnantThreshold: 3})
			rounds, err := c.Run(context.Background(), page)
			if err != nil {
				t.Fatalf("heights %v: unexpected error: %v", heights, err)
			}
			if rounds < 1 || rounds > max {
				t.Errorf("heights %v max %d: rounds %d outside [1, max]", heights, max, rounds)
			}
		}
	}
}

func TestScrollReadFailuresDrainToMaxRounds(t *testing.T) {
	page := &scriptedPage{readErr: errors.New("page gone"), viewport: 800}
	c := newController(ScrollOptions{Step: 500, MaxRounds: 4, BottomTolerance: 100, StagnantThreshold: 3})

	rounds, err := c.Run(context.Background(), page)
	if err != nil {
		t.Fatalf("read failures must not surface: %v", err)
	}
	if rounds != 4 {
		t.Errorf("expected 4 rounds, got %d", rounds)
	}
}

func TestScrollCancelledDuringSettle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	page := &scriptedPage{heights: []int{100000}, viewport: 800}
	c := newController(ScrollOptions{
		Step: 100, MaxRounds: 50, BottomTolerance: 100, StagnantThreshold: 3,
		Settle: pacing.Fixed(time.Hour),
	})

	cancel()
	rounds, err := c.Run(ctx, page)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if rounds > 1 {
		t.Errorf("expected at most one round before cancellation, got %d", rounds)
	}
}
