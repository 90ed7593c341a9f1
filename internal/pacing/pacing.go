// Package pacing holds the delay policies used at every suspension point:
// the settle delay after a scroll, the think-time between extracted items
// and the throttle before each download.
package pacing

import (
	"context"
	"math/rand"
	"time"
)

// Policy returns how long to pause before step i.
type Policy interface {
	Delay(i int) time.Duration
}

// Fixed pauses for the same duration every step.
type Fixed time.Duration

func (f Fixed) Delay(int) time.Duration { return time.Duration(f) }

// None never pauses. Tests use it to run the algorithms without sleeping.
var None Policy = Fixed(0)

// Uniform pauses for a random duration in [Min, Max].
type Uniform struct {
	Min time.Duration
	Max time.Duration
}

// NewUniform creates a uniform jitter policy. Bounds are swapped if given
// in the wrong order.
func NewUniform(min, max time.Duration) Uniform {
	if max < min {
		min, max = max, min
	}
	return Uniform{Min: min, Max: max}
}

func (u Uniform) Delay(int) time.Duration {
	if u.Max <= u.Min {
		return u.Min
	}
	return u.Min + time.Duration(rand.Int63n(int64(u.Max-u.Min+1)))
}

// Func adapts a plain function to Policy.
type Func func(i int) time.Duration

func (f Func) Delay(i int) time.Duration { return f(i) }

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wait sleeps for the delay p assigns to step i. A nil policy does not pause.
func Wait(ctx context.Context, p Policy, i int) error {
	if p == nil {
		return ctx.Err()
	}
	return Sleep(ctx, p.Delay(i))
}
