package scheduler

import (
	"iter"
	"time"

	"reportpoller/internal/types"
)

const (
	// MaxLookback is the oldest data the Reports API will return.
	MaxLookback = 180 * 24 * time.Hour
	// ClampedLookback is where a watermark older than MaxLookback restarts,
	// one day inside the API ceiling.
	ClampedLookback = 179 * 24 * time.Hour
	// DefaultInitialLookback applies when an activity has no watermark at all.
	DefaultInitialLookback = 24 * time.Hour
)

// Clock returns the current time. Tests inject a fixed or stepping clock.
type Clock func() time.Time

// Planner splits [watermark, cutoff) into windows of at most MaxWindow.
type Planner struct {
	maxWindow time.Duration
	clock     Clock
}

// NewPlanner creates a Planner. clock is only consulted for the lookback
// clamp; a nil clock means time.Now.
func NewPlanner(maxWindow time.Duration, clock Clock) Planner {
	if clock == nil {
		clock = time.Now
	}
	return Planner{maxWindow: maxWindow, clock: clock}
}

// Start resolves the effective start for watermark: a zero watermark becomes
// cutoff - DefaultInitialLookback, and anything older than MaxLookback is
// moved forward to now - ClampedLookback. The result is truncated to
// millisecond precision to match the persisted layout.
func (p Planner) Start(watermark, cutoff time.Time) time.Time {
	start := watermark
	if start.IsZero() {
		start = cutoff.Add(-DefaultInitialLookback)
	}
	now := p.clock().UTC()
	if start.Before(now.Add(-MaxLookback)) {
		start = now.Add(-ClampedLookback)
	}
	return start.UTC().Truncate(time.Millisecond)
}

// Plan lazily yields the contiguous, non-overlapping windows that cover
// [Start(watermark, cutoff), cutoff) in order. Every window except possibly
// the last is exactly MaxWindow long. Nothing is yielded when the watermark
// has already reached the cutoff.
func (p Planner) Plan(watermark, cutoff time.Time) iter.Seq[types.Window] {
	return func(yield func(types.Window) bool) {
		if p.maxWindow <= 0 {
			return
		}
		start := p.Start(watermark, cutoff)
		for cutoff.Sub(start) > p.maxWindow {
			end := start.Add(p.maxWindow)
			if !yield(types.Window{Start: start, End: end}) {
				return
			}
			start = end
		}
		if start.Before(cutoff) {
			yield(types.Window{Start: start, End: cutoff})
		}
	}
}
