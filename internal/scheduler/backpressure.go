package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DepthReader reports the approximate number of messages waiting in the
// downstream queue.
type DepthReader interface {
	ApproximateCount(ctx context.Context) (int, error)
}

// Sleeper pauses for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// GateConfig holds the backpressure tuning parameters.
type GateConfig struct {
	// MaxDepth is the queue depth at or above which the gate holds.
	MaxDepth int
	// PollInterval is the pause between depth reads while holding.
	PollInterval time.Duration
	// MaxPolls bounds the number of depth reads. Zero derives the bound
	// from the guard budget and the poll interval.
	MaxPolls int
}

// Gate blocks the start of an invocation while the downstream queue is over
// capacity. It is a bounded polling loop: it gives up when the deadline
// guard trips or after MaxPolls reads, whichever comes first.
type Gate struct {
	depth  DepthReader
	cfg    GateConfig
	guard  *Guard
	sleep  Sleeper
	logger *slog.Logger

	polls     int
	lastDepth int
}

// NewGate creates a Gate. A nil sleep means SleepContext.
func NewGate(depth DepthReader, cfg GateConfig, guard *Guard, sleep Sleeper, logger *slog.Logger) *Gate {
	if sleep == nil {
		sleep = SleepContext
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPolls <= 0 && cfg.PollInterval > 0 && guard != nil {
		cfg.MaxPolls = int(guard.Budget()/cfg.PollInterval) + 1
	}
	return &Gate{
		depth:  depth,
		cfg:    cfg,
		guard:  guard,
		sleep:  sleep,
		logger: logger,
	}
}

// WaitUntilReady polls the queue depth until it drops below MaxDepth. It
// returns true when work may proceed and false when the invocation should end
// without producing anything. Waiting out the budget is not an error; only a
// failed depth read or a cancelled sleep is.
func (g *Gate) WaitUntilReady(ctx context.Context) (bool, error) {
	for {
		depth, err := g.depth.ApproximateCount(ctx)
		if err != nil {
			return false, fmt.Errorf("reading queue depth: %w", err)
		}
		g.polls++
		g.lastDepth = depth

		if depth < g.cfg.MaxDepth {
			return true, nil
		}

		if g.cfg.MaxPolls > 0 && g.polls >= g.cfg.MaxPolls {
			g.logger.InfoContext(ctx, "queue still over capacity after maximum polls, skipping this invocation",
				"queue_depth", depth,
				"max_queue_depth", g.cfg.MaxDepth,
				"polls", g.polls,
			)
			return false, nil
		}

		g.logger.InfoContext(ctx, "queue over capacity, waiting before producing more work",
			"queue_depth", depth,
			"max_queue_depth", g.cfg.MaxDepth,
			"poll_interval", g.cfg.PollInterval.String(),
		)
		if err := g.sleep(ctx, g.cfg.PollInterval); err != nil {
			return false, fmt.Errorf("waiting for queue to drain: %w", err)
		}

		if g.guard != nil && g.guard.Exceeded() {
			g.logger.InfoContext(ctx, "deadline reached while waiting for queue to drain",
				"queue_depth", depth,
				"elapsed", g.guard.Elapsed().String(),
			)
			return false, nil
		}
	}
}

// Polls returns how many depth reads the gate performed.
func (g *Gate) Polls() int { return g.polls }

// LastDepth returns the most recent depth read.
func (g *Gate) LastDepth() int { return g.lastDepth }
