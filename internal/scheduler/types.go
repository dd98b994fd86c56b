// Package scheduler implements the watermark-driven extraction scheduler: the
// per-activity cutoff policy, the window planner, the invocation deadline
// guard, the queue backpressure gate, and the driver that ties them together
// for one timer invocation.
package scheduler

import (
	"time"

	"reportpoller/internal/types"
)

// TriggerInput is what the timer entrypoint hands to the Driver.
type TriggerInput struct {
	InvocationID string
	// ScheduledTime is when the timer was meant to fire. Zero when unknown.
	ScheduledTime time.Time
	// PastDue is set when the invocation started noticeably after
	// ScheduledTime. It is informational only.
	PastDue bool
}

// StopReason records why an invocation stopped producing work.
type StopReason string

const (
	// StopCompleted means every configured activity was caught up to its cutoff.
	StopCompleted StopReason = "completed"
	// StopDeadline means the deadline budget ran out mid-run.
	StopDeadline StopReason = "deadline"
	// StopBackpressure means the downstream queue never drained below the
	// ceiling within the budget.
	StopBackpressure StopReason = "backpressure"
	// StopFailed means an activity failed and the invocation was aborted.
	StopFailed StopReason = "failed"
)

// RunSummary describes one invocation. A summary is returned even when Run
// also returns an error.
type RunSummary struct {
	InvocationID string
	StartedAt    time.Time
	FinishedAt   time.Time
	StopReason   StopReason

	// QueueDepth is the last depth observed by the backpressure gate.
	QueueDepth int
	// GatePolls is the number of depth reads the gate performed.
	GatePolls int

	// StateKind is the shape of the persisted state found at load.
	StateKind string

	WindowsDispatched int
	PerActivity       map[types.Activity]int
	// Lag is cutoff minus the final watermark for every activity that was
	// visited; zero means caught up.
	Lag map[types.Activity]time.Duration
}

func newRunSummary(invocationID string, startedAt time.Time) RunSummary {
	return RunSummary{
		InvocationID: invocationID,
		StartedAt:    startedAt,
		PerActivity:  make(map[types.Activity]int),
		Lag:          make(map[types.Activity]time.Duration),
	}
}
