package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reportpoller/internal/config"
	"reportpoller/internal/types"
	"reportpoller/internal/watermark"
)

// WatermarkStore loads and persists the watermark document.
type WatermarkStore interface {
	Load(ctx context.Context, now time.Time) (watermark.Document, watermark.LoadResult, error)
	Save(ctx context.Context, doc watermark.Document) error
}

// WorkQueue is the downstream queue: the gate reads its depth and the driver
// sends one work item per window.
type WorkQueue interface {
	DepthReader
	Send(ctx context.Context, item types.WorkItem) error
}

// MetricsPublisher receives the summary of every invocation. Optional.
type MetricsPublisher interface {
	PublishRun(ctx context.Context, summary RunSummary) error
}

// RunHistory records invocation start and outcome. Optional.
type RunHistory interface {
	Start(ctx context.Context, in TriggerInput, startedAt time.Time) (int64, error)
	Finish(ctx context.Context, id int64, summary RunSummary, runErr error) error
}

// DriverConfig holds the collaborators for creating a Driver.
type DriverConfig struct {
	Activities []types.Activity
	Scheduler  config.SchedulerConfig
	Store      WatermarkStore
	Queue      WorkQueue
	Metrics    MetricsPublisher
	History    RunHistory
	Clock      Clock
	Sleep      Sleeper
	Logger     *slog.Logger
}

// Driver runs one scheduler invocation at a time. It keeps no state between
// invocations; everything durable lives in the WatermarkStore.
type Driver struct {
	activities []types.Activity
	sched      config.SchedulerConfig
	cutoff     CutoffPolicy
	store      WatermarkStore
	queue      WorkQueue
	metrics    MetricsPublisher
	history    RunHistory
	clock      Clock
	sleep      Sleeper
	logger     *slog.Logger
}

// NewDriver creates a Driver with the given configuration.
func NewDriver(cfg DriverConfig) *Driver {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		activities: cfg.Activities,
		sched:      cfg.Scheduler,
		cutoff:     NewCutoffPolicy(cfg.Scheduler),
		store:      cfg.Store,
		queue:      cfg.Queue,
		metrics:    cfg.Metrics,
		history:    cfg.History,
		clock:      clock,
		sleep:      cfg.Sleep,
		logger:     logger,
	}
}

// Run executes one invocation: wait for queue capacity, load the watermarks,
// then for each configured activity in catalog order emit and persist one
// window at a time until the activity reaches its cutoff.
//
// Running out of budget, either while waiting on the queue or mid-activity,
// is a normal stop reported in the summary and not an error. A failed load,
// enqueue or save aborts the invocation and is returned; every window
// dispatched before the failure has already been persisted.
func (d *Driver) Run(ctx context.Context, in TriggerInput) (RunSummary, error) {
	guard := NewGuard(d.sched.MaxInvocationDuration(), d.clock)
	summary := newRunSummary(in.InvocationID, d.clock().UTC())

	logger := d.logger.With("invocation_id", in.InvocationID)
	ctx = types.WithInvocationID(ctx, in.InvocationID)
	ctx = types.WithLogger(ctx, logger)

	if in.PastDue {
		logger.InfoContext(ctx, "timer is past due",
			"scheduled_time", formatOptional(in.ScheduledTime),
		)
	}
	logger.InfoContext(ctx, "invocation started",
		"activities", len(d.activities),
		"budget", guard.Budget().String(),
	)

	historyID, historyOK := d.startHistory(ctx, logger, in, summary.StartedAt)

	runErr := d.run(ctx, guard, &summary, logger)
	summary.FinishedAt = d.clock().UTC()
	if runErr != nil {
		summary.StopReason = StopFailed
	}

	if historyOK {
		d.finishHistory(ctx, logger, historyID, summary, runErr)
	}
	d.publishMetrics(ctx, logger, summary)

	logger.InfoContext(ctx, "invocation finished",
		"stop_reason", string(summary.StopReason),
		"windows_dispatched", summary.WindowsDispatched,
		"queue_depth", summary.QueueDepth,
		"state_kind", summary.StateKind,
		"elapsed", summary.FinishedAt.Sub(summary.StartedAt).String(),
	)

	return summary, runErr
}

func (d *Driver) run(ctx context.Context, guard *Guard, summary *RunSummary, logger *slog.Logger) error {
	gate := NewGate(d.queue, GateConfig{
		MaxDepth:     d.sched.MaxQueueDepth,
		PollInterval: d.sched.BackpressurePollInterval,
	}, guard, d.sleep, logger)

	ready, err := gate.WaitUntilReady(ctx)
	summary.QueueDepth = gate.LastDepth()
	summary.GatePolls = gate.Polls()
	if err != nil {
		return err
	}
	if !ready {
		summary.StopReason = StopBackpressure
		return nil
	}

	doc, loaded, err := d.store.Load(ctx, d.clock())
	if err != nil {
		return fmt.Errorf("loading watermarks: %w", err)
	}
	summary.StateKind = loaded.Kind.String()

	// Anything other than a complete document is rewritten straight away so
	// the bootstrap values chosen now are the ones the next invocation sees.
	if loaded.Normalized() {
		if err := d.store.Save(ctx, doc); err != nil {
			return fmt.Errorf("persisting normalized watermarks: %w", err)
		}
		logger.InfoContext(ctx, "persisted normalized watermark document",
			"state_kind", loaded.Kind.String(),
			"bootstrapped", loaded.Bootstrapped,
		)
	}

	planner := NewPlanner(d.sched.MaxWindow(), d.clock)

	for _, activity := range d.activities {
		if guard.Exceeded() {
			logger.InfoContext(ctx, "deadline reached, remaining activities deferred to next invocation",
				"next_activity", string(activity),
				"elapsed", guard.Elapsed().String(),
			)
			summary.StopReason = StopDeadline
			return nil
		}

		deadlineHit, err := d.processActivity(ctx, activity, doc, planner, guard, summary, logger)
		if err != nil {
			logger.ErrorContext(ctx, "activity processing failed",
				"activity", string(activity),
				"error", err,
			)
			return fmt.Errorf("activity %s: %w", activity, err)
		}
		if deadlineHit {
			logger.InfoContext(ctx, "deadline reached mid-activity, backlog deferred to next invocation",
				"activity", string(activity),
				"elapsed", guard.Elapsed().String(),
			)
			summary.StopReason = StopDeadline
			return nil
		}
	}

	summary.StopReason = StopCompleted
	return nil
}

// processActivity dispatches every planned window for one activity,
// persisting the document after each. It reports true when the guard tripped
// before the activity was caught up.
func (d *Driver) processActivity(
	ctx context.Context,
	activity types.Activity,
	doc watermark.Document,
	planner Planner,
	guard *Guard,
	summary *RunSummary,
	logger *slog.Logger,
) (bool, error) {
	cutoff := d.cutoff.Cutoff(activity, d.clock())
	current, _ := doc.Get(activity)

	logger.DebugContext(ctx, "planning activity",
		"activity", string(activity),
		"watermark", types.FormatTimestamp(current),
		"cutoff", types.FormatTimestamp(cutoff),
		"delay", d.cutoff.Delay(activity).String(),
	)

	deadlineHit := false
	for w := range planner.Plan(current, cutoff) {
		if guard.Exceeded() {
			deadlineHit = true
			break
		}

		item := types.NewWorkItem(activity, w)
		// The in-memory advance is only persisted after the send succeeds.
		if !doc.Advance(activity, w.End) {
			return false, types.NewAppError(types.ErrCodeInternalUnexpected, "watermark would move backward", nil).
				WithDetails(map[string]any{
					"activity":   string(activity),
					"window_end": item.EndTime,
				})
		}
		if err := d.queue.Send(ctx, item); err != nil {
			return false, fmt.Errorf("enqueueing window %s..%s: %w", item.StartTime, item.EndTime, err)
		}
		summary.WindowsDispatched++
		summary.PerActivity[activity]++

		if err := d.store.Save(ctx, doc); err != nil {
			return false, fmt.Errorf("persisting watermark %s: %w", item.EndTime, err)
		}
	}

	final, _ := doc.Get(activity)
	lag := cutoff.Sub(final)
	if lag < 0 {
		lag = 0
	}
	summary.Lag[activity] = lag

	if n := summary.PerActivity[activity]; n > 0 {
		logger.InfoContext(ctx, "activity dispatched",
			"activity", string(activity),
			"windows", n,
			"watermark", types.FormatTimestamp(final),
		)
	}
	return deadlineHit, nil
}

func (d *Driver) startHistory(ctx context.Context, logger *slog.Logger, in TriggerInput, startedAt time.Time) (int64, bool) {
	if d.history == nil {
		return 0, false
	}
	id, err := d.history.Start(ctx, in, startedAt)
	if err != nil {
		logger.WarnContext(ctx, "failed to record invocation start", "error", err)
		return 0, false
	}
	return id, true
}

func (d *Driver) finishHistory(ctx context.Context, logger *slog.Logger, id int64, summary RunSummary, runErr error) {
	if err := d.history.Finish(ctx, id, summary, runErr); err != nil {
		logger.WarnContext(ctx, "failed to record invocation outcome", "error", err)
	}
}

func (d *Driver) publishMetrics(ctx context.Context, logger *slog.Logger, summary RunSummary) {
	if d.metrics == nil {
		return
	}
	if err := d.metrics.PublishRun(ctx, summary); err != nil {
		logger.WarnContext(ctx, "failed to publish run metrics", "error", err)
	}
}

func formatOptional(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return types.FormatTimestamp(t)
}
