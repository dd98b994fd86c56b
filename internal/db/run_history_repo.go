package db

import (
	"context"
	"strings"
	"time"

	"reportpoller/internal/scheduler"
	"reportpoller/internal/types"
)

const (
	runStatusRunning = "running"

	// Long AppError chains are cut to keep rows small.
	maxRunErrorBytes = 2048
)

var _ scheduler.RunHistory = (*RunHistoryRepository)(nil)

// RunHistoryRepository writes one scheduler_runs row per invocation: inserted
// as running when the invocation starts, completed with the stop reason and
// dispatch counts when it ends. A row left in running means the Lambda was
// killed before Finish.
type RunHistoryRepository struct {
	db DBTX
}

func NewRunHistoryRepository(db DBTX) *RunHistoryRepository {
	return &RunHistoryRepository{db: db}
}

func (r *RunHistoryRepository) Start(ctx context.Context, in scheduler.TriggerInput, startedAt time.Time) (int64, error) {
	var scheduledAt *time.Time
	if !in.ScheduledTime.IsZero() {
		ts := in.ScheduledTime.UTC()
		scheduledAt = &ts
	}

	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO scheduler_runs (invocation_id, scheduled_at, past_due, started_at, stop_reason)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		in.InvocationID,
		scheduledAt,
		in.PastDue,
		startedAt.UTC(),
		runStatusRunning,
	).Scan(&id)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to record run start", err).
			WithDetails(map[string]any{"invocation_id": in.InvocationID})
	}
	return id, nil
}

// Finish completes the row. per_activity is stored as JSONB keyed by
// activity name.
func (r *RunHistoryRepository) Finish(ctx context.Context, id int64, summary scheduler.RunSummary, runErr error) error {
	perActivity := make(map[string]int, len(summary.PerActivity))
	for a, n := range summary.PerActivity {
		perActivity[string(a)] = n
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE scheduler_runs
		 SET finished_at = $2,
		     stop_reason = $3,
		     windows_dispatched = $4,
		     per_activity = $5,
		     queue_depth = $6,
		     state_kind = $7,
		     error = $8
		 WHERE id = $1`,
		id,
		summary.FinishedAt.UTC(),
		string(summary.StopReason),
		summary.WindowsDispatched,
		perActivity,
		summary.QueueDepth,
		summary.StateKind,
		errorText(runErr),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record run outcome", err).
			WithDetails(map[string]any{"run_id": id})
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "run history row not found", nil).
			WithDetails(map[string]any{"run_id": id})
	}
	return nil
}

func errorText(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if len(msg) > maxRunErrorBytes {
		msg = strings.ToValidUTF8(msg[:maxRunErrorBytes], "")
	}
	return &msg
}
