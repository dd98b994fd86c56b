package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"reportpoller/internal/scheduler"
	"reportpoller/internal/types"
)

var (
	runStarted   = time.Date(2024, 6, 10, 12, 0, 30, 0, time.UTC)
	runScheduled = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
)

func TestRunHistory_StartInsertsRunningRow(t *testing.T) {
	db := new(dbMock)
	in := scheduler.TriggerInput{InvocationID: "inv-1", ScheduledTime: runScheduled, PastDue: true}

	db.On("QueryRow", mock.Anything, sqlWith("INSERT INTO scheduler_runs", "RETURNING id"), mock.MatchedBy(func(args []any) bool {
		scheduled, ok := args[1].(*time.Time)
		return len(args) == 5 &&
			args[0] == "inv-1" &&
			ok && scheduled.Equal(runScheduled) &&
			args[2] == true &&
			args[3].(time.Time).Equal(runStarted) &&
			args[4] == "running"
	})).Return(rowFunc(func(dest ...any) error {
		*dest[0].(*int64) = 99
		return nil
	}))

	id, err := NewRunHistoryRepository(db).Start(context.Background(), in, runStarted)
	require.NoError(t, err)
	assert.Equal(t, int64(99), id)
	db.AssertExpectations(t)
}

func TestRunHistory_StartWithoutScheduledTime(t *testing.T) {
	db := new(dbMock)
	db.On("QueryRow", mock.Anything, mock.Anything, mock.MatchedBy(func(args []any) bool {
		return args[1].(*time.Time) == nil
	})).Return(rowFunc(func(dest ...any) error {
		*dest[0].(*int64) = 1
		return nil
	}))

	_, err := NewRunHistoryRepository(db).Start(context.Background(), scheduler.TriggerInput{InvocationID: "inv-2"}, runStarted)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestRunHistory_StartError(t *testing.T) {
	db := new(dbMock)
	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(failingRow(errors.New("connection refused")))

	id, err := NewRunHistoryRepository(db).Start(context.Background(), scheduler.TriggerInput{InvocationID: "inv-3"}, runStarted)
	assert.Zero(t, id)
	assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
}

func finishedSummary() scheduler.RunSummary {
	return scheduler.RunSummary{
		InvocationID:      "inv-1",
		StartedAt:         runStarted,
		FinishedAt:        runStarted.Add(40 * time.Second),
		StopReason:        scheduler.StopDeadline,
		QueueDepth:        12,
		StateKind:         "document",
		WindowsDispatched: 3,
		PerActivity:       map[types.Activity]int{types.ActivityAdmin: 2, types.ActivityDrive: 1},
	}
}

func TestRunHistory_FinishRecordsSummary(t *testing.T) {
	db := new(dbMock)
	db.On("Exec", mock.Anything, sqlWith("UPDATE scheduler_runs", "WHERE id = $1"), mock.MatchedBy(func(args []any) bool {
		per, ok := args[4].(map[string]int)
		return len(args) == 8 &&
			args[0] == int64(99) &&
			args[1].(time.Time).Equal(runStarted.Add(40*time.Second)) &&
			args[2] == "deadline" &&
			args[3] == 3 &&
			ok && per["admin"] == 2 && per["drive"] == 1 &&
			args[5] == 12 &&
			args[6] == "document" &&
			args[7].(*string) == nil
	})).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	require.NoError(t, NewRunHistoryRepository(db).Finish(context.Background(), 99, finishedSummary(), nil))
	db.AssertExpectations(t)
}

func TestRunHistory_FinishRecordsError(t *testing.T) {
	db := new(dbMock)
	var recorded *string
	db.On("Exec", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { recorded = args.Get(2).([]any)[7].(*string) }).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	summary := finishedSummary()
	summary.StopReason = scheduler.StopFailed
	err := NewRunHistoryRepository(db).Finish(context.Background(), 99, summary, errors.New("activity admin: boom"))

	require.NoError(t, err)
	require.NotNil(t, recorded)
	assert.Equal(t, "activity admin: boom", *recorded)
}

func TestRunHistory_FinishTruncatesLongErrors(t *testing.T) {
	db := new(dbMock)
	var recorded *string
	db.On("Exec", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { recorded = args.Get(2).([]any)[7].(*string) }).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	long := errors.New(strings.Repeat("é", maxRunErrorBytes))
	require.NoError(t, NewRunHistoryRepository(db).Finish(context.Background(), 1, finishedSummary(), long))

	require.NotNil(t, recorded)
	assert.LessOrEqual(t, len(*recorded), maxRunErrorBytes)
	assert.True(t, strings.HasPrefix(long.Error(), *recorded))
}

func TestRunHistory_FinishFailures(t *testing.T) {
	tests := []struct {
		name string
		tag  pgconn.CommandTag
		err  error
		code types.ErrorCode
	}{
		{"missing row", pgconn.NewCommandTag("UPDATE 0"), nil, types.ErrCodeInternalUnexpected},
		{"driver error", pgconn.CommandTag{}, errors.New("timeout"), types.ErrCodeInternalDB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(dbMock)
			db.On("Exec", mock.Anything, mock.Anything, mock.Anything).Return(tt.tag, tt.err)

			err := NewRunHistoryRepository(db).Finish(context.Background(), 404, finishedSummary(), nil)
			assert.Equal(t, tt.code, types.CodeOf(err))
		})
	}
}
