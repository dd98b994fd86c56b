package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"reportpoller/internal/types"
)

const testStateKey = "gworkspace/watermarks.json"

func TestStateRepository_Get(t *testing.T) {
	stored := `{"admin":"2024-06-10T11:00:00.000Z"}`

	tests := []struct {
		name    string
		row     pgx.Row
		want    string
		wantErr bool
	}{
		{
			name: "row present",
			row: rowFunc(func(dest ...any) error {
				*dest[0].(*string) = stored
				return nil
			}),
			want: stored,
		},
		{name: "no row reads as empty", row: failingRow(pgx.ErrNoRows), want: ""},
		{name: "driver error", row: failingRow(errors.New("connection refused")), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(dbMock)
			db.On("QueryRow", mock.Anything, sqlWith("FROM scheduler_state", "key = $1"), []any{testStateKey}).
				Return(tt.row)

			got, err := NewStateRepository(db, testStateKey).Get(context.Background())
			db.AssertExpectations(t)

			if tt.wantErr {
				var appErr *types.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
				assert.Equal(t, testStateKey, appErr.Details["key"])
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStateRepository_PostUpserts(t *testing.T) {
	db := new(dbMock)
	body := `{"admin":"2024-06-10T11:05:00.000Z"}`
	db.On("Exec", mock.Anything,
		sqlWith("INSERT INTO scheduler_state", "ON CONFLICT (key) DO UPDATE"),
		[]any{testStateKey, body},
	).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, NewStateRepository(db, testStateKey).Post(context.Background(), body))
	db.AssertExpectations(t)
}

func TestStateRepository_PostError(t *testing.T) {
	db := new(dbMock)
	db.On("Exec", mock.Anything, mock.Anything, mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("disk full"))

	err := NewStateRepository(db, testStateKey).Post(context.Background(), "{}")
	assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
}
