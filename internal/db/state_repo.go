package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"reportpoller/internal/types"
)

// StateRepository stores one opaque string value per key in the
// scheduler_state table. Bound to a single key it satisfies
// watermark.BlobStore.
type StateRepository struct {
	db  DBTX
	key string
}

// NewStateRepository creates a StateRepository for the given row key.
func NewStateRepository(db DBTX, key string) *StateRepository {
	return &StateRepository{db: db, key: key}
}

// Get returns the stored value, or "" when the row does not exist yet.
func (r *StateRepository) Get(ctx context.Context) (string, error) {
	var value string
	err := r.db.QueryRow(ctx,
		`SELECT value FROM scheduler_state WHERE key = $1`,
		r.key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to read scheduler state", err).
			WithDetails(map[string]any{"key": r.key})
	}
	return value, nil
}

// Post upserts the value for the repository key.
//
// SQL pattern:
//
//	INSERT INTO scheduler_state (key, value, updated_at)
//	VALUES ($1, $2, NOW())
//	ON CONFLICT (key) DO UPDATE
//	  SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
func (r *StateRepository) Post(ctx context.Context, body string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO scheduler_state (key, value, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE
		   SET value = EXCLUDED.value,
		       updated_at = EXCLUDED.updated_at`,
		r.key,
		body,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to write scheduler state", err).
			WithDetails(map[string]any{"key": r.key})
	}
	return nil
}
