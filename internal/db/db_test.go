package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// dbMock is a testify mock of DBTX. Variadic SQL arguments are recorded as a
// single []any.
type dbMock struct {
	mock.Mock
}

func (m *dbMock) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	ret := m.Called(ctx, sql, args)
	return ret.Get(0).(pgconn.CommandTag), ret.Error(1)
}

func (m *dbMock) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return m.Called(ctx, sql, args).Get(0).(pgx.Row)
}

// rowFunc adapts a scan function to pgx.Row.
type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

func failingRow(err error) pgx.Row {
	return rowFunc(func(...any) error { return err })
}

// sqlWith matches a statement that contains every fragment.
func sqlWith(fragments ...string) any {
	return mock.MatchedBy(func(sql string) bool {
		for _, f := range fragments {
			if !strings.Contains(sql, f) {
				return false
			}
		}
		return true
	})
}
