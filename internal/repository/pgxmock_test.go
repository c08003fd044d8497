package repository

import (
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newPoolMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

// setTime matches any non-zero time.Time argument.
type setTime struct{}

func (setTime) Match(v any) bool {
	ts, ok := v.(time.Time)
	return ok && !ts.IsZero()
}
