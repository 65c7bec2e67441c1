package metrics

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperation(t *testing.T) {
	tests := map[string]string{
		"SELECT id FROM feeds":                 "select",
		"\n\t  insert INTO deliveries VALUES":  "insert",
		"WITH x AS (SELECT 1) SELECT * FROM x": "with",
		"PRAGMA foreign_keys = ON":             "other",
		"":                                     "unknown",
	}
	for query, want := range tests {
		assert.Equal(t, want, Operation(query), query)
	}
}

func TestInstrumentedQuerier(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	q := Instrument(db)

	t.Run("TC-1: successful query is observed", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM feeds").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

		rows, err := q.QueryContext(context.Background(), "SELECT id FROM feeds")
		require.NoError(t, err)
		require.NoError(t, rows.Close())
		assert.GreaterOrEqual(t, testutil.CollectAndCount(DBQueryDuration), 1)
	})

	t.Run("TC-2: failed exec passes the error through", func(t *testing.T) {
		boom := errors.New("disk full")
		mock.ExpectExec("INSERT INTO deliveries").WillReturnError(boom)

		_, err := q.ExecContext(context.Background(), "INSERT INTO deliveries (id) VALUES ($1)", "d1")
		assert.ErrorIs(t, err, boom)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDBConnectionStats(t *testing.T) {
	UpdateDBConnectionStats(sql.DBStats{InUse: 3, Idle: 2})
	assert.Equal(t, 3.0, testutil.ToFloat64(DBConnectionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(DBConnectionsIdle))
}

func TestCollectDBStats(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		CollectDBStats(ctx, db, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}
