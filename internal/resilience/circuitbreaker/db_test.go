package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB_QueryContext(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	d := NewDBCircuitBreaker(db)
	assert.Equal(t, "rule-store", d.Name())

	mock.ExpectQuery("SELECT (.+) FROM rule_meta").
		WillReturnRows(sqlmock.NewRows([]string{"meta_key", "meta_value"}).AddRow("trigger", "purchase_completed"))

	rows, err := d.QueryContext(context.Background(), "SELECT meta_key, meta_value FROM rule_meta WHERE rule_id = $1", 1)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	require.True(t, rows.Next())
	var k, v string
	require.NoError(t, rows.Scan(&k, &v))
	assert.Equal(t, "trigger", k)
	assert.Equal(t, "purchase_completed", v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_ExecContext(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSERT INTO deliveries").WillReturnResult(sqlmock.NewResult(7, 1))

	res, err := NewDBCircuitBreaker(db).ExecContext(context.Background(), "INSERT INTO deliveries (rule_id) VALUES ($1)", 3)
	require.NoError(t, err)
	n, _ := res.RowsAffected()
	assert.EqualValues(t, 1, n)
}

func TestDB_OpensAndRecovers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	d := WrapDB(db, Config{
		Name:             "test-db",
		HalfOpenRequests: 1,
		Window:           time.Minute,
		Cooldown:         100 * time.Millisecond,
		TripRatio:        1.0,
		MinRequests:      3,
	})
	ctx := context.Background()

	down := errors.New("database connection failed")
	for i := range 3 {
		mock.ExpectQuery("SELECT (.+) FROM rules").WillReturnError(down)
		_, err := d.QueryContext(ctx, "SELECT id FROM rules")
		require.ErrorIs(t, err, down, "attempt %d", i)
	}

	require.True(t, d.IsOpen())
	_, err = d.QueryContext(ctx, "SELECT id FROM rules")
	assert.True(t, IsRejection(err))

	time.Sleep(150 * time.Millisecond)

	mock.ExpectQuery("SELECT (.+) FROM rules").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	rows, err := d.QueryContext(ctx, "SELECT id FROM rules")
	require.NoError(t, err)
	_ = rows.Close()

	assert.Equal(t, gobreaker.StateClosed, d.State())
}
