package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockDB creates a store over a sqlmock connection so the generated SQL
// can be asserted against the postgres dialect used in production.
func newMockDB(t *testing.T) (Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return NewGormStore(gormDB), mock
}

func TestGetLatest_QueriesStrictlyAfterCursor(t *testing.T) {
	s, mock := newMockDB(t)
	since := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT * FROM "analysis_records" WHERE patient_id = $1 AND window_end > $2 ORDER BY window_end ASC`)).
		WithArgs("PAT-1", since).
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_id", "window_end", "tremor_index"}).
			AddRow(1, "PAT-1", since.Add(5*time.Second), 0.42))

	records, err := s.GetLatest(context.Background(), "PAT-1", since, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "PAT-1", records[0].PatientID)
	assert.Equal(t, 0.42, records[0].TremorIndex)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRange_TailReadUsesDescendingLimit(t *testing.T) {
	s, mock := newMockDB(t)
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT * FROM "analysis_records" WHERE patient_id = $1 AND window_end >= $2 AND window_end <= $3 ORDER BY window_end DESC LIMIT $4`)).
		WithArgs("PAT-1", start, end, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_id", "window_end"}).
			AddRow(2, "PAT-1", start.Add(10*time.Second)).
			AddRow(1, "PAT-1", start.Add(5*time.Second)))

	records, err := s.GetRange(context.Background(), "PAT-1", start, end, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	// The descending page is reversed before returning.
	assert.True(t, records[0].WindowEnd.Before(records[1].WindowEnd))

	assert.NoError(t, mock.ExpectationsWereMet())
}
