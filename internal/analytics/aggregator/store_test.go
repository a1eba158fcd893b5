package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/postgres"
)

func newStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := NewStore(postgres.FromDB(db))
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s, mock
}

func TestSaveSnapshot(t *testing.T) {
	s, mock := newStore(t)
	mock.ExpectExec(`INSERT INTO match_analytics_snapshots`).
		WithArgs(sqlmock.AnyArg(), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.SaveSnapshot(context.Background(), analytics.AggregatedStats{TotalRankings: 4}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSnapshotError(t *testing.T) {
	s, mock := newStore(t)
	mock.ExpectExec(`INSERT INTO match_analytics_snapshots`).WillReturnError(errors.New("disk full"))

	err := s.SaveSnapshot(context.Background(), analytics.AggregatedStats{})
	assert.ErrorContains(t, err, "disk full")
}

func TestLatestSnapshot(t *testing.T) {
	s, mock := newStore(t)
	mock.ExpectQuery(`SELECT data FROM match_analytics_snapshots`).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"total_rankings":7,"cache_hits":2}`)))

	stats, err := s.LatestSnapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, int64(7), stats.TotalRankings)
	assert.Equal(t, int64(2), stats.CacheHits)
}

func TestLatestSnapshotEmpty(t *testing.T) {
	s, mock := newStore(t)
	mock.ExpectQuery(`SELECT data FROM match_analytics_snapshots`).
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	stats, err := s.LatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stats)
}
