package corpus

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/lemma"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/linetovec"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/postgres"
)

func newRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(postgres.FromDB(db)), mock
}

func TestRepositoryGetEncodings(t *testing.T) {
	repo, mock := newRepository(t)
	mock.ExpectQuery(`SELECT line_to_vec FROM fragments WHERE id`).
		WithArgs("X.1").
		WillReturnRows(sqlmock.NewRows([]string{"line_to_vec"}).AddRow([]byte(`[[0,1,2,1,5],[0,1,5]]`)))

	encodings, err := repo.GetEncodings(context.Background(), "X.1")
	require.NoError(t, err)
	assert.Equal(t, []linetovec.Sequence{
		linetovec.MustFromInts(0, 1, 2, 1, 5),
		linetovec.MustFromInts(0, 1, 5),
	}, encodings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetEncodingsNotFound(t *testing.T) {
	repo, mock := newRepository(t)
	mock.ExpectQuery(`SELECT line_to_vec FROM fragments WHERE id`).
		WithArgs("X.404").
		WillReturnRows(sqlmock.NewRows([]string{"line_to_vec"}))

	_, err := repo.GetEncodings(context.Background(), "X.404")
	assert.ErrorIs(t, err, apperrors.ErrFragmentNotFound)
}

func TestRepositoryGetEncodingsRejectsBadCodes(t *testing.T) {
	repo, mock := newRepository(t)
	mock.ExpectQuery(`SELECT line_to_vec FROM fragments WHERE id`).
		WithArgs("X.1").
		WillReturnRows(sqlmock.NewRows([]string{"line_to_vec"}).AddRow([]byte(`[[0,9]]`)))

	_, err := repo.GetEncodings(context.Background(), "X.1")
	assert.ErrorContains(t, err, "decoding encodings of X.1")
}

func TestRepositoryAllTransliteratedEncodings(t *testing.T) {
	repo, mock := newRepository(t)
	mock.ExpectQuery(`SELECT id, line_to_vec FROM fragments`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "line_to_vec"}).
			AddRow("X.1", []byte(`[[0,1,5]]`)).
			AddRow("X.2", []byte(`[]`)).
			AddRow("X.3", []byte(`[[0,2,5],[0,3,5]]`)))

	entries, err := repo.AllTransliteratedEncodings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{ID: "X.1", Encodings: []linetovec.Sequence{linetovec.MustFromInts(0, 1, 5)}},
		{ID: "X.3", Encodings: []linetovec.Sequence{linetovec.MustFromInts(0, 2, 5), linetovec.MustFromInts(0, 3, 5)}},
	}, entries)
}

func TestRepositoryAllTransliteratedEncodingsError(t *testing.T) {
	repo, mock := newRepository(t)
	mock.ExpectQuery(`SELECT id, line_to_vec FROM fragments`).WillReturnError(errors.New("connection refused"))

	_, err := repo.AllTransliteratedEncodings(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestRepositoryLemmaLines(t *testing.T) {
	repo, mock := newRepository(t)
	mock.ExpectQuery(`SELECT id, lemma_lines FROM fragments`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "lemma_lines"}).
			AddRow("X.1", []byte(`[[["uk I"],[],["kur II","kur I"]]]`)))

	hits, err := repo.LemmaLines(context.Background(), []string{"X.1", "X.404"})
	require.NoError(t, err)
	assert.Equal(t, []lemma.Hit{{
		ID:    "X.1",
		Lines: []lemma.Line{{{"uk I"}, {}, {"kur II", "kur I"}}},
	}}, hits)
}

func TestRepositoryUpsertFragment(t *testing.T) {
	repo, mock := newRepository(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO fragments`).
		WithArgs("X.1", sqlmock.AnyArg(), []byte(`[[0,1,2,1,5],[0,1,3,1,5]]`), []byte(`[]`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entry, err := repo.UpsertFragment(context.Background(), Fragment{
		ID: "X.1",
		Lines: []linetovec.Line{
			linetovec.Text(1),
			linetovec.Rule(linetovec.RulingSingle, linetovec.RulingDouble),
			linetovec.Text(2),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "X.1", entry.ID)
	assert.Len(t, entry.Encodings, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpsertFragmentRollsBack(t *testing.T) {
	repo, mock := newRepository(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO fragments`).WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	_, err := repo.UpsertFragment(context.Background(), Fragment{ID: "X.1"})
	assert.ErrorContains(t, err, "deadlock detected")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryDeleteFragment(t *testing.T) {
	repo, mock := newRepository(t)
	mock.ExpectExec(`DELETE FROM fragments`).WithArgs("X.1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM fragments`).WithArgs("X.2").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeleteFragment(context.Background(), "X.1"))
	assert.ErrorIs(t, repo.DeleteFragment(context.Background(), "X.2"), apperrors.ErrFragmentNotFound)
}
