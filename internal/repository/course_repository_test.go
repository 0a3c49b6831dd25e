package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCourseRepositoryFetchByCodes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"id", "code", "title", "credits", "created_at", "updated_at"}).
		AddRow("c1", "21CSC204J", "Design and Analysis of Algorithms", 4, time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, code, title, credits, created_at, updated_at").
		WithArgs("21CSC204J", "21CSC205P").
		WillReturnRows(rows)

	courses, err := repo.FetchByCodes(context.Background(), []string{"21CSC204J", "21CSC205P"})
	require.NoError(t, err)
	assert.Len(t, courses, 1)
	assert.Equal(t, "21CSC204J", courses[0].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFetchByCodesEmptySet(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	courses, err := repo.FetchByCodes(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, courses)
}

func TestCourseRepositoryInsertMissingDefaultsTitleToCode(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("INSERT INTO courses").
		WillReturnResult(sqlmock.NewResult(0, 2))

	created, err := repo.InsertMissing(context.Background(), []models.Course{
		{Code: "21CSC204J", Title: "Design"},
		{Code: "21CSC205P"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryBackfillSkipsEmptyObservations(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE courses SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	credits := 4
	err := repo.Backfill(context.Background(), []models.Course{
		{Code: "21CSC204J", Title: "Design", Credits: &credits},
		{Code: "21CSC205P"}, // nothing observed, no statement issued
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
