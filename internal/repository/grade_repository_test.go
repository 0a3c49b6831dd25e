package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-api/internal/models"
)

func TestGradeRepositoryBulkUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO grades").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO grades").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.BulkUpsert(context.Background(), []models.Grade{
		{StudentID: "s1", CourseID: "c1", RawGrade: "A+", Passed: true, AttemptMode: models.AttemptRegular},
		{StudentID: "s1", CourseID: "c2", RawGrade: "F", Passed: false, AttemptMode: models.AttemptArrear},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryBulkUpsertEmptyChunkIsNoop(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	require.NoError(t, repo.BulkUpsert(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "raw_grade", "passed", "attempt_mode", "created_at", "updated_at", "course_code", "course_title"}).
		AddRow("g1", "s1", "c1", "A+", true, "Regular", time.Now(), time.Now(), "21CSC204J", "Design and Analysis of Algorithms")
	mock.ExpectQuery("SELECT g.id, g.student_id, g.course_id").
		WithArgs("s1").
		WillReturnRows(rows)

	grades, err := repo.ListByStudent(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.True(t, grades[0].Passed)
	assert.Equal(t, "21CSC204J", grades[0].CourseCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}
