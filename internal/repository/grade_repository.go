package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradebook-api/internal/models"
)

// GradeRepository handles grade persistence.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// BulkUpsert merges one chunk of grades in a transaction, keyed on the
// (student, course) pair. Re-ingesting the same file updates rows in place.
func (r *GradeRepository) BulkUpsert(ctx context.Context, grades []models.Grade) error {
	if len(grades) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const query = `INSERT INTO grades (id, student_id, course_id, raw_grade, passed, attempt_mode, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :raw_grade, :passed, :attempt_mode, :created_at, :updated_at)
        ON CONFLICT (student_id, course_id)
        DO UPDATE SET raw_grade = EXCLUDED.raw_grade, passed = EXCLUDED.passed, attempt_mode = EXCLUDED.attempt_mode, updated_at = EXCLUDED.updated_at`
	for i := range grades {
		if grades[i].ID == "" {
			grades[i].ID = uuid.NewString()
		}
		now := time.Now().UTC()
		if grades[i].CreatedAt.IsZero() {
			grades[i].CreatedAt = now
		}
		grades[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, grades[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("upsert grade: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grades: %w", err)
	}
	return nil
}

// ListByStudent returns a student's grades joined with course details.
func (r *GradeRepository) ListByStudent(ctx context.Context, studentID string) ([]models.GradeDetail, error) {
	const query = `SELECT g.id, g.student_id, g.course_id, g.raw_grade, g.passed, g.attempt_mode, g.created_at, g.updated_at,
        c.code AS course_code, c.title AS course_title
        FROM grades g
        JOIN courses c ON c.id = g.course_id
        WHERE g.student_id = $1
        ORDER BY c.code`
	var grades []models.GradeDetail
	if err := r.db.SelectContext(ctx, &grades, query, studentID); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}
