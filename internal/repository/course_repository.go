package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradebook-api/internal/models"
)

// CourseRepository manages persistence for course records.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FetchByCodes returns existing courses whose normalized code is in codes.
func (r *CourseRepository) FetchByCodes(ctx context.Context, codes []string) ([]models.Course, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(codes))
	args := make([]interface{}, len(codes))
	for i, code := range codes {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = code
	}
	query := fmt.Sprintf(`SELECT id, code, title, credits, created_at, updated_at
        FROM courses WHERE code IN (%s)`, strings.Join(placeholders, ","))
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("fetch courses by codes: %w", err)
	}
	return courses, nil
}

// InsertMissing creates course records for codes that do not exist yet.
// Concurrent ingestion runs inserting the same code resolve via the
// conflict clause instead of failing. Returns the number of rows created.
func (r *CourseRepository) InsertMissing(ctx context.Context, courses []models.Course) (int64, error) {
	if len(courses) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	for i := range courses {
		if courses[i].ID == "" {
			courses[i].ID = uuid.NewString()
		}
		if courses[i].Title == "" {
			courses[i].Title = courses[i].Code
		}
		courses[i].CreatedAt = now
		courses[i].UpdatedAt = now
	}
	const query = `INSERT INTO courses (id, code, title, credits, created_at, updated_at)
        VALUES (:id, :code, :title, :credits, :created_at, :updated_at)
        ON CONFLICT (code) DO NOTHING`
	result, err := r.db.NamedExecContext(ctx, query, courses)
	if err != nil {
		return 0, fmt.Errorf("insert missing courses: %w", err)
	}
	created, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return created, nil
}

// Backfill fills in empty titles and missing credits from freshly observed
// values without ever overwriting already-known good data.
func (r *CourseRepository) Backfill(ctx context.Context, courses []models.Course) error {
	if len(courses) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const query = `UPDATE courses SET
        title = CASE WHEN title = '' OR title = code THEN :title ELSE title END,
        credits = COALESCE(credits, :credits),
        updated_at = :updated_at
        WHERE code = :code`
	for i := range courses {
		if courses[i].Title == "" && courses[i].Credits == nil {
			continue
		}
		if courses[i].Title == "" {
			courses[i].Title = courses[i].Code
		}
		courses[i].UpdatedAt = time.Now().UTC()
		if _, err := tx.NamedExecContext(ctx, query, courses[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("backfill course %s: %w", courses[i].Code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit course backfill: %w", err)
	}
	return nil
}

// List returns all courses ordered by code.
func (r *CourseRepository) List(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	const query = `SELECT id, code, title, credits, created_at, updated_at FROM courses ORDER BY code`
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}
