package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradebook-api/internal/models"
)

// AnalyticsRepository aggregates pass/fail outcomes in SQL. The letter
// grade to point mapping mirrors the classifier's scale and is used for
// GPA aggregation only, never for the pass flag.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository constructs an AnalyticsRepository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

const gradePointCase = `CASE raw_grade
    WHEN 'O' THEN 10 WHEN 'A+' THEN 9 WHEN 'A' THEN 8 WHEN 'B+' THEN 7
    WHEN 'B' THEN 6 WHEN 'C+' THEN 5 WHEN 'C' THEN 4 WHEN 'D' THEN 3
    WHEN 'F' THEN 0 ELSE NULL END`

// Overview returns the dashboard headline counts.
func (r *AnalyticsRepository) Overview(ctx context.Context) (*models.AnalyticsOverview, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM students) AS students,
        (SELECT COUNT(*) FROM courses) AS courses,
        (SELECT COUNT(*) FROM grades) AS grades,
        COALESCE((SELECT ROUND(AVG(CASE WHEN passed THEN 1.0 ELSE 0.0 END) * 100, 2) FROM grades), 0) AS pass_rate,
        (SELECT COUNT(*) FROM grades WHERE attempt_mode = 'Arrear') AS arrear_count`
	var overview models.AnalyticsOverview
	if err := r.db.GetContext(ctx, &overview, query); err != nil {
		return nil, fmt.Errorf("analytics overview: %w", err)
	}
	return &overview, nil
}

// CoursePassRates aggregates pass/fail counts per course.
func (r *AnalyticsRepository) CoursePassRates(ctx context.Context) ([]models.CoursePassRate, error) {
	const query = `SELECT c.id AS course_id, c.code AS course_code, c.title AS course_title,
        COUNT(g.id) AS total,
        COUNT(g.id) FILTER (WHERE g.passed) AS passed,
        COUNT(g.id) FILTER (WHERE NOT g.passed) AS failed,
        COALESCE(ROUND(AVG(CASE WHEN g.passed THEN 1.0 ELSE 0.0 END) * 100, 2), 0) AS pass_rate
        FROM courses c
        JOIN grades g ON g.course_id = c.id
        GROUP BY c.id, c.code, c.title
        ORDER BY c.code`
	var rates []models.CoursePassRate
	if err := r.db.SelectContext(ctx, &rates, query); err != nil {
		return nil, fmt.Errorf("course pass rates: %w", err)
	}
	return rates, nil
}

// CohortPassRates aggregates pass rates per semester and batch.
func (r *AnalyticsRepository) CohortPassRates(ctx context.Context) ([]models.CohortPassRate, error) {
	const query = `SELECT s.semester, s.batch,
        COUNT(g.id) AS total,
        COUNT(g.id) FILTER (WHERE g.passed) AS passed,
        COALESCE(ROUND(AVG(CASE WHEN g.passed THEN 1.0 ELSE 0.0 END) * 100, 2), 0) AS pass_rate
        FROM students s
        JOIN grades g ON g.student_id = s.id
        GROUP BY s.semester, s.batch
        ORDER BY s.semester, s.batch`
	var rates []models.CohortPassRate
	if err := r.db.SelectContext(ctx, &rates, query); err != nil {
		return nil, fmt.Errorf("cohort pass rates: %w", err)
	}
	return rates, nil
}

// StudentGPAs computes credit-weighted GPA per student, excluding tokens
// outside the point scale, best first.
func (r *AnalyticsRepository) StudentGPAs(ctx context.Context, limit int) ([]models.StudentGPA, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT s.id AS student_id, s.register_no, s.full_name,
        COUNT(g.id) AS courses,
        COALESCE(ROUND(SUM((%[1]s) * COALESCE(c.credits, 1))::numeric / NULLIF(SUM(CASE WHEN (%[1]s) IS NULL THEN 0 ELSE COALESCE(c.credits, 1) END), 0), 2), 0) AS gpa
        FROM students s
        JOIN grades g ON g.student_id = s.id
        JOIN courses c ON c.id = g.course_id
        GROUP BY s.id, s.register_no, s.full_name
        ORDER BY gpa DESC
        LIMIT %d`, gradePointCase, limit)
	var gpas []models.StudentGPA
	if err := r.db.SelectContext(ctx, &gpas, query); err != nil {
		return nil, fmt.Errorf("student gpas: %w", err)
	}
	return gpas, nil
}
