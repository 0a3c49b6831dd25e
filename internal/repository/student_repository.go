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

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// BulkUpsert merges students keyed on register number. Existing rows are
// updated in place, never duplicated.
func (r *StudentRepository) BulkUpsert(ctx context.Context, students []models.Student) error {
	if len(students) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const query = `INSERT INTO students (id, register_no, full_name, semester, batch, degree, office_name, branch, graduation_type, created_at, updated_at)
        VALUES (:id, :register_no, :full_name, :semester, :batch, :degree, :office_name, :branch, :graduation_type, :created_at, :updated_at)
        ON CONFLICT (register_no) DO UPDATE SET
            full_name = EXCLUDED.full_name,
            semester = EXCLUDED.semester,
            batch = EXCLUDED.batch,
            degree = EXCLUDED.degree,
            office_name = EXCLUDED.office_name,
            branch = EXCLUDED.branch,
            graduation_type = EXCLUDED.graduation_type,
            updated_at = EXCLUDED.updated_at`
	for i := range students {
		if students[i].ID == "" {
			students[i].ID = uuid.NewString()
		}
		now := time.Now().UTC()
		if students[i].CreatedAt.IsZero() {
			students[i].CreatedAt = now
		}
		students[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, students[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("upsert student %s: %w", students[i].RegisterNo, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit students: %w", err)
	}
	return nil
}

// FetchIDsByRegisterNos returns register_no -> id for the given keys.
// Callers chunk the key set; this issues a single IN query.
func (r *StudentRepository) FetchIDsByRegisterNos(ctx context.Context, registerNos []string) (map[string]string, error) {
	if len(registerNos) == 0 {
		return map[string]string{}, nil
	}
	placeholders := make([]string, len(registerNos))
	args := make([]interface{}, len(registerNos))
	for i, regNo := range registerNos {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = regNo
	}
	query := fmt.Sprintf("SELECT id, register_no FROM students WHERE register_no IN (%s)", strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch student ids: %w", err)
	}
	defer rows.Close()
	result := make(map[string]string, len(registerNos))
	for rows.Next() {
		var id, regNo string
		if err := rows.Scan(&id, &regNo); err != nil {
			return nil, fmt.Errorf("scan student id: %w", err)
		}
		result[regNo] = id
	}
	return result, nil
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students s"
	var args []interface{}
	conditions := []string{"1=1"}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR LOWER(s.register_no) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Batch != "" {
		conditions = append(conditions, fmt.Sprintf("s.batch = $%d", len(args)+1))
		args = append(args, filter.Batch)
	}
	if filter.Semester > 0 {
		conditions = append(conditions, fmt.Sprintf("s.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"full_name":   "s.full_name",
		"register_no": "s.register_no",
		"created_at":  "s.created_at",
	}
	if sortBy == "" {
		sortBy = "register_no"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "s.register_no"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.register_no, s.full_name, s.semester, s.batch, s.degree, s.office_name, s.branch, s.graduation_type, s.created_at, s.updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, register_no, full_name, semester, batch, degree, office_name, branch, graduation_type, created_at, updated_at
        FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}
