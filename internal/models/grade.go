package models

import "time"

// Attempt modes recorded on a grade.
const (
	AttemptRegular = "Regular"
	AttemptArrear  = "Arrear"
)

// Grade links a student and a course with the raw grade token and its
// derived pass flag. Unique per (student, course); re-ingestion updates
// in place.
type Grade struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	RawGrade    string    `db:"raw_grade" json:"raw_grade"`
	Passed      bool      `db:"passed" json:"passed"`
	AttemptMode string    `db:"attempt_mode" json:"attempt_mode"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// GradeDetail joins a grade with its course for per-student listings.
type GradeDetail struct {
	Grade
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseTitle string `db:"course_title" json:"course_title"`
}
