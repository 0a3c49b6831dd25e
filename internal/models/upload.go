package models

import "time"

// Upload statuses.
const (
	UploadStatusQueued     = "queued"
	UploadStatusProcessing = "processing"
	UploadStatusCompleted  = "completed"
	UploadStatusFailed     = "failed"
)

// Skip reasons tallied during an ingestion run.
const (
	SkipMissingIdentity   = "missing_register_no_or_name"
	SkipUnresolvedCourse  = "unresolved_course_code"
	SkipUnresolvedStudent = "unresolved_student"
	SkipEmptyGrade        = "empty_grade_token"
)

// Upload records one ingestion run. Progress snapshots live in Redis; this
// row is the durable bookkeeping.
type Upload struct {
	ID         string    `db:"id" json:"id"`
	FileName   string    `db:"file_name" json:"file_name"`
	Status     string    `db:"status" json:"status"`
	UploadedBy string    `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Progress is one checkpoint snapshot emitted during an ingestion run.
type Progress struct {
	PercentComplete int           `json:"percent_complete"`
	StatusMessage   string        `json:"status_message"`
	Done            bool          `json:"done"`
	Report          *IngestReport `json:"report,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// IngestReport summarises a completed (or aborted) run for operator review.
type IngestReport struct {
	StudentsProcessed int                 `json:"students_processed"`
	GradesProcessed   int                 `json:"grades_processed"`
	CoursesCreated    int                 `json:"courses_created"`
	Skipped           map[string]int      `json:"skipped,omitempty"`
	SkippedSamples    map[string][]string `json:"skipped_samples,omitempty"`
	UnmatchedGrades   []string            `json:"unmatched_grades,omitempty"`
}
