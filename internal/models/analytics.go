package models

// CoursePassRate aggregates pass/fail outcomes for a single course.
type CoursePassRate struct {
	CourseID    string  `db:"course_id" json:"course_id"`
	CourseCode  string  `db:"course_code" json:"course_code"`
	CourseTitle string  `db:"course_title" json:"course_title"`
	Total       int     `db:"total" json:"total"`
	Passed      int     `db:"passed" json:"passed"`
	Failed      int     `db:"failed" json:"failed"`
	PassRate    float64 `db:"pass_rate" json:"pass_rate"`
}

// CohortPassRate aggregates pass/fail outcomes per semester and batch.
type CohortPassRate struct {
	Semester int     `db:"semester" json:"semester"`
	Batch    string  `db:"batch" json:"batch"`
	Total    int     `db:"total" json:"total"`
	Passed   int     `db:"passed" json:"passed"`
	PassRate float64 `db:"pass_rate" json:"pass_rate"`
}

// StudentGPA is the credit-weighted grade point average for one student.
// Tokens outside the point scale are excluded from the aggregation.
type StudentGPA struct {
	StudentID  string  `db:"student_id" json:"student_id"`
	RegisterNo string  `db:"register_no" json:"register_no"`
	FullName   string  `db:"full_name" json:"full_name"`
	Courses    int     `db:"courses" json:"courses"`
	GPA        float64 `db:"gpa" json:"gpa"`
}

// AnalyticsOverview is the dashboard headline summary.
type AnalyticsOverview struct {
	Students    int     `db:"students" json:"students"`
	Courses     int     `db:"courses" json:"courses"`
	Grades      int     `db:"grades" json:"grades"`
	PassRate    float64 `db:"pass_rate" json:"pass_rate"`
	ArrearCount int     `db:"arrear_count" json:"arrear_count"`
}
