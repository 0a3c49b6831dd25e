package models

import "time"

// Student represents a learner identified by their register number.
type Student struct {
	ID             string    `db:"id" json:"id"`
	RegisterNo     string    `db:"register_no" json:"register_no"`
	FullName       string    `db:"full_name" json:"full_name"`
	Semester       int       `db:"semester" json:"semester"`
	Batch          string    `db:"batch" json:"batch"`
	Degree         string    `db:"degree" json:"degree"`
	OfficeName     string    `db:"office_name" json:"office_name"`
	Branch         string    `db:"branch" json:"branch"`
	GraduationType string    `db:"graduation_type" json:"graduation_type"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Batch     string
	Semester  int
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
