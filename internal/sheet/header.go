package sheet

import "strings"

// Canonical column labels expected in an enrollment/grade export.
const (
	ColSerialNo       = "S.No"
	ColOfficeName     = "Office Name"
	ColRegisterNo     = "Register No"
	ColStudentName    = "Student Name"
	ColSemester       = "Semester"
	ColBatch          = "Batch"
	ColDegree         = "Degree"
	ColBranch         = "Branch of Study"
	ColGraduationType = "Graduation Type"
	ColCourseCode     = "Course Code"
	ColCourseTitle    = "Course Title"
	ColCredits        = "Credits"
	ColGrade          = "Grade"
	ColAttemptMode    = "Mode Of Attempt"
)

// ExpectedHeaders lists all labels a well-formed export carries.
var ExpectedHeaders = []string{
	ColSerialNo, ColOfficeName, ColRegisterNo, ColStudentName,
	ColSemester, ColBatch, ColDegree, ColBranch, ColGraduationType,
	ColCourseCode, ColCourseTitle, ColCredits, ColGrade, ColAttemptMode,
}

// DefaultHeaderScanRows bounds the banner-row scan.
const DefaultHeaderScanRows = 10

// DefaultHeaderThreshold is the minimum label matches that identify a
// header row.
const DefaultHeaderThreshold = 6

// DetectHeaderRow scans the leading rows of the grid and returns the index
// of the first row matching at least threshold expected labels. Exports
// often carry title and banner rows above the real header, so row 0 is only
// a fallback when nothing scores high enough.
func DetectHeaderRow(grid [][]string, expected []string, scanRows, threshold int) int {
	if scanRows <= 0 {
		scanRows = DefaultHeaderScanRows
	}
	if threshold <= 0 {
		threshold = DefaultHeaderThreshold
	}
	expectedSet := make(map[string]struct{}, len(expected))
	for _, label := range expected {
		expectedSet[normalizeLabel(label)] = struct{}{}
	}

	limit := len(grid)
	if limit > scanRows {
		limit = scanRows
	}
	for i := 0; i < limit; i++ {
		score := 0
		for _, cell := range grid[i] {
			if cell == "" {
				continue
			}
			if _, ok := expectedSet[normalizeLabel(cell)]; ok {
				score++
			}
		}
		if score >= threshold {
			return i
		}
	}
	return 0
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
