package sheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectHeaderRowSkipsBannerRows(t *testing.T) {
	grid := [][]string{
		{"SRM Institute of Science and Technology"},
		{"Office of the Controller of Examinations"},
		{"Result Export", "2024"},
		{"S.No", "Office Name", "Register No", "Student Name", "Semester", "Batch", "Degree", "Branch of Study", "Graduation Type", "Course Code", "Course Title", "Credits", "Grade", "Mode Of Attempt"},
	}
	for i := 0; i < 8; i++ {
		grid = append(grid, []string{"1", "Office", "RA001", "Alice", "4", "2022", "B.Tech", "CSE", "Regular", "21CSC204J", "Design", "4", "A+", "Regular"})
	}

	assert.Equal(t, 3, DetectHeaderRow(grid, ExpectedHeaders, DefaultHeaderScanRows, DefaultHeaderThreshold))
}

func TestDetectHeaderRowToleratesCaseAndWhitespace(t *testing.T) {
	grid := [][]string{
		{"  s.no ", "OFFICE NAME", "register no", " Student Name", "SEMESTER", "batch", "DEGREE", "branch of study"},
	}

	assert.Equal(t, 0, DetectHeaderRow(grid, ExpectedHeaders, DefaultHeaderScanRows, DefaultHeaderThreshold))
}

func TestDetectHeaderRowFallsBackToFirstRow(t *testing.T) {
	grid := [][]string{
		{"just", "random", "cells"},
		{"nothing", "matching", "here"},
	}

	assert.Equal(t, 0, DetectHeaderRow(grid, ExpectedHeaders, DefaultHeaderScanRows, DefaultHeaderThreshold))
}

func TestDetectHeaderRowBelowThresholdIgnored(t *testing.T) {
	// 5 of 14 labels is below the default threshold of 6.
	grid := [][]string{
		{"S.No", "Register No", "Student Name", "Grade", "Batch"},
		{"S.No", "Office Name", "Register No", "Student Name", "Semester", "Batch", "Degree"},
	}

	assert.Equal(t, 1, DetectHeaderRow(grid, ExpectedHeaders, DefaultHeaderScanRows, DefaultHeaderThreshold))
}
