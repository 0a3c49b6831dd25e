package sheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildColumnMapMatchesCaseInsensitively(t *testing.T) {
	header := []string{" register no ", "STUDENT NAME", "Course Code", "grade"}
	m := BuildColumnMap(header, []string{ColRegisterNo, ColStudentName, ColCourseCode, ColGrade})

	require.Len(t, m, 4)
	assert.Equal(t, 0, m[ColRegisterNo])
	assert.Equal(t, 1, m[ColStudentName])
	assert.Equal(t, 2, m[ColCourseCode])
	assert.Equal(t, 3, m[ColGrade])
}

func TestResolveTrimsAndHandlesShortRows(t *testing.T) {
	m := BuildColumnMap([]string{"Register No", "Grade"}, []string{ColRegisterNo, ColGrade})

	value, ok := m.Resolve([]string{"  RA2211003010001  ", "A+"}, ColRegisterNo)
	require.True(t, ok)
	assert.Equal(t, "RA2211003010001", value)

	_, ok = m.Resolve([]string{"RA2211003010001"}, ColGrade)
	assert.False(t, ok)

	_, ok = m.Resolve([]string{"RA2211003010001", "A+"}, ColCourseCode)
	assert.False(t, ok)
}

func TestValidateRequiredEnumeratesMissingAndFound(t *testing.T) {
	header := []string{"Register No", "Student Name", "Random Column"}
	m := BuildColumnMap(header, ExpectedHeaders)

	err := ValidateRequired(m, []string{ColRegisterNo, ColCourseCode, ColGrade}, header)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ColCourseCode)
	assert.Contains(t, err.Error(), ColGrade)
	assert.NotContains(t, err.Error(), "missing required columns [Register No")
	assert.Contains(t, err.Error(), "Random Column")
}

func TestValidateRequiredPassesWhenAllPresent(t *testing.T) {
	header := []string{"Register No", "Course Code", "Grade"}
	m := BuildColumnMap(header, ExpectedHeaders)

	assert.NoError(t, ValidateRequired(m, []string{ColRegisterNo, ColCourseCode, ColGrade}, header))
}
