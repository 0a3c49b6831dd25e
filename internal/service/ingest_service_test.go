package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-api/internal/models"
)

type mockCourseStore struct {
	courses      map[string]models.Course
	fetchCalls   int
	emptyFetches int
}

func newMockCourseStore() *mockCourseStore {
	return &mockCourseStore{courses: map[string]models.Course{}}
}

func (m *mockCourseStore) FetchByCodes(ctx context.Context, codes []string) ([]models.Course, error) {
	m.fetchCalls++
	if m.emptyFetches > 0 {
		m.emptyFetches--
		return nil, nil
	}
	var result []models.Course
	for _, code := range codes {
		if course, ok := m.courses[code]; ok {
			result = append(result, course)
		}
	}
	return result, nil
}

func (m *mockCourseStore) InsertMissing(ctx context.Context, courses []models.Course) (int64, error) {
	var created int64
	for _, course := range courses {
		if _, ok := m.courses[course.Code]; ok {
			continue
		}
		if course.Title == "" {
			course.Title = course.Code
		}
		course.ID = "course-" + course.Code
		m.courses[course.Code] = course
		created++
	}
	return created, nil
}

func (m *mockCourseStore) Backfill(ctx context.Context, courses []models.Course) error {
	for _, observed := range courses {
		existing, ok := m.courses[observed.Code]
		if !ok {
			continue
		}
		if (existing.Title == "" || existing.Title == existing.Code) && observed.Title != "" {
			existing.Title = observed.Title
		}
		if existing.Credits == nil {
			existing.Credits = observed.Credits
		}
		m.courses[observed.Code] = existing
	}
	return nil
}

type mockStudentStore struct {
	students    map[string]models.Student
	upsertCalls int
	lookupSizes []int
}

func newMockStudentStore() *mockStudentStore {
	return &mockStudentStore{students: map[string]models.Student{}}
}

func (m *mockStudentStore) BulkUpsert(ctx context.Context, students []models.Student) error {
	m.upsertCalls++
	for _, student := range students {
		student.ID = "student-" + student.RegisterNo
		m.students[student.RegisterNo] = student
	}
	return nil
}

func (m *mockStudentStore) FetchIDsByRegisterNos(ctx context.Context, registerNos []string) (map[string]string, error) {
	m.lookupSizes = append(m.lookupSizes, len(registerNos))
	result := make(map[string]string, len(registerNos))
	for _, regNo := range registerNos {
		if student, ok := m.students[regNo]; ok {
			result[regNo] = student.ID
		}
	}
	return result, nil
}

type mockGradeStore struct {
	grades     map[string]models.Grade
	chunkSizes []int
	failChunk  int // 1-based; 0 disables
}

func newMockGradeStore() *mockGradeStore {
	return &mockGradeStore{grades: map[string]models.Grade{}}
}

func (m *mockGradeStore) BulkUpsert(ctx context.Context, grades []models.Grade) error {
	if m.failChunk > 0 && len(m.chunkSizes)+1 == m.failChunk {
		m.chunkSizes = append(m.chunkSizes, len(grades))
		return fmt.Errorf("constraint violation")
	}
	m.chunkSizes = append(m.chunkSizes, len(grades))
	for _, grade := range grades {
		m.grades[grade.StudentID+"/"+grade.CourseID] = grade
	}
	return nil
}

type mockUploadStore struct {
	statuses []string
}

func (m *mockUploadStore) UpdateStatus(ctx context.Context, id, status string) error {
	m.statuses = append(m.statuses, status)
	return nil
}

type mockProgressSink struct {
	messages []string
	percents []int
}

func (m *mockProgressSink) Set(ctx context.Context, uploadID string, progress models.Progress) error {
	m.messages = append(m.messages, progress.StatusMessage)
	m.percents = append(m.percents, progress.PercentComplete)
	return nil
}

func newTestIngestService(courses *mockCourseStore, students *mockStudentStore, grades *mockGradeStore) (*IngestService, *mockProgressSink) {
	progress := &mockProgressSink{}
	svc := NewIngestService(courses, students, grades, &mockUploadStore{}, progress, nil, nil, IngestOptions{})
	return svc, progress
}

const csvHeader = "S.No,Office Name,Register No,Student Name,Semester,Batch,Degree,Branch of Study,Graduation Type,Course Code,Course Title,Credits,Grade,Mode Of Attempt\n"

func TestNormalizeCourseCode(t *testing.T) {
	assert.Equal(t, "21CSC204J", NormalizeCourseCode(" 21csc204j "))
	assert.Equal(t, "21CSC204J", NormalizeCourseCode("21-CSC 204J"))
	assert.Equal(t, "", NormalizeCourseCode("  "))
}

func TestNormalizeCourseCodeIsIdempotent(t *testing.T) {
	for _, raw := range []string{"21csc204j", " 21-CSC/204J ", "abc 123", "", "##"} {
		once := NormalizeCourseCode(raw)
		assert.Equal(t, once, NormalizeCourseCode(once), "input %q", raw)
	}
}

func TestRunEndToEndScenario(t *testing.T) {
	courses := newMockCourseStore()
	students := newMockStudentStore()
	grades := newMockGradeStore()
	svc, progress := newTestIngestService(courses, students, grades)

	data := csvHeader +
		"1,Office,R1,Alice,4,2022,B.Tech,CSE,Regular,21CSC204J,Algorithms,4,A+,Regular\n" +
		"2,Office,R1,Alice,4,2022,B.Tech,CSE,Regular,21CSC205P,Databases,3,F,Regular\n" +
		"3,Office,,,4,2022,B.Tech,CSE,Regular,21CSC206T,Networks,3,O,Regular\n"

	report, err := svc.Run(context.Background(), "u1", "grades.csv", []byte(data))
	require.NoError(t, err)

	assert.Equal(t, 1, report.StudentsProcessed)
	assert.Equal(t, 2, report.GradesProcessed)
	assert.Equal(t, 2, report.CoursesCreated)
	assert.Equal(t, 1, report.Skipped[models.SkipMissingIdentity])
	assert.Len(t, students.students, 1)
	assert.Len(t, courses.courses, 2)
	require.Len(t, grades.grades, 2)

	passed := grades.grades["student-R1/course-21CSC204J"]
	failed := grades.grades["student-R1/course-21CSC205P"]
	assert.True(t, passed.Passed)
	assert.Equal(t, "A+", passed.RawGrade)
	assert.False(t, failed.Passed)
	assert.Equal(t, "F", failed.RawGrade)

	assert.Contains(t, progress.messages, "Reading file")
	assert.Contains(t, progress.messages, "Writing grades")
}

func TestRunIsIdempotentAcrossReingestion(t *testing.T) {
	courses := newMockCourseStore()
	students := newMockStudentStore()
	grades := newMockGradeStore()
	svc, _ := newTestIngestService(courses, students, grades)

	data := csvHeader +
		"1,Office,R1,Alice,4,2022,B.Tech,CSE,Regular,21CSC204J,Algorithms,4,A+,Regular\n" +
		"2,Office,R2,Bob,4,2022,B.Tech,CSE,Regular,21CSC204J,,,B,Regular\n"

	first, err := svc.Run(context.Background(), "u1", "grades.csv", []byte(data))
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), "u2", "grades.csv", []byte(data))
	require.NoError(t, err)

	assert.Equal(t, first.StudentsProcessed, second.StudentsProcessed)
	assert.Equal(t, first.GradesProcessed, second.GradesProcessed)
	assert.Equal(t, 0, second.CoursesCreated)
	assert.Len(t, students.students, 2)
	assert.Len(t, courses.courses, 1)
	assert.Len(t, grades.grades, 2)
}

func TestRunBackfillsCourseTitleFromLaterRow(t *testing.T) {
	courses := newMockCourseStore()
	students := newMockStudentStore()
	grades := newMockGradeStore()
	svc, _ := newTestIngestService(courses, students, grades)

	data := csvHeader +
		"1,Office,R1,Alice,4,2022,B.Tech,CSE,Regular,21CSC204J,,,A,Regular\n" +
		"2,Office,R2,Bob,4,2022,B.Tech,CSE,Regular,21CSC204J,Design and Analysis of Algorithms,4,B,Regular\n"

	_, err := svc.Run(context.Background(), "u1", "grades.csv", []byte(data))
	require.NoError(t, err)

	course := courses.courses["21CSC204J"]
	assert.Equal(t, "Design and Analysis of Algorithms", course.Title)
	require.NotNil(t, course.Credits)
	assert.Equal(t, 4, *course.Credits)
}

func TestRunChunksGradeWritesInOrder(t *testing.T) {
	courses := newMockCourseStore()
	students := newMockStudentStore()
	grades := newMockGradeStore()
	svc, _ := newTestIngestService(courses, students, grades)

	var b strings.Builder
	b.WriteString(csvHeader)
	for i := 0; i < 1203; i++ {
		fmt.Fprintf(&b, "%d,Office,R%04d,Student %d,4,2022,B.Tech,CSE,Regular,21CSC204J,Algorithms,4,A,Regular\n", i+1, i, i)
	}

	report, err := svc.Run(context.Background(), "u1", "grades.csv", []byte(b.String()))
	require.NoError(t, err)

	assert.Equal(t, []int{500, 500, 203}, grades.chunkSizes)
	assert.Equal(t, 1203, report.GradesProcessed)
	// Register-number lookups chunk at 100 keys per request.
	for _, size := range students.lookupSizes {
		assert.LessOrEqual(t, size, 100)
	}
	assert.Len(t, students.lookupSizes, 13)
}

func TestRunSurfacesFailedChunkIndexAndKeepsCommittedChunks(t *testing.T) {
	courses := newMockCourseStore()
	students := newMockStudentStore()
	grades := newMockGradeStore()
	grades.failChunk = 2
	svc, _ := newTestIngestService(courses, students, grades)

	var b strings.Builder
	b.WriteString(csvHeader)
	for i := 0; i < 1203; i++ {
		fmt.Fprintf(&b, "%d,Office,R%04d,Student %d,4,2022,B.Tech,CSE,Regular,21CSC204J,Algorithms,4,A,Regular\n", i+1, i, i)
	}

	report, err := svc.Run(context.Background(), "u1", "grades.csv", []byte(b.String()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk 2 of 3")

	// Chunk 1 stays committed; processing stopped at chunk 2.
	assert.Equal(t, []int{500, 500}, grades.chunkSizes)
	assert.Equal(t, 500, report.GradesProcessed)
	assert.Len(t, grades.grades, 500)
}

func TestRunCountsRowLevelSkips(t *testing.T) {
	courses := newMockCourseStore()
	students := newMockStudentStore()
	grades := newMockGradeStore()
	svc, _ := newTestIngestService(courses, students, grades)

	data := csvHeader +
		"1,Office,R1,Alice,4,2022,B.Tech,CSE,Regular,21CSC204J,Algorithms,4,A+,Regular\n" +
		"2,Office,R1,Alice,4,2022,B.Tech,CSE,Regular,,,,B,Regular\n" + // no course code
		"3,Office,R1,Alice,4,2022,B.Tech,CSE,Regular,21CSC205P,Databases,3,,Regular\n" // no grade

	report, err := svc.Run(context.Background(), "u1", "grades.csv", []byte(data))
	require.NoError(t, err)

	assert.Equal(t, 1, report.GradesProcessed)
	assert.Equal(t, 1, report.Skipped[models.SkipUnresolvedCourse])
	assert.Equal(t, 1, report.Skipped[models.SkipEmptyGrade])
	assert.NotEmpty(t, report.SkippedSamples[models.SkipEmptyGrade])
}

func TestRunRecordsHeuristicGradeTokens(t *testing.T) {
	courses := newMockCourseStore()
	students := newMockStudentStore()
	grades := newMockGradeStore()
	svc, _ := newTestIngestService(courses, students, grades)

	data := csvHeader +
		"1,Office,R1,Alice,4,2022,B.Tech,CSE,Regular,21CSC204J,Algorithms,4,absent (medical),Regular\n"

	report, err := svc.Run(context.Background(), "u1", "grades.csv", []byte(data))
	require.NoError(t, err)

	assert.Contains(t, report.UnmatchedGrades, "absent (medical)")
	grade := grades.grades["student-R1/course-21CSC204J"]
	assert.False(t, grade.Passed)
}

func TestRunFailsOnEmptyFile(t *testing.T) {
	svc, _ := newTestIngestService(newMockCourseStore(), newMockStudentStore(), newMockGradeStore())

	_, err := svc.Run(context.Background(), "u1", "grades.csv", []byte(csvHeader))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data rows")
}

func TestRunFailsOnMissingRequiredColumns(t *testing.T) {
	svc, _ := newTestIngestService(newMockCourseStore(), newMockStudentStore(), newMockGradeStore())

	data := "S.No,Office Name,Semester,Batch\n1,Office,4,2022\n"
	_, err := svc.Run(context.Background(), "u1", "grades.csv", []byte(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Register No")
	assert.Contains(t, err.Error(), "Course Code")
}

func TestRunRetriesCourseRefetchOnce(t *testing.T) {
	courses := newMockCourseStore()
	// First fetch (existence check) and second fetch (id mapping) return
	// nothing, simulating a read racing the inserts.
	courses.emptyFetches = 2
	students := newMockStudentStore()
	grades := newMockGradeStore()
	svc, _ := newTestIngestService(courses, students, grades)

	data := csvHeader +
		"1,Office,R1,Alice,4,2022,B.Tech,CSE,Regular,21CSC204J,Algorithms,4,A+,Regular\n"

	report, err := svc.Run(context.Background(), "u1", "grades.csv", []byte(data))
	require.NoError(t, err)
	assert.Equal(t, 1, report.GradesProcessed)
	assert.GreaterOrEqual(t, courses.fetchCalls, 3)
}

func TestRunStopsBetweenChunksOnCancellation(t *testing.T) {
	courses := newMockCourseStore()
	students := newMockStudentStore()
	grades := newMockGradeStore()
	svc, _ := newTestIngestService(courses, students, grades)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data := csvHeader +
		"1,Office,R1,Alice,4,2022,B.Tech,CSE,Regular,21CSC204J,Algorithms,4,A+,Regular\n"

	_, err := svc.Run(ctx, "u1", "grades.csv", []byte(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
}

func TestProcessPublishesTerminalMessages(t *testing.T) {
	courses := newMockCourseStore()
	students := newMockStudentStore()
	grades := newMockGradeStore()
	uploads := &mockUploadStore{}
	progress := &mockProgressSink{}
	svc := NewIngestService(courses, students, grades, uploads, progress, nil, nil, IngestOptions{})

	data := csvHeader +
		"1,Office,R1,Alice,4,2022,B.Tech,CSE,Regular,21CSC204J,Algorithms,4,A+,Regular\n"

	err := svc.Process(context.Background(), IngestJob{UploadID: "u1", FileName: "grades.csv", Data: []byte(data)})
	require.NoError(t, err)

	require.NotEmpty(t, progress.messages)
	assert.Equal(t, "Successfully processed 1 students and 1 grades", progress.messages[len(progress.messages)-1])
	assert.Equal(t, []string{models.UploadStatusProcessing, models.UploadStatusCompleted}, uploads.statuses)
}

func TestProcessReportsErrorMessage(t *testing.T) {
	uploads := &mockUploadStore{}
	progress := &mockProgressSink{}
	svc := NewIngestService(newMockCourseStore(), newMockStudentStore(), newMockGradeStore(), uploads, progress, nil, nil, IngestOptions{})

	err := svc.Process(context.Background(), IngestJob{UploadID: "u1", FileName: "grades.csv", Data: []byte(csvHeader)})
	require.NoError(t, err)

	require.NotEmpty(t, progress.messages)
	assert.True(t, strings.HasPrefix(progress.messages[len(progress.messages)-1], "Error: "))
	assert.Equal(t, []string{models.UploadStatusProcessing, models.UploadStatusFailed}, uploads.statuses)
}
