package service

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-api/internal/gradescale"
	"github.com/noah-isme/gradebook-api/internal/models"
	"github.com/noah-isme/gradebook-api/internal/sheet"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
)

type courseStore interface {
	FetchByCodes(ctx context.Context, codes []string) ([]models.Course, error)
	InsertMissing(ctx context.Context, courses []models.Course) (int64, error)
	Backfill(ctx context.Context, courses []models.Course) error
}

type studentStore interface {
	BulkUpsert(ctx context.Context, students []models.Student) error
	FetchIDsByRegisterNos(ctx context.Context, registerNos []string) (map[string]string, error)
}

type gradeStore interface {
	BulkUpsert(ctx context.Context, grades []models.Grade) error
}

type uploadStore interface {
	UpdateStatus(ctx context.Context, id, status string) error
}

type progressSink interface {
	Set(ctx context.Context, uploadID string, progress models.Progress) error
}

type ingestObserver interface {
	ObserveIngestRows(processed, skipped int)
	ObserveUpload(status string)
}

// IngestOptions tunes the pipeline. Zero values fall back to the documented
// defaults.
type IngestOptions struct {
	HeaderScanRows  int
	HeaderThreshold int
	LookupChunkSize int
	GradeChunkSize  int
}

// RequiredHeaders are the canonical columns without which a file cannot be
// processed at all; the remaining expected columns degrade to empty values.
var RequiredHeaders = []string{
	sheet.ColRegisterNo, sheet.ColStudentName, sheet.ColCourseCode, sheet.ColGrade,
}

const (
	skipSampleCap       = 5
	unmatchedSampleCap  = 10
	defaultLookupChunk  = 100
	defaultGradeChunk   = 500
	terminalSuccessText = "Successfully processed %d students and %d grades"
)

// IngestJob is the queued payload for one ingestion run.
type IngestJob struct {
	UploadID string
	FileName string
	Data     []byte
}

// IngestService runs the spreadsheet ingestion pipeline: header detection,
// column mapping, course reconciliation, student upsert, id mapping, grade
// classification and chunked grade writes. One invocation owns all of its
// lookup tables; nothing is shared across runs except the store itself.
type IngestService struct {
	courses  courseStore
	students studentStore
	grades   gradeStore
	uploads  uploadStore
	progress progressSink
	metrics  ingestObserver
	logger   *zap.Logger
	opts     IngestOptions
}

// NewIngestService constructs an IngestService.
func NewIngestService(courses courseStore, students studentStore, grades gradeStore, uploads uploadStore, progress progressSink, metrics ingestObserver, logger *zap.Logger, opts IngestOptions) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.LookupChunkSize <= 0 {
		opts.LookupChunkSize = defaultLookupChunk
	}
	if opts.GradeChunkSize <= 0 {
		opts.GradeChunkSize = defaultGradeChunk
	}
	return &IngestService{
		courses:  courses,
		students: students,
		grades:   grades,
		uploads:  uploads,
		progress: progress,
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
	}
}

// NormalizeCourseCode upper-cases the raw code and strips every character
// outside [A-Z0-9]. Idempotent: normalizing a normalized code is a no-op.
func NormalizeCourseCode(raw string) string {
	upper := strings.ToUpper(raw)
	var b strings.Builder
	b.Grow(len(upper))
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Process is the queue handler entrypoint. It wraps Run with upload status
// bookkeeping and terminal progress messages; pipeline failures are
// reported through progress rather than bubbled up, so the queue never
// replays a failed run on its own.
func (s *IngestService) Process(ctx context.Context, job IngestJob) error {
	_ = s.uploads.UpdateStatus(ctx, job.UploadID, models.UploadStatusProcessing)

	report, err := s.Run(ctx, job.UploadID, job.FileName, job.Data)
	if err != nil {
		s.logger.Error("ingestion failed",
			zap.String("upload_id", job.UploadID),
			zap.String("file", job.FileName),
			zap.Error(err))
		_ = s.uploads.UpdateStatus(ctx, job.UploadID, models.UploadStatusFailed)
		s.publish(ctx, job.UploadID, 100, fmt.Sprintf("Error: %s", err.Error()), true, report)
		if s.metrics != nil {
			s.metrics.ObserveUpload(models.UploadStatusFailed)
		}
		return nil
	}

	_ = s.uploads.UpdateStatus(ctx, job.UploadID, models.UploadStatusCompleted)
	s.publish(ctx, job.UploadID, 100,
		fmt.Sprintf(terminalSuccessText, report.StudentsProcessed, report.GradesProcessed), true, report)
	if s.metrics != nil {
		s.metrics.ObserveUpload(models.UploadStatusCompleted)
	}
	s.logger.Info("ingestion completed",
		zap.String("upload_id", job.UploadID),
		zap.Int("students", report.StudentsProcessed),
		zap.Int("grades", report.GradesProcessed),
		zap.Any("skipped", report.Skipped))
	return nil
}

// Run executes the pipeline against the raw file bytes and returns the run
// report. The report is also returned alongside fatal errors so already
// committed work stays visible; committed chunks are never rolled back.
func (s *IngestService) Run(ctx context.Context, uploadID, fileName string, data []byte) (*models.IngestReport, error) {
	run := newIngestRun()

	s.publish(ctx, uploadID, 5, "Reading file", false, nil)
	grid, err := sheet.Read(fileName, bytes.NewReader(data))
	if err != nil {
		return run.report, appErrors.Wrap(err, appErrors.ErrUnsupportedFile.Code, appErrors.ErrUnsupportedFile.Status, "could not read spreadsheet")
	}
	if len(grid) < 2 {
		return run.report, appErrors.Clone(appErrors.ErrNoDataRows, "file contains no data rows")
	}

	headerIdx := sheet.DetectHeaderRow(grid, sheet.ExpectedHeaders, s.opts.HeaderScanRows, s.opts.HeaderThreshold)
	headerRow := grid[headerIdx]
	cols := sheet.BuildColumnMap(headerRow, sheet.ExpectedHeaders)
	if err := sheet.ValidateRequired(cols, RequiredHeaders, headerRow); err != nil {
		return run.report, appErrors.Wrap(err, appErrors.ErrMissingColumns.Code, appErrors.ErrMissingColumns.Status, err.Error())
	}

	dataRows := grid[headerIdx+1:]
	if len(dataRows) == 0 {
		return run.report, appErrors.Clone(appErrors.ErrNoDataRows, "file contains no data rows")
	}

	run.parse(dataRows, cols, headerIdx+1)

	s.publish(ctx, uploadID, 20, "Validating courses", false, nil)
	if err := s.reconcileCourses(ctx, run); err != nil {
		return run.report, err
	}

	s.publish(ctx, uploadID, 40, "Upserting students", false, nil)
	if err := s.students.BulkUpsert(ctx, run.studentList); err != nil {
		return run.report, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert students")
	}
	run.report.StudentsProcessed = len(run.studentList)

	s.publish(ctx, uploadID, 55, "Mapping student ids", false, nil)
	if err := s.mapStudentIDs(ctx, run); err != nil {
		return run.report, err
	}

	s.publish(ctx, uploadID, 70, "Processing grades", false, nil)
	grades := run.assembleGrades()

	s.publish(ctx, uploadID, 85, "Writing grades", false, nil)
	if err := s.writeGrades(ctx, uploadID, run, grades); err != nil {
		return run.report, err
	}

	if s.metrics != nil {
		s.metrics.ObserveIngestRows(run.report.GradesProcessed, totalSkipped(run.report))
	}
	return run.report, nil
}

func (s *IngestService) reconcileCourses(ctx context.Context, run *ingestRun) error {
	codes := run.courseCodes()
	if len(codes) == 0 {
		return nil
	}

	existing, err := s.courses.FetchByCodes(ctx, codes)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up courses")
	}
	known := make(map[string]struct{}, len(existing))
	for _, course := range existing {
		known[course.Code] = struct{}{}
	}

	var missing []models.Course
	for _, code := range codes {
		if _, ok := known[code]; !ok {
			missing = append(missing, run.observedCourse(code))
		}
	}
	created, err := s.courses.InsertMissing(ctx, missing)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create courses")
	}
	run.report.CoursesCreated = int(created)

	if err := s.courses.Backfill(ctx, run.observedCourses(existing)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to backfill courses")
	}

	fetched, err := s.courses.FetchByCodes(ctx, codes)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to re-fetch courses")
	}
	if len(fetched) == 0 {
		// Re-fetch raced the inserts; force inserts for every requested
		// code and query once more before giving up.
		forced := make([]models.Course, 0, len(codes))
		for _, code := range codes {
			forced = append(forced, run.observedCourse(code))
		}
		if _, err := s.courses.InsertMissing(ctx, forced); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to force course inserts")
		}
		fetched, err = s.courses.FetchByCodes(ctx, codes)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to re-fetch courses")
		}
	}
	for _, course := range fetched {
		run.courseIDs[course.Code] = course.ID
	}
	return nil
}

func (s *IngestService) mapStudentIDs(ctx context.Context, run *ingestRun) error {
	registerNos := make([]string, 0, len(run.studentList))
	for _, student := range run.studentList {
		registerNos = append(registerNos, student.RegisterNo)
	}
	for i, chunk := range chunkStrings(registerNos, s.opts.LookupChunkSize) {
		if err := ctx.Err(); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "ingestion cancelled")
		}
		ids, err := s.students.FetchIDsByRegisterNos(ctx, chunk)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status,
				fmt.Sprintf("failed to map student ids (chunk %d)", i+1))
		}
		for regNo, id := range ids {
			run.studentIDs[regNo] = id
		}
	}
	return nil
}

func (s *IngestService) writeGrades(ctx context.Context, uploadID string, run *ingestRun, grades []models.Grade) error {
	chunks := chunkGrades(grades, s.opts.GradeChunkSize)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			// Committed chunks stay; the report carries what was written.
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status,
				fmt.Sprintf("ingestion cancelled after %d of %d grade chunks", i, len(chunks)))
		}
		if err := s.grades.BulkUpsert(ctx, chunk); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status,
				fmt.Sprintf("failed to write grades (chunk %d of %d)", i+1, len(chunks)))
		}
		run.report.GradesProcessed += len(chunk)
		if len(chunks) > 1 {
			percent := 85 + (10*(i+1))/len(chunks)
			s.publish(ctx, uploadID, percent, fmt.Sprintf("Writing grades (%d/%d)", i+1, len(chunks)), false, nil)
		}
	}
	return nil
}

func (s *IngestService) publish(ctx context.Context, uploadID string, percent int, message string, done bool, report *models.IngestReport) {
	if s.progress == nil {
		return
	}
	progress := models.Progress{
		PercentComplete: percent,
		StatusMessage:   message,
		Done:            done,
		Report:          report,
	}
	if err := s.progress.Set(ctx, uploadID, progress); err != nil {
		s.logger.Warn("failed to publish progress", zap.String("upload_id", uploadID), zap.Error(err))
	}
}

// ingestRun owns all per-run state: parsed rows, dedup tables and the
// diagnostics report. A fresh run is created per upload invocation.
type ingestRun struct {
	report      *models.IngestReport
	rows        []parsedRow
	studentList []models.Student
	studentSeen map[string]struct{}
	courseInfo  map[string]courseObservation
	courseOrder []string
	courseIDs   map[string]string
	studentIDs  map[string]string
	unmatched   map[string]struct{}
}

type parsedRow struct {
	registerNo  string
	courseCode  string
	gradeToken  string
	attemptMode string
	line        int
}

type courseObservation struct {
	title   string
	credits *int
}

func newIngestRun() *ingestRun {
	return &ingestRun{
		report: &models.IngestReport{
			Skipped:        map[string]int{},
			SkippedSamples: map[string][]string{},
		},
		studentSeen: map[string]struct{}{},
		courseInfo:  map[string]courseObservation{},
		courseIDs:   map[string]string{},
		studentIDs:  map[string]string{},
		unmatched:   map[string]struct{}{},
	}
}

// parse walks the data rows once, building the deduplicated student list,
// the course observation table and the grade row list. Rows without a
// register number or name are counted and dropped here, exactly once.
func (r *ingestRun) parse(dataRows [][]string, cols sheet.ColumnMap, firstLine int) {
	for i, row := range dataRows {
		line := firstLine + i + 1

		registerNo, _ := cols.Resolve(row, sheet.ColRegisterNo)
		name, _ := cols.Resolve(row, sheet.ColStudentName)
		if registerNo == "" || name == "" {
			r.skip(models.SkipMissingIdentity, fmt.Sprintf("row %d", line))
			continue
		}

		rawCode, _ := cols.Resolve(row, sheet.ColCourseCode)
		code := NormalizeCourseCode(rawCode)
		if code != "" {
			r.observeCourse(code, row, cols)
		}

		if _, seen := r.studentSeen[registerNo]; !seen {
			r.studentSeen[registerNo] = struct{}{}
			r.studentList = append(r.studentList, r.studentFromRow(registerNo, name, row, cols))
		}

		gradeToken, _ := cols.Resolve(row, sheet.ColGrade)
		attemptMode, _ := cols.Resolve(row, sheet.ColAttemptMode)
		if attemptMode == "" {
			attemptMode = models.AttemptRegular
		}

		r.rows = append(r.rows, parsedRow{
			registerNo:  registerNo,
			courseCode:  code,
			gradeToken:  gradeToken,
			attemptMode: attemptMode,
			line:        line,
		})
	}
}

func (r *ingestRun) studentFromRow(registerNo, name string, row []string, cols sheet.ColumnMap) models.Student {
	semesterRaw, _ := cols.Resolve(row, sheet.ColSemester)
	semester, _ := strconv.Atoi(semesterRaw)
	batch, _ := cols.Resolve(row, sheet.ColBatch)
	degree, _ := cols.Resolve(row, sheet.ColDegree)
	office, _ := cols.Resolve(row, sheet.ColOfficeName)
	branch, _ := cols.Resolve(row, sheet.ColBranch)
	gradType, _ := cols.Resolve(row, sheet.ColGraduationType)
	return models.Student{
		RegisterNo:     registerNo,
		FullName:       name,
		Semester:       semester,
		Batch:          batch,
		Degree:         degree,
		OfficeName:     office,
		Branch:         branch,
		GraduationType: gradType,
	}
}

// observeCourse records the first non-empty title and credits seen for a
// code. First write wins; later rows never overwrite captured values.
func (r *ingestRun) observeCourse(code string, row []string, cols sheet.ColumnMap) {
	obs, seen := r.courseInfo[code]
	if !seen {
		r.courseOrder = append(r.courseOrder, code)
	}
	if obs.title == "" {
		if title, _ := cols.Resolve(row, sheet.ColCourseTitle); title != "" {
			obs.title = title
		}
	}
	if obs.credits == nil {
		if creditsRaw, _ := cols.Resolve(row, sheet.ColCredits); creditsRaw != "" {
			if credits, err := strconv.Atoi(creditsRaw); err == nil {
				obs.credits = &credits
			}
		}
	}
	r.courseInfo[code] = obs
}

func (r *ingestRun) courseCodes() []string {
	return r.courseOrder
}

func (r *ingestRun) observedCourse(code string) models.Course {
	obs := r.courseInfo[code]
	return models.Course{Code: code, Title: obs.title, Credits: obs.credits}
}

func (r *ingestRun) observedCourses(existing []models.Course) []models.Course {
	courses := make([]models.Course, 0, len(existing))
	for _, course := range existing {
		courses = append(courses, r.observedCourse(course.Code))
	}
	return courses
}

// assembleGrades resolves both foreign keys for every parsed row and
// classifies the grade token. Rows with an unresolved key or empty token
// are counted and dropped; a grade is never written with a dangling
// reference.
func (r *ingestRun) assembleGrades() []models.Grade {
	grades := make([]models.Grade, 0, len(r.rows))
	for _, row := range r.rows {
		if row.gradeToken == "" {
			r.skip(models.SkipEmptyGrade, fmt.Sprintf("%s / %s", row.registerNo, row.courseCode))
			continue
		}
		courseID, ok := r.courseIDs[row.courseCode]
		if !ok || row.courseCode == "" {
			r.skip(models.SkipUnresolvedCourse, row.courseCode)
			continue
		}
		studentID, ok := r.studentIDs[row.registerNo]
		if !ok {
			r.skip(models.SkipUnresolvedStudent, row.registerNo)
			continue
		}

		passed, heuristic := gradescale.Classify(row.gradeToken)
		if heuristic {
			r.noteUnmatched(row.gradeToken)
		}
		grades = append(grades, models.Grade{
			StudentID:   studentID,
			CourseID:    courseID,
			RawGrade:    row.gradeToken,
			Passed:      passed,
			AttemptMode: row.attemptMode,
		})
	}
	return grades
}

func (r *ingestRun) skip(reason, sample string) {
	r.report.Skipped[reason]++
	if len(r.report.SkippedSamples[reason]) < skipSampleCap && sample != "" {
		r.report.SkippedSamples[reason] = append(r.report.SkippedSamples[reason], sample)
	}
}

func (r *ingestRun) noteUnmatched(token string) {
	if _, ok := r.unmatched[token]; ok {
		return
	}
	if len(r.unmatched) >= unmatchedSampleCap {
		return
	}
	r.unmatched[token] = struct{}{}
	r.report.UnmatchedGrades = append(r.report.UnmatchedGrades, token)
}

func totalSkipped(report *models.IngestReport) int {
	total := 0
	for _, count := range report.Skipped {
		total += count
	}
	return total
}

func chunkStrings(items []string, size int) [][]string {
	if size <= 0 {
		size = defaultLookupChunk
	}
	var chunks [][]string
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

func chunkGrades(items []models.Grade, size int) [][]models.Grade {
	if size <= 0 {
		size = defaultGradeChunk
	}
	var chunks [][]models.Grade
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
