package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
	"github.com/noah-isme/gradebook-api/pkg/export"
)

type analyticsRepo interface {
	Overview(ctx context.Context) (*models.AnalyticsOverview, error)
	CoursePassRates(ctx context.Context) ([]models.CoursePassRate, error)
	CohortPassRates(ctx context.Context) ([]models.CohortPassRate, error)
	StudentGPAs(ctx context.Context, limit int) ([]models.StudentGPA, error)
}

// AnalyticsService serves pass/fail aggregates with a Redis read-through
// cache. Ingestion invalidates nothing explicitly; entries simply expire.
type AnalyticsService struct {
	repo   analyticsRepo
	cache  *redis.Client
	ttl    time.Duration
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewAnalyticsService constructs an AnalyticsService.
func NewAnalyticsService(repo analyticsRepo, cache *redis.Client, ttl time.Duration, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &AnalyticsService{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// Overview returns the dashboard headline summary.
func (s *AnalyticsService) Overview(ctx context.Context) (*models.AnalyticsOverview, error) {
	var overview models.AnalyticsOverview
	if s.cachedGet(ctx, "overview", &overview) {
		return &overview, nil
	}
	result, err := s.repo.Overview(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load overview")
	}
	s.cachedSet(ctx, "overview", result)
	return result, nil
}

// CoursePassRates returns per-course pass/fail aggregates.
func (s *AnalyticsService) CoursePassRates(ctx context.Context) ([]models.CoursePassRate, error) {
	var rates []models.CoursePassRate
	if s.cachedGet(ctx, "course_pass_rates", &rates) {
		return rates, nil
	}
	rates, err := s.repo.CoursePassRates(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course pass rates")
	}
	s.cachedSet(ctx, "course_pass_rates", rates)
	return rates, nil
}

// CohortPassRates returns per-semester/batch pass aggregates.
func (s *AnalyticsService) CohortPassRates(ctx context.Context) ([]models.CohortPassRate, error) {
	var rates []models.CohortPassRate
	if s.cachedGet(ctx, "cohort_pass_rates", &rates) {
		return rates, nil
	}
	rates, err := s.repo.CohortPassRates(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort pass rates")
	}
	s.cachedSet(ctx, "cohort_pass_rates", rates)
	return rates, nil
}

// StudentGPAs returns the GPA leaderboard.
func (s *AnalyticsService) StudentGPAs(ctx context.Context, limit int) ([]models.StudentGPA, error) {
	gpas, err := s.repo.StudentGPAs(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student GPAs")
	}
	return gpas, nil
}

// ExportCoursePassRates renders the per-course summary as CSV or PDF.
func (s *AnalyticsService) ExportCoursePassRates(ctx context.Context, format string) ([]byte, string, error) {
	rates, err := s.CoursePassRates(ctx)
	if err != nil {
		return nil, "", err
	}
	dataset := export.Dataset{
		Headers: []string{"Course Code", "Course Title", "Total", "Passed", "Failed", "Pass Rate (%)"},
	}
	for _, rate := range rates {
		dataset.Rows = append(dataset.Rows, []string{
			rate.CourseCode,
			rate.CourseTitle,
			strconv.Itoa(rate.Total),
			strconv.Itoa(rate.Passed),
			strconv.Itoa(rate.Failed),
			fmt.Sprintf("%.2f", rate.PassRate),
		})
	}

	switch format {
	case "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, "Course Pass Rates")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func (s *AnalyticsService) cacheKey(name string) string {
	return "gradebook:analytics:" + name
}

func (s *AnalyticsService) cachedGet(ctx context.Context, name string, target interface{}) bool {
	if s.cache == nil {
		return false
	}
	payload, err := s.cache.Get(ctx, s.cacheKey(name)).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(payload, target); err != nil {
		s.logger.Warn("corrupt analytics cache entry", zap.String("key", name), zap.Error(err))
		return false
	}
	return true
}

func (s *AnalyticsService) cachedSet(ctx context.Context, name string, value interface{}) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(name), payload, s.ttl).Err(); err != nil {
		s.logger.Warn("failed to cache analytics", zap.String("key", name), zap.Error(err))
	}
}
