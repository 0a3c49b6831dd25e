package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook-api/internal/service"
	"github.com/noah-isme/gradebook-api/pkg/response"
)

// AnalyticsHandler exposes pass-rate and GPA aggregates.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Overview godoc
// @Summary Dashboard overview counters
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/overview [get]
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	overview, err := h.analytics.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// CoursePassRates godoc
// @Summary Per-course pass rates
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/courses [get]
func (h *AnalyticsHandler) CoursePassRates(c *gin.Context) {
	rates, err := h.analytics.CoursePassRates(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rates, nil)
}

// CohortPassRates godoc
// @Summary Pass rates grouped by batch and semester
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/cohorts [get]
func (h *AnalyticsHandler) CohortPassRates(c *gin.Context) {
	rates, err := h.analytics.CohortPassRates(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rates, nil)
}

// StudentGPAs godoc
// @Summary Credit-weighted GPA leaderboard
// @Tags Analytics
// @Produce json
// @Param limit query int false "Maximum rows"
// @Success 200 {object} response.Envelope
// @Router /analytics/gpa [get]
func (h *AnalyticsHandler) StudentGPAs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	gpas, err := h.analytics.StudentGPAs(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gpas, nil)
}

// Export godoc
// @Summary Export course pass rates
// @Description Streams the pass-rate table as CSV or PDF
// @Tags Analytics
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} byte
// @Router /analytics/export [get]
func (h *AnalyticsHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	payload, contentType, err := h.analytics.ExportCoursePassRates(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=course-pass-rates.%s", format))
	c.Data(http.StatusOK, contentType, payload)
}
