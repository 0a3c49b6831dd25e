package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook-api/internal/repository"
	"github.com/noah-isme/gradebook-api/pkg/response"
)

// GradeHandler exposes grade endpoints.
type GradeHandler struct {
	grades *repository.GradeRepository
}

// NewGradeHandler constructs handler.
func NewGradeHandler(grades *repository.GradeRepository) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// ListByStudent godoc
// @Summary List grades for a student
// @Tags Grades
// @Produce json
// @Param id path string true "Student id"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/grades [get]
func (h *GradeHandler) ListByStudent(c *gin.Context) {
	grades, err := h.grades.ListByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}
