package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook-api/internal/models"
	"github.com/noah-isme/gradebook-api/internal/repository"
	"github.com/noah-isme/gradebook-api/internal/service"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
	"github.com/noah-isme/gradebook-api/pkg/jobs"
	"github.com/noah-isme/gradebook-api/pkg/response"
)

var allowedUploadExtensions = map[string]struct{}{
	".xlsx": {},
	".xlsm": {},
	".csv":  {},
}

// UploadHandler accepts spreadsheet files and exposes run progress.
type UploadHandler struct {
	uploads  *repository.UploadRepository
	progress *service.ProgressStore
	queue    *jobs.Queue
	maxBytes int64
}

// NewUploadHandler constructs the handler. maxBytes caps the accepted file size.
func NewUploadHandler(uploads *repository.UploadRepository, progress *service.ProgressStore, queue *jobs.Queue, maxBytes int64) *UploadHandler {
	return &UploadHandler{uploads: uploads, progress: progress, queue: queue, maxBytes: maxBytes}
}

// Create godoc
// @Summary Upload a grade spreadsheet
// @Description Queues an ingestion run for the uploaded .xlsx/.xlsm/.csv file
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Spreadsheet file"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /uploads [post]
func (h *UploadHandler) Create(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file field is required"))
		return
	}

	if h.maxBytes > 0 && fileHeader.Size > h.maxBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrFileTooLarge,
			fmt.Sprintf("file exceeds the %d byte limit", h.maxBytes)))
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if _, ok := allowedUploadExtensions[ext]; !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnsupportedFile,
			fmt.Sprintf("unsupported file type %q; expected .xlsx, .xlsm or .csv", ext)))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open uploaded file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read uploaded file"))
		return
	}

	upload := &models.Upload{FileName: fileHeader.Filename}
	if claims := claimsFromContext(c); claims != nil {
		upload.UploadedBy = claims.UserID
	}
	if err := h.uploads.Create(c.Request.Context(), upload); err != nil {
		response.Error(c, err)
		return
	}

	_ = h.progress.Set(c.Request.Context(), upload.ID, models.Progress{
		PercentComplete: 0,
		StatusMessage:   "Queued",
	})

	err = h.queue.Enqueue(jobs.Job{
		ID:   upload.ID,
		Type: "ingest",
		Payload: service.IngestJob{
			UploadID: upload.ID,
			FileName: upload.FileName,
			Data:     data,
		},
	})
	if err != nil {
		_ = h.uploads.UpdateStatus(c.Request.Context(), upload.ID, models.UploadStatusFailed)
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "ingestion queue is full"))
		return
	}

	response.Accepted(c, upload)
}

// Get godoc
// @Summary Get upload progress
// @Description Returns the latest progress snapshot for an ingestion run
// @Tags Uploads
// @Produce json
// @Param id path string true "Upload id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /uploads/{id} [get]
func (h *UploadHandler) Get(c *gin.Context) {
	id := c.Param("id")

	progress, err := h.progress.Get(c.Request.Context(), id)
	if err == nil {
		response.JSON(c, http.StatusOK, gin.H{"id": id, "progress": progress}, nil)
		return
	}

	// Snapshot may have expired; fall back to the durable upload row.
	upload, err := h.uploads.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "upload not found"))
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"id": id, "upload": upload}, nil)
}
