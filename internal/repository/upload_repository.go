package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradebook-api/internal/models"
)

// UploadRepository tracks ingestion run bookkeeping rows.
type UploadRepository struct {
	db *sqlx.DB
}

// NewUploadRepository constructs an UploadRepository.
func NewUploadRepository(db *sqlx.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Create registers a new upload.
func (r *UploadRepository) Create(ctx context.Context, upload *models.Upload) error {
	if upload.ID == "" {
		upload.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	upload.CreatedAt = now
	upload.UpdatedAt = now
	if upload.Status == "" {
		upload.Status = models.UploadStatusQueued
	}
	const query = `INSERT INTO uploads (id, file_name, status, uploaded_by, created_at, updated_at)
        VALUES (:id, :file_name, :status, :uploaded_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, upload); err != nil {
		return fmt.Errorf("create upload: %w", err)
	}
	return nil
}

// UpdateStatus transitions an upload's lifecycle state.
func (r *UploadRepository) UpdateStatus(ctx context.Context, id, status string) error {
	const query = `UPDATE uploads SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update upload status: %w", err)
	}
	return nil
}

// FindByID fetches an upload row.
func (r *UploadRepository) FindByID(ctx context.Context, id string) (*models.Upload, error) {
	const query = `SELECT id, file_name, status, uploaded_by, created_at, updated_at FROM uploads WHERE id = $1`
	var upload models.Upload
	if err := r.db.GetContext(ctx, &upload, query, id); err != nil {
		return nil, err
	}
	return &upload, nil
}
