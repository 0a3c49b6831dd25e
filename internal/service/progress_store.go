package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/gradebook-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
)

// ProgressStore keeps per-upload progress snapshots in Redis so pollers
// can follow a run without touching the database.
type ProgressStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProgressStore constructs a ProgressStore.
func NewProgressStore(client *redis.Client, ttl time.Duration) *ProgressStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ProgressStore{client: client, ttl: ttl}
}

func progressKey(uploadID string) string {
	return fmt.Sprintf("gradebook:upload:%s:progress", uploadID)
}

// Set stores the latest snapshot for the upload.
func (s *ProgressStore) Set(ctx context.Context, uploadID string, progress models.Progress) error {
	progress.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if err := s.client.Set(ctx, progressKey(uploadID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store progress: %w", err)
	}
	return nil
}

// Get returns the latest snapshot, or ErrNotFound when the upload is
// unknown or its snapshot expired.
func (s *ProgressStore) Get(ctx context.Context, uploadID string) (*models.Progress, error) {
	payload, err := s.client.Get(ctx, progressKey(uploadID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "upload progress not found")
		}
		return nil, fmt.Errorf("load progress: %w", err)
	}
	var progress models.Progress
	if err := json.Unmarshal(payload, &progress); err != nil {
		return nil, fmt.Errorf("unmarshal progress: %w", err)
	}
	return &progress, nil
}
