package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"oddlynews/internal/models"
	"oddlynews/internal/repository"
)

const audioContentType = "audio/mpeg"

type Uploader interface {
	Upload(ctx context.Context, bucket, object, contentType string, body []byte) (string, error)
}

// BriefingStore persists audio to object storage and briefing rows to the
// database. Inserts go through the repository's admin handle.
type BriefingStore struct {
	Repo    repository.BriefingRepository
	Storage Uploader
	Bucket  string
	Logger  *zap.Logger
}

func (s *BriefingStore) UploadAudio(ctx context.Context, audio []byte, filename string) (string, error) {
	if s == nil || s.Storage == nil {
		return "", fmt.Errorf("object storage not configured")
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "", fmt.Errorf("filename is required")
	}
	bucket := s.Bucket
	if bucket == "" {
		bucket = "briefing-audio"
	}
	publicURL, err := s.Storage.Upload(ctx, bucket, filename, audioContentType, audio)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}
	return publicURL, nil
}

// SaveBriefing inserts item and returns it with its generated id and timestamp.
func (s *BriefingStore) SaveBriefing(ctx context.Context, item *models.Briefing) (*models.Briefing, error) {
	if s == nil || s.Repo == nil {
		return nil, fmt.Errorf("briefing repository not configured")
	}
	if item == nil || strings.TrimSpace(item.AgentID) == "" {
		return nil, fmt.Errorf("briefing agent_id is required")
	}
	if err := s.Repo.InsertBriefing(ctx, item); err != nil {
		return nil, fmt.Errorf("insert briefing: %w", err)
	}
	if s.Logger != nil {
		s.Logger.Info("briefing saved",
			zap.String("briefing_id", item.ID),
			zap.String("agent_id", item.AgentID),
			zap.Int("market_count", item.MarketCount),
		)
	}
	return item, nil
}

func (s *BriefingStore) LatestBriefing(ctx context.Context, agentID string) (*models.Briefing, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	return s.Repo.LatestBriefing(ctx, agentID)
}

func (s *BriefingStore) History(ctx context.Context, agentID string, limit int) ([]models.Briefing, error) {
	if s == nil || s.Repo == nil {
		return nil, fmt.Errorf("briefing repository not configured")
	}
	items, err := s.Repo.ListBriefings(ctx, repository.ListBriefingsParams{AgentID: agentID, Limit: limit})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Briefing{}
	}
	return items, nil
}
