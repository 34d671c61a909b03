package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/platform/gcp"
	"github.com/yungbote/streem-backend/internal/repos"
	"github.com/yungbote/streem-backend/internal/types"
)

// completion threshold as a fraction of duration
const completedFraction = 0.95

type HistoryEntry struct {
	Video           VideoCard `json:"video"`
	PositionSeconds float64   `json:"position_seconds"`
	WatchedSeconds  float64   `json:"watched_seconds"`
	Completed       bool      `json:"completed"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type HistoryService interface {
	Heartbeat(ctx context.Context, userID, videoID uuid.UUID, positionSeconds, deltaSeconds float64) error
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]HistoryEntry, error)
}

type historyService struct {
	historyRepo repos.WatchHistoryRepo
	videoRepo   repos.VideoRepo
	bucket      gcp.BucketService
	log         *logger.Logger
}

func NewHistoryService(
	historyRepo repos.WatchHistoryRepo,
	videoRepo repos.VideoRepo,
	bucket gcp.BucketService,
	baseLog *logger.Logger,
) HistoryService {
	return &historyService{
		historyRepo: historyRepo,
		videoRepo:   videoRepo,
		bucket:      bucket,
		log:         baseLog.With("service", "HistoryService"),
	}
}

func (hs *historyService) Heartbeat(ctx context.Context, userID, videoID uuid.UUID, positionSeconds, deltaSeconds float64) error {
	if positionSeconds < 0 || deltaSeconds < 0 {
		return fmt.Errorf("%w: negative position or delta", ErrInvalidInput)
	}
	video, err := hs.videoRepo.GetByID(ctx, nil, videoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load video: %w", err)
	}

	completed := false
	if video.DurationSeconds != nil && *video.DurationSeconds > 0 {
		completed = positionSeconds >= *video.DurationSeconds*completedFraction
	}
	if err := hs.historyRepo.UpsertProgress(ctx, nil, userID, videoID, deltaSeconds, positionSeconds, completed); err != nil {
		return fmt.Errorf("upsert watch progress: %w", err)
	}
	return nil
}

func (hs *historyService) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := hs.historyRepo.ListRecentByUser(ctx, nil, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	if len(rows) == 0 {
		return []HistoryEntry{}, nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.VideoID)
	}
	videos, err := hs.videoRepo.ListByIDs(ctx, nil, ids)
	if err != nil {
		return nil, fmt.Errorf("load history videos: %w", err)
	}
	byID := make(map[uuid.UUID]*types.Video, len(videos))
	for i := range videos {
		byID[videos[i].ID] = &videos[i]
	}

	entries := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		video, ok := byID[row.VideoID]
		if !ok {
			continue
		}
		card := VideoCard{
			ID:              video.ID,
			Title:           video.Title,
			Status:          video.Status,
			DurationSeconds: video.DurationSeconds,
			CreatedAt:       video.CreatedAt,
		}
		if video.Status == types.VideoStatusReady {
			card.PosterURL = hs.bucket.ObjectURL(gcp.PosterKey(video.ID.String()))
		}
		entries = append(entries, HistoryEntry{
			Video:           card,
			PositionSeconds: row.LastPositionSeconds,
			WatchedSeconds:  row.WatchedSeconds,
			Completed:       row.Completed,
			UpdatedAt:       row.UpdatedAt,
		})
	}
	return entries, nil
}
