package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/types"
)

type VideoSummaryRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, summary *types.VideoSummary) error
	GetByVideo(ctx context.Context, tx *gorm.DB, videoID uuid.UUID) (*types.VideoSummary, error)
	ListByVideos(ctx context.Context, tx *gorm.DB, videoIDs []uuid.UUID) ([]types.VideoSummary, error)
}

type videoSummaryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoSummaryRepo(db *gorm.DB, baseLog *logger.Logger) VideoSummaryRepo {
	repoLog := baseLog.With("repo", "VideoSummaryRepo")
	return &videoSummaryRepo{db: db, log: repoLog}
}

func (sr *videoSummaryRepo) Upsert(ctx context.Context, tx *gorm.DB, summary *types.VideoSummary) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	return transaction.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "video_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"short_summary":   summary.ShortSummary,
			"embedding":       summary.Embedding,
			"embedding_model": summary.EmbeddingModel,
			"updated_at":      time.Now().UTC(),
		}),
	}).Create(summary).Error
}

func (sr *videoSummaryRepo) GetByVideo(ctx context.Context, tx *gorm.DB, videoID uuid.UUID) (*types.VideoSummary, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var summary types.VideoSummary
	if err := transaction.WithContext(ctx).
		First(&summary, "video_id = ?", videoID).Error; err != nil {
		return nil, err
	}
	return &summary, nil
}

func (sr *videoSummaryRepo) ListByVideos(ctx context.Context, tx *gorm.DB, videoIDs []uuid.UUID) ([]types.VideoSummary, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	if len(videoIDs) == 0 {
		return []types.VideoSummary{}, nil
	}
	var summaries []types.VideoSummary
	if err := transaction.WithContext(ctx).
		Where("video_id IN ?", videoIDs).
		Find(&summaries).Error; err != nil {
		return nil, err
	}
	return summaries, nil
}
