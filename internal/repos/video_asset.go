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

type VideoAssetRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, asset *types.VideoAsset) error
	ListByVideo(ctx context.Context, tx *gorm.DB, videoID uuid.UUID) ([]types.VideoAsset, error)
	ListByVideos(ctx context.Context, tx *gorm.DB, videoIDs []uuid.UUID) ([]types.VideoAsset, error)
	GetByKindLabel(ctx context.Context, tx *gorm.DB, videoID uuid.UUID, kind, label string) (*types.VideoAsset, error)
	DeleteByVideo(ctx context.Context, tx *gorm.DB, videoID uuid.UUID) error
}

type videoAssetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoAssetRepo(db *gorm.DB, baseLog *logger.Logger) VideoAssetRepo {
	repoLog := baseLog.With("repo", "VideoAssetRepo")
	return &videoAssetRepo{db: db, log: repoLog}
}

// Upsert inserts or refreshes the single row per (video_id, kind, label).
// Re-running finalize after a retry overwrites the previous row in place.
func (ar *videoAssetRepo) Upsert(ctx context.Context, tx *gorm.DB, asset *types.VideoAsset) error {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	return transaction.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "video_id"}, {Name: "kind"}, {Name: "label"}},
		DoUpdates: clause.Assignments(map[string]any{
			"storage_key": asset.StorageKey,
			"ready":       asset.Ready,
			"meta":        asset.Meta,
			"updated_at":  time.Now().UTC(),
		}),
	}).Create(asset).Error
}

func (ar *videoAssetRepo) ListByVideo(ctx context.Context, tx *gorm.DB, videoID uuid.UUID) ([]types.VideoAsset, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var assets []types.VideoAsset
	if err := transaction.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("kind ASC, label ASC").
		Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

func (ar *videoAssetRepo) ListByVideos(ctx context.Context, tx *gorm.DB, videoIDs []uuid.UUID) ([]types.VideoAsset, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	if len(videoIDs) == 0 {
		return []types.VideoAsset{}, nil
	}
	var assets []types.VideoAsset
	if err := transaction.WithContext(ctx).
		Where("video_id IN ?", videoIDs).
		Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

func (ar *videoAssetRepo) GetByKindLabel(ctx context.Context, tx *gorm.DB, videoID uuid.UUID, kind, label string) (*types.VideoAsset, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var asset types.VideoAsset
	if err := transaction.WithContext(ctx).
		First(&asset, "video_id = ? AND kind = ? AND label = ?", videoID, kind, label).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

func (ar *videoAssetRepo) DeleteByVideo(ctx context.Context, tx *gorm.DB, videoID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	return transaction.WithContext(ctx).Delete(&types.VideoAsset{}, "video_id = ?", videoID).Error
}
