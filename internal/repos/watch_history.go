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

type WatchHistoryRepo interface {
	UpsertProgress(ctx context.Context, tx *gorm.DB, userID, videoID uuid.UUID, watchedDelta, positionSeconds float64, completed bool) error
	GetByUserVideo(ctx context.Context, tx *gorm.DB, userID, videoID uuid.UUID) (*types.WatchHistory, error)
	ListRecentByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]types.WatchHistory, error)
	ListRecentReadyByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]types.WatchHistory, error)
	ListVideoIDsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error)
}

type watchHistoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWatchHistoryRepo(db *gorm.DB, baseLog *logger.Logger) WatchHistoryRepo {
	repoLog := baseLog.With("repo", "WatchHistoryRepo")
	return &watchHistoryRepo{db: db, log: repoLog}
}

// UpsertProgress accumulates watch time into the single row per
// (user_id, video_id). watchedDelta adds to the running total,
// positionSeconds replaces the resume point, and completed is sticky:
// once a row is marked completed it never reverts.
func (wr *watchHistoryRepo) UpsertProgress(ctx context.Context, tx *gorm.DB, userID, videoID uuid.UUID, watchedDelta, positionSeconds float64, completed bool) error {
	transaction := tx
	if transaction == nil {
		transaction = wr.db
	}
	if watchedDelta < 0 {
		watchedDelta = 0
	}
	if positionSeconds < 0 {
		positionSeconds = 0
	}

	row := types.WatchHistory{
		ID:                  uuid.New(),
		UserID:              userID,
		VideoID:             videoID,
		WatchedSeconds:      watchedDelta,
		LastPositionSeconds: positionSeconds,
		Completed:           completed,
	}
	return transaction.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "video_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"watched_seconds":       gorm.Expr("watch_history.watched_seconds + ?", watchedDelta),
			"last_position_seconds": positionSeconds,
			"completed":             gorm.Expr("watch_history.completed OR ?", completed),
			"updated_at":            time.Now().UTC(),
		}),
	}).Create(&row).Error
}

func (wr *watchHistoryRepo) GetByUserVideo(ctx context.Context, tx *gorm.DB, userID, videoID uuid.UUID) (*types.WatchHistory, error) {
	transaction := tx
	if transaction == nil {
		transaction = wr.db
	}
	var row types.WatchHistory
	if err := transaction.WithContext(ctx).
		First(&row, "user_id = ? AND video_id = ?", userID, videoID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (wr *watchHistoryRepo) ListRecentByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]types.WatchHistory, error) {
	transaction := tx
	if transaction == nil {
		transaction = wr.db
	}
	var rows []types.WatchHistory
	q := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListRecentReadyByUser is ListRecentByUser restricted to videos whose
// processing finished; recommendation seeds only come from these rows.
func (wr *watchHistoryRepo) ListRecentReadyByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]types.WatchHistory, error) {
	transaction := tx
	if transaction == nil {
		transaction = wr.db
	}
	var rows []types.WatchHistory
	q := transaction.WithContext(ctx).
		Select("watch_history.*").
		Joins("JOIN videos ON videos.id = watch_history.video_id").
		Where("watch_history.user_id = ? AND videos.status = ?", userID, types.VideoStatusReady).
		Order("watch_history.updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListVideoIDsByUser returns every video the user has touched, used to
// exclude already-watched videos from recommendations.
func (wr *watchHistoryRepo) ListVideoIDsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = wr.db
	}
	var ids []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.WatchHistory{}).
		Where("user_id = ?", userID).
		Pluck("video_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
