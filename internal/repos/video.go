package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/types"
)

type VideoRepo interface {
	Create(ctx context.Context, tx *gorm.DB, video *types.Video) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Video, error)
	GetByIDForUser(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) (*types.Video, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]types.Video, error)
	ListByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]types.Video, error)
	ListReadyExcludingUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]types.Video, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error
	MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, errMsg string) error
	UpdateProbe(ctx context.Context, tx *gorm.DB, id uuid.UUID, probe datatypes.JSON, durationSeconds *float64) error
	UpdateMetadata(ctx context.Context, tx *gorm.DB, id uuid.UUID, title, description string) error
	UpdateContentInfo(ctx context.Context, tx *gorm.DB, id uuid.UUID, contentType, language string) error
	ClaimNotification(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type videoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoRepo(db *gorm.DB, baseLog *logger.Logger) VideoRepo {
	repoLog := baseLog.With("repo", "VideoRepo")
	return &videoRepo{db: db, log: repoLog}
}

func (vr *videoRepo) Create(ctx context.Context, tx *gorm.DB, video *types.Video) error {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	return transaction.WithContext(ctx).Create(video).Error
}

func (vr *videoRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	var video types.Video
	if err := transaction.WithContext(ctx).First(&video, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &video, nil
}

func (vr *videoRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) (*types.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	var video types.Video
	if err := transaction.WithContext(ctx).First(&video, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, err
	}
	return &video, nil
}

func (vr *videoRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]types.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	var videos []types.Video
	q := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

func (vr *videoRepo) ListByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]types.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	if len(ids) == 0 {
		return []types.Video{}, nil
	}
	var videos []types.Video
	if err := transaction.WithContext(ctx).Where("id IN ?", ids).Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

// ListReadyExcludingUser is the fallback pool for cold-start feeds: the
// newest ready videos uploaded by other users.
func (vr *videoRepo) ListReadyExcludingUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]types.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	var videos []types.Video
	q := transaction.WithContext(ctx).
		Where("status = ? AND user_id <> ?", types.VideoStatusReady, userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

func (vr *videoRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	updates := map[string]any{"status": status, "updated_at": time.Now().UTC()}
	if status != types.VideoStatusFailed {
		updates["error"] = ""
	}
	return transaction.WithContext(ctx).
		Model(&types.Video{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (vr *videoRepo) MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, errMsg string) error {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Video{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     types.VideoStatusFailed,
			"error":      errMsg,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (vr *videoRepo) UpdateProbe(ctx context.Context, tx *gorm.DB, id uuid.UUID, probe datatypes.JSON, durationSeconds *float64) error {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	updates := map[string]any{"probe": probe, "updated_at": time.Now().UTC()}
	if durationSeconds != nil {
		updates["duration_seconds"] = *durationSeconds
	}
	return transaction.WithContext(ctx).
		Model(&types.Video{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (vr *videoRepo) UpdateMetadata(ctx context.Context, tx *gorm.DB, id uuid.UUID, title, description string) error {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Video{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"title":       title,
			"description": description,
			"updated_at":  time.Now().UTC(),
		}).Error
}

// UpdateContentInfo stores the LLM-detected content type and language.
// Empty values leave the existing columns alone.
func (vr *videoRepo) UpdateContentInfo(ctx context.Context, tx *gorm.DB, id uuid.UUID, contentType, language string) error {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if contentType != "" {
		updates["content_type"] = contentType
	}
	if language != "" {
		updates["language"] = language
	}
	if len(updates) == 1 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Video{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ClaimNotification flips notified_at from NULL exactly once. The boolean
// reports whether this caller won the claim; a false return means another
// worker already sent (or is sending) the email.
func (vr *videoRepo) ClaimNotification(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Video{}).
		Where("id = ? AND notified_at IS NULL", id).
		Update("notified_at", at.UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (vr *videoRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	return transaction.WithContext(ctx).Delete(&types.Video{}, "id = ?", id).Error
}
