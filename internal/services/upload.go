package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/streem-backend/internal/clients/redis"
	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/platform/envutil"
	"github.com/yungbote/streem-backend/internal/platform/gcp"
	"github.com/yungbote/streem-backend/internal/repos"
	"github.com/yungbote/streem-backend/internal/types"
)

type PresignRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type PresignResult struct {
	VideoID   uuid.UUID `json:"video_id"`
	UploadURL string    `json:"upload_url"`
	Key       string    `json:"key"`
	ExpiresIn int64     `json:"expires_in"`
}

type UploadService interface {
	Presign(ctx context.Context, userID uuid.UUID, req PresignRequest) (*PresignResult, error)
	Finalize(ctx context.Context, userID, videoID uuid.UUID) error
}

type uploadService struct {
	videoRepo repos.VideoRepo
	bucket    gcp.BucketService
	queue     *redis.Queue
	rateLimit *redis.RateLimit
	log       *logger.Logger
}

func NewUploadService(
	videoRepo repos.VideoRepo,
	bucket gcp.BucketService,
	queue *redis.Queue,
	rateLimit *redis.RateLimit,
	baseLog *logger.Logger,
) UploadService {
	return &uploadService{
		videoRepo: videoRepo,
		bucket:    bucket,
		queue:     queue,
		rateLimit: rateLimit,
		log:       baseLog.With("service", "UploadService"),
	}
}

func (us *uploadService) Presign(ctx context.Context, userID uuid.UUID, req PresignRequest) (*PresignResult, error) {
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		return nil, fmt.Errorf("%w: filename", ErrInvalidInput)
	}

	if us.rateLimit != nil {
		limit := envutil.Int("UPLOAD_RATE_LIMIT", 5)
		window := time.Duration(envutil.Int("UPLOAD_RATE_WINDOW_SECONDS", 60)) * time.Second
		allowed, err := us.rateLimit.Allow(ctx, "rl:upload:"+userID.String(), limit, window)
		if err != nil {
			// Redis being down should not block uploads.
			us.log.Warn("Upload rate limit check failed", "error", err.Error())
		} else if !allowed {
			return nil, ErrRateLimited
		}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSuffix(filename, path.Ext(filename))
	}
	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = gcp.ContentTypeForKey(filename)
	}

	videoID := uuid.New()
	key := gcp.RawKey(userID.String(), videoID.String(), path.Ext(filename))
	expires := time.Duration(envutil.Int("PRESIGN_EXPIRES_SECONDS", 900)) * time.Second

	uploadURL, err := us.bucket.PresignUpload(ctx, key, contentType, expires)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	video := &types.Video{
		ID:               videoID,
		UserID:           userID,
		Title:            title,
		Description:      strings.TrimSpace(req.Description),
		OriginalFilename: filename,
		RawKey:           key,
		Status:           types.VideoStatusUploaded,
	}
	if err := us.videoRepo.Create(ctx, nil, video); err != nil {
		return nil, fmt.Errorf("create video row: %w", err)
	}

	us.log.Info("Upload presigned", "video_id", videoID.String(), "user_id", userID.String())
	return &PresignResult{
		VideoID:   videoID,
		UploadURL: uploadURL,
		Key:       key,
		ExpiresIn: int64(expires.Seconds()),
	}, nil
}

// Finalize verifies the raw object landed and queues processing. Safe to
// call again for an already ready video: the worker's skip logic makes
// the rerun cheap and the notified_at gate stops duplicate email.
func (us *uploadService) Finalize(ctx context.Context, userID, videoID uuid.UUID) error {
	video, err := us.videoRepo.GetByIDForUser(ctx, nil, videoID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load video: %w", err)
	}

	attrs, err := us.bucket.StatObject(ctx, video.RawKey)
	if err != nil {
		return fmt.Errorf("stat raw object: %w", err)
	}
	if attrs == nil {
		return ErrRawObjectMissing
	}

	if err := us.queue.Enqueue(ctx, redis.VideoQueue, redis.JobEnvelope{VideoID: videoID.String(), Reason: "finalize"}); err != nil {
		return fmt.Errorf("enqueue video job: %w", err)
	}
	us.log.Info("Video queued for processing", "video_id", videoID.String())
	return nil
}
