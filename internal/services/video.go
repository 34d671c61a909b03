package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/streem-backend/internal/data/graph"
	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/platform/envutil"
	"github.com/yungbote/streem-backend/internal/platform/gcp"
	"github.com/yungbote/streem-backend/internal/repos"
	"github.com/yungbote/streem-backend/internal/search"
	"github.com/yungbote/streem-backend/internal/platform/neo4jdb"
	"github.com/yungbote/streem-backend/internal/types"
)

// VideoCard is the list-view shape: enough to render a tile.
type VideoCard struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Status          string    `json:"status"`
	PosterURL       string    `json:"poster_url,omitempty"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type PlaybackAsset struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`
	URL   string `json:"url"`
	Ready bool   `json:"ready"`
}

type VideoDetail struct {
	Video   *types.Video        `json:"video"`
	Assets  []PlaybackAsset     `json:"assets"`
	Summary *types.VideoSummary `json:"summary,omitempty"`
	Catalog *repos.VideoCatalog `json:"catalog,omitempty"`
}

type VideoService interface {
	ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]VideoCard, error)
	Detail(ctx context.Context, userID, videoID uuid.UUID) (*VideoDetail, error)
	Delete(ctx context.Context, userID, videoID uuid.UUID) error
}

type videoService struct {
	db          *gorm.DB
	videoRepo   repos.VideoRepo
	assetRepo   repos.VideoAssetRepo
	summaryRepo repos.VideoSummaryRepo
	catalogRepo repos.CatalogRepo
	bucket      gcp.BucketService
	searchSvc   search.Service
	graphClient *neo4jdb.Client
	log         *logger.Logger
}

func NewVideoService(
	db *gorm.DB,
	videoRepo repos.VideoRepo,
	assetRepo repos.VideoAssetRepo,
	summaryRepo repos.VideoSummaryRepo,
	catalogRepo repos.CatalogRepo,
	bucket gcp.BucketService,
	searchSvc search.Service,
	graphClient *neo4jdb.Client,
	baseLog *logger.Logger,
) VideoService {
	return &videoService{
		db:          db,
		videoRepo:   videoRepo,
		assetRepo:   assetRepo,
		summaryRepo: summaryRepo,
		catalogRepo: catalogRepo,
		bucket:      bucket,
		searchSvc:   searchSvc,
		graphClient: graphClient,
		log:         baseLog.With("service", "VideoService"),
	}
}

func (vs *videoService) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]VideoCard, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	videos, err := vs.videoRepo.ListByUser(ctx, nil, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	cards := make([]VideoCard, 0, len(videos))
	for i := range videos {
		cards = append(cards, vs.toCard(&videos[i]))
	}
	return cards, nil
}

func (vs *videoService) toCard(video *types.Video) VideoCard {
	card := VideoCard{
		ID:              video.ID,
		Title:           video.Title,
		Status:          video.Status,
		DurationSeconds: video.DurationSeconds,
		CreatedAt:       video.CreatedAt,
	}
	if video.Status == types.VideoStatusReady {
		card.PosterURL = vs.bucket.ObjectURL(gcp.PosterKey(video.ID.String()))
	}
	return card
}

func (vs *videoService) Detail(ctx context.Context, userID, videoID uuid.UUID) (*VideoDetail, error) {
	video, err := vs.videoRepo.GetByID(ctx, nil, videoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load video: %w", err)
	}
	// Non-owners only see finished videos.
	if video.UserID != userID && video.Status != types.VideoStatusReady {
		return nil, ErrNotFound
	}

	assets, err := vs.assetRepo.ListByVideo(ctx, nil, videoID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	playback := make([]PlaybackAsset, 0, len(assets))
	for _, asset := range assets {
		playback = append(playback, PlaybackAsset{
			Kind:  asset.Kind,
			Label: asset.Label,
			URL:   vs.playbackURL(ctx, asset.StorageKey),
			Ready: asset.Ready,
		})
	}

	detail := &VideoDetail{Video: video, Assets: playback}
	if summary, err := vs.summaryRepo.GetByVideo(ctx, nil, videoID); err == nil {
		detail.Summary = summary
	}
	if catalog, err := vs.catalogRepo.ListForVideo(ctx, nil, videoID); err == nil {
		detail.Catalog = catalog
	}
	return detail, nil
}

// playbackURL presigns when the bucket requires it and falls back to the
// public object URL otherwise.
func (vs *videoService) playbackURL(ctx context.Context, key string) string {
	expires := time.Duration(envutil.Int("PRESIGN_EXPIRES_SECONDS", 900)) * time.Second
	if url, err := vs.bucket.PresignDownload(ctx, key, expires); err == nil && url != "" {
		return url
	}
	return vs.bucket.ObjectURL(key)
}

// Delete removes the video everywhere. Externals (storage, search, graph)
// are best-effort in parallel; the DB rows are authoritative and their
// removal decides the call's result.
func (vs *videoService) Delete(ctx context.Context, userID, videoID uuid.UUID) error {
	video, err := vs.videoRepo.GetByIDForUser(ctx, nil, videoID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load video: %w", err)
	}

	id := videoID.String()
	g, gctx := errgroup.WithContext(ctx)
	for _, prefix := range gcp.VideoPrefixes(video.UserID.String(), id) {
		prefix := prefix
		g.Go(func() error {
			if err := vs.bucket.DeleteByPrefix(gctx, prefix); err != nil {
				vs.log.Warn("Storage prefix delete failed", "prefix", prefix, "error", err.Error())
			}
			return nil
		})
	}
	g.Go(func() error {
		if vs.searchSvc == nil {
			return nil
		}
		if err := vs.searchSvc.DeleteVideo(gctx, id); err != nil {
			vs.log.Warn("Search delete failed", "video_id", id, "error", err.Error())
		}
		return nil
	})
	g.Go(func() error {
		if vs.graphClient == nil {
			return nil
		}
		if err := graph.DeleteVideo(gctx, vs.graphClient, vs.log, id); err != nil {
			vs.log.Warn("Graph delete failed", "video_id", id, "error", err.Error())
		}
		return nil
	})
	_ = g.Wait()

	err = vs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := vs.assetRepo.DeleteByVideo(ctx, tx, videoID); err != nil {
			return err
		}
		return vs.videoRepo.Delete(ctx, tx, videoID)
	})
	if err != nil {
		return fmt.Errorf("delete video rows: %w", err)
	}
	vs.log.Info("Video deleted", "video_id", id, "user_id", userID.String())
	return nil
}
