package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/recs"
)

type HomefeedService interface {
	Feed(ctx context.Context, userID uuid.UUID) ([]recs.FeedItem, error)
}

type homefeedService struct {
	engine *recs.Engine
	log    *logger.Logger
}

func NewHomefeedService(engine *recs.Engine, baseLog *logger.Logger) HomefeedService {
	return &homefeedService{
		engine: engine,
		log:    baseLog.With("service", "HomefeedService"),
	}
}

func (hs *homefeedService) Feed(ctx context.Context, userID uuid.UUID) ([]recs.FeedItem, error) {
	items, err := hs.engine.HomeFeed(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("home feed: %w", err)
	}
	return items, nil
}
