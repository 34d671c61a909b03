package recs

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/platform/envutil"
)

const (
	LaneOS    = "os"
	LaneGraph = "graph"
)

// FeedItem is one home-feed card.
type FeedItem struct {
	VideoID         string  `json:"video_id"`
	Title           string  `json:"title"`
	PosterURL       string  `json:"poster_url,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Lane            string  `json:"lane"`
	Score           float64 `json:"score"`
}

// Engine assembles the two-lane home feed.
type Engine struct {
	seedSource *SeedSource
	osLane     *OSLane
	graphLane  *GraphLane
	log        *logger.Logger
}

func NewEngine(seedSource *SeedSource, osLane *OSLane, graphLane *GraphLane, baseLog *logger.Logger) *Engine {
	return &Engine{
		seedSource: seedSource,
		osLane:     osLane,
		graphLane:  graphLane,
		log:        baseLog.With("service", "RecsEngine"),
	}
}

// HomeFeed builds the personalized feed: seeds from history, both lanes
// with quota backfill, then a global MMR pass over the merged list.
func (e *Engine) HomeFeed(ctx context.Context, userID uuid.UUID) ([]FeedItem, error) {
	bundle, err := e.seedSource.Build(ctx, userID)
	if err != nil {
		return nil, err
	}
	if bundle.Empty() {
		return []FeedItem{}, nil
	}

	feedSize := envutil.Int("TARGET_TOTAL_RECOMMENDATIONS", 100)
	osQuota := envutil.Int("OS_LANE_QUOTA", 70)
	graphQuota := envutil.Int("GRAPH_LANE_QUOTA", 30)

	historyIDs := make([]string, 0, len(bundle.HistoryIDs))
	for _, id := range bundle.HistoryIDs {
		historyIDs = append(historyIDs, id.String())
	}

	osItems, err := e.osLane.Run(ctx, bundle, historyIDs, osQuota)
	if err != nil {
		e.log.Warn("os lane failed", "user_id", userID.String(), "error", err.Error())
		osItems = nil
	}

	osTop := osItems
	if len(osTop) > 2*osQuota {
		osTop = osTop[:2*osQuota]
	}
	osTopIDs := make([]string, 0, len(osTop))
	for _, it := range osTop {
		osTopIDs = append(osTopIDs, it.VideoID)
	}

	graphItems, err := e.graphLane.Run(ctx, bundle, osTopIDs, graphQuota)
	if err != nil {
		e.log.Warn("graph lane failed", "user_id", userID.String(), "error", err.Error())
		graphItems = nil
	}

	osTake, graphTake := fillQuotas(osQuota, graphQuota, len(osItems), len(graphItems))
	merged := make([]Item, 0, osTake+graphTake)
	merged = append(merged, osItems[:osTake]...)
	merged = append(merged, graphItems[:graphTake]...)
	if len(merged) == 0 {
		return []FeedItem{}, nil
	}

	lambda := envutil.Float("MMR_LAMBDA", 0.7)
	final := Rerank(merged, lambda, feedSize)

	feed := make([]FeedItem, 0, len(final))
	for _, it := range final {
		feed = append(feed, toFeedItem(it))
	}
	return feed, nil
}

// fillQuotas backfills one lane's shortfall from the other, capped by the
// donor's actual supply.
func fillQuotas(osQuota, graphQuota, osSupply, graphSupply int) (osTake, graphTake int) {
	osTake = min(osQuota, osSupply)
	graphTake = min(graphQuota, graphSupply)

	if osTake < osQuota {
		graphTake = min(graphTake+(osQuota-osTake), graphSupply)
	}
	if graphTake < graphQuota {
		osTake = min(osTake+(graphQuota-graphTake), osSupply)
	}
	return osTake, graphTake
}

func toFeedItem(it Item) FeedItem {
	feedItem := FeedItem{
		VideoID: it.VideoID,
		Lane:    it.Lane,
		Score:   it.Score,
	}
	if it.Source != nil {
		if title, ok := it.Source["title"].(string); ok {
			feedItem.Title = title
		}
		if poster, ok := it.Source["thumbnail_url"].(string); ok {
			feedItem.PosterURL = poster
		}
		if dur, ok := it.Source["duration_seconds"].(float64); ok {
			feedItem.DurationSeconds = dur
		}
	}
	return feedItem
}

func sortItemsByScore(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
