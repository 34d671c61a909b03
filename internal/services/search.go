package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/search"
)

type SearchVideoHit struct {
	VideoID      string         `json:"video_id"`
	Score        float64        `json:"score"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	ThumbnailURL string         `json:"thumbnail_url,omitempty"`
	Highlight    map[string]any `json:"highlight,omitempty"`
}

type TranscriptMatch struct {
	VideoID      string  `json:"video_id"`
	StartSeconds float64 `json:"start_seconds"`
	Text         string  `json:"text"`
	Snippet      string  `json:"snippet,omitempty"`
}

type SearchResponse struct {
	Videos            []SearchVideoHit  `json:"videos"`
	TranscriptMatches []TranscriptMatch `json:"transcript_matches"`
}

type SearchService interface {
	Search(ctx context.Context, q string, limit, offset int) (*SearchResponse, error)
}

type searchService struct {
	searchSvc search.Service
	log       *logger.Logger
}

func NewSearchService(searchSvc search.Service, baseLog *logger.Logger) SearchService {
	return &searchService{
		searchSvc: searchSvc,
		log:       baseLog.With("service", "SearchService"),
	}
}

// Search runs the metadata and transcript queries in parallel and merges
// the two result sets into one response.
func (ss *searchService) Search(ctx context.Context, q string, limit, offset int) (*SearchResponse, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidInput)
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	var metaRes *search.SearchResult
	var transcriptHits []search.Hit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := ss.searchSvc.SearchVideos(gctx, search.BuildMetaQuery(q, limit, offset))
		if err != nil {
			return fmt.Errorf("metadata search: %w", err)
		}
		metaRes = res
		return nil
	})
	g.Go(func() error {
		hits, err := ss.searchTranscripts(gctx, q, limit)
		if err != nil {
			return fmt.Errorf("transcript search: %w", err)
		}
		transcriptHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp := &SearchResponse{
		Videos:            make([]SearchVideoHit, 0, len(metaRes.Hits)),
		TranscriptMatches: groupTranscriptHits(transcriptHits),
	}
	for _, hit := range metaRes.Hits {
		resp.Videos = append(resp.Videos, toVideoHit(hit))
	}
	return resp, nil
}

// searchTranscripts tries an exact phrase first and falls back to a fuzzy
// match when the phrase finds nothing.
func (ss *searchService) searchTranscripts(ctx context.Context, q string, limit int) ([]search.Hit, error) {
	res, err := ss.searchSvc.SearchTranscripts(ctx, search.BuildTranscriptPhraseQuery(q, limit))
	if err != nil {
		return nil, err
	}
	if len(res.Hits) > 0 {
		return res.Hits, nil
	}
	res, err = ss.searchSvc.SearchTranscripts(ctx, search.BuildTranscriptFuzzyQuery(q, limit))
	if err != nil {
		return nil, err
	}
	return res.Hits, nil
}

func toVideoHit(hit search.Hit) SearchVideoHit {
	out := SearchVideoHit{VideoID: hit.ID, Score: hit.Score}
	if s, ok := hit.Source["title"].(string); ok {
		out.Title = s
	}
	if s, ok := hit.Source["description"].(string); ok {
		out.Description = s
	}
	if s, ok := hit.Source["thumbnail_url"].(string); ok {
		out.ThumbnailURL = s
	}
	if len(hit.Highlight) > 0 {
		out.Highlight = make(map[string]any, len(hit.Highlight))
		for field, frags := range hit.Highlight {
			out.Highlight[field] = frags
		}
	}
	return out
}

// groupTranscriptHits keeps one match per video, at the earliest offset.
func groupTranscriptHits(hits []search.Hit) []TranscriptMatch {
	best := map[string]TranscriptMatch{}
	for _, hit := range hits {
		videoID, _ := hit.Source["video_id"].(string)
		if videoID == "" {
			continue
		}
		match := TranscriptMatch{VideoID: videoID}
		if v, ok := hit.Source["start_seconds"].(float64); ok {
			match.StartSeconds = v
		}
		if s, ok := hit.Source["text"].(string); ok {
			match.Text = s
		}
		if frags, ok := hit.Highlight["text"]; ok && len(frags) > 0 {
			match.Snippet = frags[0]
		}
		existing, seen := best[videoID]
		if !seen || match.StartSeconds < existing.StartSeconds {
			best[videoID] = match
		}
	}
	out := make([]TranscriptMatch, 0, len(best))
	for _, match := range best {
		out = append(out, match)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VideoID != out[j].VideoID {
			return out[i].VideoID < out[j].VideoID
		}
		return out[i].StartSeconds < out[j].StartSeconds
	})
	return out
}
