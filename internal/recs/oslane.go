package recs

import (
	"context"
	"strings"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/platform/envutil"
	"github.com/yungbote/streem-backend/internal/search"
)

// OSLane is the search-index recommendation lane: BM25 recall over the
// seed names, blended with embedding cosine, diversified with MMR.
type OSLane struct {
	searchSvc search.Service
	log       *logger.Logger
}

func NewOSLane(searchSvc search.Service, baseLog *logger.Logger) *OSLane {
	return &OSLane{
		searchSvc: searchSvc,
		log:       baseLog.With("component", "OSLane"),
	}
}

// RecallQueryText joins the seed display names tags-first, deduped
// case-insensitively in first-occurrence order.
func RecallQueryText(bundle *SeedBundle) string {
	if bundle == nil {
		return ""
	}
	var names []string
	seen := map[string]bool{}
	add := func(items []SeedItem) {
		for _, item := range items {
			name := strings.TrimSpace(item.Name)
			if name == "" {
				continue
			}
			key := strings.ToLower(name)
			if seen[key] {
				continue
			}
			seen[key] = true
			names = append(names, name)
		}
	}
	add(bundle.Tags)
	add(bundle.Entities)
	add(bundle.Topics)
	return strings.Join(names, " ")
}

// Run recalls candidates, scores them 50/50 BM25/cosine, and returns an
// MMR-diversified shortlist of up to 2x quota.
func (l *OSLane) Run(ctx context.Context, bundle *SeedBundle, excludeIDs []string, quota int) ([]Item, error) {
	if quota <= 0 {
		return nil, nil
	}
	queryText := RecallQueryText(bundle)
	if queryText == "" {
		return nil, nil
	}

	recallSize := envutil.Int("OS_BM25_RECALL_K", 500)
	body := search.BuildRecallQuery(queryText, excludeIDs, recallSize)
	res, err := l.searchSvc.SearchVideos(ctx, body)
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Hits) == 0 {
		return nil, nil
	}

	items := scoreRecallHits(res.Hits, bundle.Embedding)

	lambda := envutil.Float("MMR_LAMBDA", 0.7)
	pool := quota * 4
	if pool > len(items) {
		pool = len(items)
	}
	return Rerank(items[:pool], lambda, quota*2), nil
}

// scoreRecallHits blends min-max-normalized BM25 with min-max-normalized
// cosine. Without a user embedding every cosine is 0 and BM25 alone
// decides. Items come back sorted best-first.
func scoreRecallHits(hits []search.Hit, userEmbedding []float64) []Item {
	cosWeight := envutil.Float("OS_COSINE_WEIGHT", 0.5)
	bm25Weight := envutil.Float("OS_BM25_WEIGHT", 0.5)

	bm25 := make([]float64, len(hits))
	cos := make([]float64, len(hits))
	for i, hit := range hits {
		bm25[i] = hit.Score
		if len(userEmbedding) > 0 {
			cos[i] = Cosine(userEmbedding, search.EmbeddingFromSource(hit.Source))
		}
	}
	bm25Norm := minMaxNormalize(bm25)
	cosNorm := minMaxNormalize(cos)

	items := make([]Item, 0, len(hits))
	for i, hit := range hits {
		items = append(items, Item{
			VideoID: hit.ID,
			Score:   cosWeight*cosNorm[i] + bm25Weight*bm25Norm[i],
			Lane:    LaneOS,
			Tokens:  search.CanonicalTokens(hit.Source),
			Source:  hit.Source,
		})
	}
	sortItemsByScore(items)
	return items
}

// minMaxNormalize maps values onto [0,1]. A degenerate range maps every
// value to 1 when positive and 0 otherwise.
func minMaxNormalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max == min {
		if max > 0 {
			for i := range out {
				out[i] = 1
			}
		}
		return out
	}
	for i, v := range values {
		out[i] = (v - min) / (max - min)
	}
	return out
}
