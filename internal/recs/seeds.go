package recs

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/platform/envutil"
	"github.com/yungbote/streem-backend/internal/repos"
	"github.com/yungbote/streem-backend/internal/search"
)

// SeedItem is one taste signal with its aggregated, renormalized weight.
// ID is the catalog row's uuid; the walk lane uses it to address graph
// nodes.
type SeedItem struct {
	ID     uuid.UUID
	Name   string
	Weight float64
}

// SeedBundle is everything the lanes need about a user's recent taste:
// weighted catalog seeds, the watch-history video ids, and the recency-
// weighted user embedding.
type SeedBundle struct {
	Topics   []SeedItem
	Entities []SeedItem
	Tags     []SeedItem

	HistoryIDs []uuid.UUID
	Embedding  []float64
}

func (b *SeedBundle) Empty() bool {
	return b == nil || (len(b.Topics) == 0 && len(b.Entities) == 0 && len(b.Tags) == 0)
}

const (
	defaultMaxTopicSeeds  = 5
	defaultMaxEntitySeeds = 15
	defaultMaxTagSeeds    = 20
	maxHistoryDepth       = 50
)

// SeedSource builds seed bundles from watch history.
type SeedSource struct {
	historyRepo repos.WatchHistoryRepo
	catalogRepo repos.CatalogRepo
	searchSvc   search.Service
	log         *logger.Logger
}

func NewSeedSource(historyRepo repos.WatchHistoryRepo, catalogRepo repos.CatalogRepo, searchSvc search.Service, baseLog *logger.Logger) *SeedSource {
	return &SeedSource{
		historyRepo: historyRepo,
		catalogRepo: catalogRepo,
		searchSvc:   searchSvc,
		log:         baseLog.With("component", "SeedSource"),
	}
}

// Build aggregates catalog weights over recent history with exponential
// recency decay, keeps the strongest seeds per collection, and averages the
// watched videos' embeddings into a user vector.
func (ss *SeedSource) Build(ctx context.Context, userID uuid.UUID) (*SeedBundle, error) {
	limit := envutil.Int("HISTORY_DEPTH", maxHistoryDepth)
	if limit < 1 {
		limit = 1
	}
	if limit > maxHistoryDepth {
		limit = maxHistoryDepth
	}
	halfLife := envutil.Float("RECENCY_HALF_LIFE_DAYS", 21)

	history, err := ss.historyRepo.ListRecentReadyByUser(ctx, nil, userID, limit)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return &SeedBundle{}, nil
	}

	now := time.Now().UTC()
	recencyByVideo := make(map[uuid.UUID]float64, len(history))
	videoIDs := make([]uuid.UUID, 0, len(history))
	for _, h := range history {
		videoIDs = append(videoIDs, h.VideoID)
		recencyByVideo[h.VideoID] = RecencyWeight(now.Sub(h.UpdatedAt.UTC()), halfLife)
	}

	catalogs, err := ss.catalogRepo.ListForVideos(ctx, nil, videoIDs)
	if err != nil {
		return nil, err
	}

	topicScores := map[string]*seedAccum{}
	entityScores := map[string]*seedAccum{}
	tagScores := map[string]*seedAccum{}
	for videoID, catalog := range catalogs {
		recency := recencyByVideo[videoID]
		if recency == 0 || catalog == nil {
			continue
		}
		accumulate(topicScores, catalog.Topics, recency)
		accumulate(entityScores, catalog.Entities, recency)
		accumulate(tagScores, catalog.Tags, recency)
	}

	bundle := &SeedBundle{
		Topics:     topSeeds(topicScores, envutil.Int("MAX_TOPIC_SEEDS", defaultMaxTopicSeeds)),
		Entities:   topSeeds(entityScores, envutil.Int("MAX_ENTITY_SEEDS", defaultMaxEntitySeeds)),
		Tags:       topSeeds(tagScores, envutil.Int("MAX_TAG_SEEDS", defaultMaxTagSeeds)),
		HistoryIDs: videoIDs,
	}

	embedding, err := ss.userEmbedding(ctx, videoIDs, recencyByVideo)
	if err != nil {
		ss.log.Warn("user embedding unavailable", "user_id", userID.String(), "error", err.Error())
	} else {
		bundle.Embedding = embedding
	}
	return bundle, nil
}

// RecencyWeight decays by half every halfLifeDays.
func RecencyWeight(age time.Duration, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		halfLifeDays = 21
	}
	days := age.Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Pow(0.5, days/halfLifeDays)
}

type seedAccum struct {
	id    uuid.UUID
	name  string
	score float64
	order int
}

func accumulate(scores map[string]*seedAccum, refs []repos.CatalogRef, recency float64) {
	for _, ref := range refs {
		key := ref.CanonicalName
		if key == "" {
			key = ref.Name
		}
		if key == "" {
			continue
		}
		acc, ok := scores[key]
		if !ok {
			acc = &seedAccum{id: ref.ID, name: ref.Name, order: len(scores)}
			scores[key] = acc
		}
		acc.score += ref.Score * recency
	}
}

// topSeeds keeps the n highest-scoring seeds and renormalizes their weights
// to sum to 1.
func topSeeds(scores map[string]*seedAccum, n int) []SeedItem {
	if len(scores) == 0 {
		return nil
	}
	accs := make([]*seedAccum, 0, len(scores))
	for _, acc := range scores {
		accs = append(accs, acc)
	}
	sort.Slice(accs, func(i, j int) bool {
		if accs[i].score != accs[j].score {
			return accs[i].score > accs[j].score
		}
		return accs[i].order < accs[j].order
	})
	if len(accs) > n {
		accs = accs[:n]
	}

	total := 0.0
	for _, acc := range accs {
		total += acc.score
	}
	items := make([]SeedItem, 0, len(accs))
	for _, acc := range accs {
		w := acc.score
		if total > 0 {
			w /= total
		}
		items = append(items, SeedItem{ID: acc.id, Name: acc.name, Weight: w})
	}
	return items
}

// userEmbedding is the L2-normalized, recency-weighted mean of the watched
// videos' stored embeddings. Vectors whose dimension disagrees with the
// first one seen are dropped.
func (ss *SeedSource) userEmbedding(ctx context.Context, videoIDs []uuid.UUID, recency map[uuid.UUID]float64) ([]float64, error) {
	ids := make([]string, 0, len(videoIDs))
	for _, id := range videoIDs {
		ids = append(ids, id.String())
	}
	sources, err := ss.searchSvc.FetchSources(ctx, ids)
	if err != nil {
		return nil, err
	}

	var sum []float64
	totalWeight := 0.0
	for _, id := range videoIDs {
		source, ok := sources[id.String()]
		if !ok {
			continue
		}
		vec := search.EmbeddingFromSource(source)
		if len(vec) == 0 {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(vec))
		}
		if len(vec) != len(sum) {
			continue
		}
		w := recency[id]
		for i, v := range vec {
			sum[i] += w * v
		}
		totalWeight += w
	}
	if sum == nil || totalWeight == 0 {
		return nil, nil
	}
	for i := range sum {
		sum[i] /= totalWeight
	}
	return l2Normalize(sum), nil
}

func l2Normalize(vec []float64) []float64 {
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

// Cosine over equal-length vectors; 0 for mismatched or zero vectors.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
