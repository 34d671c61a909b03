package recs

import (
	"context"
	"math/rand"
	"sort"

	"github.com/google/uuid"

	"github.com/yungbote/streem-backend/internal/data/graph"
	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/platform/envutil"
	"github.com/yungbote/streem-backend/internal/platform/neo4jdb"
	"github.com/yungbote/streem-backend/internal/search"
)

// GraphLane discovers videos by weighted random walks over the
// Video-Entity/Tag projection, starting from the user's watch history.
type GraphLane struct {
	graphClient *neo4jdb.Client
	searchSvc   search.Service
	log         *logger.Logger
	seed        int64
}

func NewGraphLane(graphClient *neo4jdb.Client, searchSvc search.Service, baseLog *logger.Logger) *GraphLane {
	return &GraphLane{
		graphClient: graphClient,
		searchSvc:   searchSvc,
		log:         baseLog.With("component", "GraphLane"),
	}
}

// WithSeed pins the walk RNG, for tests.
func (l *GraphLane) WithSeed(seed int64) *GraphLane {
	l.seed = seed
	return l
}

type walkEdge struct {
	target string
	weight float64
}

// Adjacency is the bipartite walk graph: video ids and label-prefixed
// catalog node keys both appear as vertices.
type Adjacency map[string][]walkEdge

// BuildAdjacency folds projection edges into a bidirectional adjacency map.
func BuildAdjacency(edges []graph.ProjectionEdge) Adjacency {
	adj := Adjacency{}
	for _, e := range edges {
		w := e.Weight
		if w <= 0 {
			w = 1.0
		}
		adj[e.VideoID] = append(adj[e.VideoID], walkEdge{target: e.NodeKey, weight: w})
		adj[e.NodeKey] = append(adj[e.NodeKey], walkEdge{target: e.VideoID, weight: w})
	}
	return adj
}

// RunWalks performs walksPerNode walks of walkLength steps from each seed,
// tallying visits to video vertices. Catalog vertices route the walk but
// are never counted.
func RunWalks(adj Adjacency, seeds []string, walksPerNode, walkLength int, rng *rand.Rand, isVideo func(string) bool) map[string]int {
	visits := map[string]int{}
	for _, seed := range seeds {
		if len(adj[seed]) == 0 {
			continue
		}
		for w := 0; w < walksPerNode; w++ {
			current := seed
			for step := 0; step < walkLength; step++ {
				next, ok := pickWeighted(adj[current], rng)
				if !ok {
					break
				}
				current = next
				if isVideo(current) && current != seed {
					visits[current]++
				}
			}
		}
	}
	return visits
}

func pickWeighted(edges []walkEdge, rng *rand.Rand) (string, bool) {
	if len(edges) == 0 {
		return "", false
	}
	total := 0.0
	for _, e := range edges {
		total += e.weight
	}
	if total <= 0 {
		return edges[rng.Intn(len(edges))].target, true
	}
	r := rng.Float64() * total
	for _, e := range edges {
		r -= e.weight
		if r <= 0 {
			return e.target, true
		}
	}
	return edges[len(edges)-1].target, true
}

// Run walks the projection from the bundle's Entity and Tag seeds and
// returns the MMR-diversified shortlist of up to 2x quota. Exclusions
// cover the user's history and the OS lane's top picks so the lanes stay
// complementary.
func (l *GraphLane) Run(ctx context.Context, bundle *SeedBundle, osTopIDs []string, quota int) ([]Item, error) {
	if quota <= 0 || bundle == nil || len(bundle.HistoryIDs) == 0 {
		return nil, nil
	}
	seeds := walkSeeds(bundle)
	if len(seeds) == 0 {
		return nil, nil
	}

	edges, err := graph.FetchProjection(ctx, l.graphClient)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, nil
	}

	videoVertices := map[string]bool{}
	for _, e := range edges {
		videoVertices[e.VideoID] = true
	}
	adj := BuildAdjacency(edges)

	exclude := map[string]bool{}
	for _, id := range bundle.HistoryIDs {
		exclude[id.String()] = true
	}
	for _, id := range osTopIDs {
		exclude[id] = true
	}

	walksPerNode := envutil.Int("GRAPH_WALKS_PER_NODE", 50)
	walkLength := envutil.Int("GRAPH_WALK_LENGTH", 7)
	rng := l.newRand()

	visits := RunWalks(adj, seeds, walksPerNode, walkLength, rng, func(v string) bool {
		return videoVertices[v]
	})

	type tallied struct {
		id     string
		visits int
	}
	candidates := make([]tallied, 0, len(visits))
	for id, n := range visits {
		if exclude[id] {
			continue
		}
		candidates = append(candidates, tallied{id: id, visits: n})
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].visits != candidates[j].visits {
			return candidates[i].visits > candidates[j].visits
		}
		return candidates[i].id < candidates[j].id
	})

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.id)
	}
	sources, err := l.searchSvc.FetchSources(ctx, ids)
	if err != nil {
		return nil, err
	}

	cosMin := envutil.Float("GRAPH_COSINE_MIN", 0.1)
	cosMax := envutil.Float("GRAPH_COSINE_MAX", 0.9)

	items := make([]Item, 0, len(candidates))
	visitsByID := make(map[string]int, len(candidates))
	cosines := make([]float64, 0, len(candidates))
	for _, c := range candidates {
		source, ok := sources[c.id]
		if !ok {
			continue
		}
		cos := 0.0
		if len(bundle.Embedding) > 0 {
			// A cosine band keeps out both near-duplicates of the
			// history and unrelated noise.
			cos = Cosine(bundle.Embedding, search.EmbeddingFromSource(source))
			if cos < cosMin || cos > cosMax {
				continue
			}
		}
		visitsByID[c.id] = c.visits
		cosines = append(cosines, cos)
		items = append(items, Item{
			VideoID: c.id,
			Lane:    LaneGraph,
			Tokens:  search.CanonicalTokens(source),
			Source:  source,
		})
	}
	if len(items) == 0 {
		return nil, nil
	}

	// Lane score is the cosine, min-max normalized over the survivors.
	for i, norm := range minMaxNormalize(cosines) {
		items[i].Score = norm
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return visitsByID[items[i].VideoID] > visitsByID[items[j].VideoID]
	})

	lambda := envutil.Float("MMR_LAMBDA", 0.7)
	return Rerank(items, lambda, quota*2), nil
}

// walkSeeds turns the bundle's entity and tag seeds into label-prefixed
// projection vertices, ordered and deduped.
func walkSeeds(bundle *SeedBundle) []string {
	seeds := make([]string, 0, len(bundle.Entities)+len(bundle.Tags))
	seen := map[string]bool{}
	for _, s := range bundle.Entities {
		key := "Entity:" + s.ID.String()
		if s.ID == uuid.Nil || seen[key] {
			continue
		}
		seen[key] = true
		seeds = append(seeds, key)
	}
	for _, s := range bundle.Tags {
		key := "Tag:" + s.ID.String()
		if s.ID == uuid.Nil || seen[key] {
			continue
		}
		seen[key] = true
		seeds = append(seeds, key)
	}
	return seeds
}

func (l *GraphLane) newRand() *rand.Rand {
	if l.seed != 0 {
		return rand.New(rand.NewSource(l.seed))
	}
	return rand.New(rand.NewSource(rand.Int63()))
}
