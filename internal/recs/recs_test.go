package recs

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/yungbote/streem-backend/internal/data/graph"
)

func TestRecallQueryText(t *testing.T) {
	bundle := &SeedBundle{
		Tags:     []SeedItem{{Name: "react", Weight: 0.6}, {Name: "python", Weight: 0.4}},
		Entities: []SeedItem{{Name: "OpenAI", Weight: 1.0}},
		Topics:   []SeedItem{{Name: "web development", Weight: 1.0}},
	}
	if got, want := RecallQueryText(bundle), "react python OpenAI web development"; got != want {
		t.Fatalf("RecallQueryText = %q, want %q", got, want)
	}
}

func TestRecallQueryTextDedupes(t *testing.T) {
	bundle := &SeedBundle{
		Tags:     []SeedItem{{Name: "Python"}},
		Entities: []SeedItem{{Name: "python"}, {Name: "Django"}},
	}
	if got, want := RecallQueryText(bundle), "Python Django"; got != want {
		t.Fatalf("RecallQueryText = %q, want %q", got, want)
	}
	if got := RecallQueryText(&SeedBundle{}); got != "" {
		t.Fatalf("empty bundle query = %q, want empty", got)
	}
}

func TestRerankTieGoesToLowerIndex(t *testing.T) {
	shared := map[string]bool{"a": true, "b": true}
	items := []Item{
		{VideoID: "v0", Score: 0.9, Tokens: shared},
		{VideoID: "v1", Score: 0.9, Tokens: shared},
		{VideoID: "v2", Score: 0.5, Tokens: shared},
	}
	got := Rerank(items, 0.7, 2)
	if len(got) != 2 || got[0].VideoID != "v0" || got[1].VideoID != "v1" {
		t.Fatalf("Rerank picked %+v, want v0 then v1", got)
	}
}

func TestRerankPrefersDiversity(t *testing.T) {
	items := []Item{
		{VideoID: "a", Score: 1.0, Tokens: map[string]bool{"x": true, "y": true}},
		{VideoID: "b", Score: 0.95, Tokens: map[string]bool{"x": true, "y": true}},
		{VideoID: "c", Score: 0.6, Tokens: map[string]bool{"z": true}},
	}
	got := Rerank(items, 0.5, 2)
	if got[0].VideoID != "a" || got[1].VideoID != "c" {
		t.Fatalf("Rerank = [%s %s], want [a c]", got[0].VideoID, got[1].VideoID)
	}
}

func TestJaccard(t *testing.T) {
	a := map[string]bool{"x": true, "y": true}
	b := map[string]bool{"y": true, "z": true}
	if got := Jaccard(a, b); math.Abs(got-1.0/3.0) > 1e-9 {
		t.Fatalf("Jaccard = %v, want 1/3", got)
	}
	if got := Jaccard(a, nil); got != 0 {
		t.Fatalf("Jaccard with empty = %v, want 0", got)
	}
}

func TestMinMaxNormalize(t *testing.T) {
	got := minMaxNormalize([]float64{2, 4, 6})
	want := []float64{0, 0.5, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("normalized[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	for _, v := range minMaxNormalize([]float64{3, 3, 3}) {
		if v != 1 {
			t.Fatalf("degenerate positive value = %v, want 1", v)
		}
	}
	for _, v := range minMaxNormalize([]float64{0, 0}) {
		if v != 0 {
			t.Fatalf("degenerate zero value = %v, want 0", v)
		}
	}
}

func TestRecencyWeight(t *testing.T) {
	if got := RecencyWeight(0, 21); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("recency(0) = %v, want 1", got)
	}
	halfLife := 21 * 24 * time.Hour
	if got := RecencyWeight(halfLife, 21); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("recency(half-life) = %v, want 0.5", got)
	}
}

func TestCosine(t *testing.T) {
	if got := Cosine([]float64{1, 0}, []float64{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("cosine identical = %v, want 1", got)
	}
	if got := Cosine([]float64{1, 0}, []float64{0, 1}); math.Abs(got) > 1e-9 {
		t.Fatalf("cosine orthogonal = %v, want 0", got)
	}
	if got := Cosine([]float64{1, 0}, []float64{1}); got != 0 {
		t.Fatalf("cosine mismatched dims = %v, want 0", got)
	}
}

func TestFillQuotas(t *testing.T) {
	tests := []struct {
		name                     string
		osQuota, graphQuota      int
		osSupply, graphSupply    int
		wantOSTake, wantGraphTake int
	}{
		{"both full", 70, 30, 140, 60, 70, 30},
		{"os shortfall backfilled", 70, 30, 10, 60, 10, 60},
		{"graph shortfall backfilled", 70, 30, 140, 5, 95, 5},
		{"both short", 70, 30, 10, 5, 10, 5},
	}
	for _, tt := range tests {
		osTake, graphTake := fillQuotas(tt.osQuota, tt.graphQuota, tt.osSupply, tt.graphSupply)
		if osTake != tt.wantOSTake || graphTake != tt.wantGraphTake {
			t.Errorf("%s: fillQuotas = (%d, %d), want (%d, %d)",
				tt.name, osTake, graphTake, tt.wantOSTake, tt.wantGraphTake)
		}
	}
}

func TestTopSeedsRenormalizes(t *testing.T) {
	scores := map[string]*seedAccum{
		"a": {name: "A", score: 3, order: 0},
		"b": {name: "B", score: 1, order: 1},
		"c": {name: "C", score: 0.5, order: 2},
	}
	items := topSeeds(scores, 2)
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].Name != "A" || items[1].Name != "B" {
		t.Fatalf("items = %+v, want A then B", items)
	}
	if sum := items[0].Weight + items[1].Weight; math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("weights sum = %v, want 1", sum)
	}
	if math.Abs(items[0].Weight-0.75) > 1e-9 {
		t.Fatalf("weight[0] = %v, want 0.75", items[0].Weight)
	}
}

func TestRunWalksStaysOnProjection(t *testing.T) {
	edges := []graph.ProjectionEdge{
		{VideoID: "v1", NodeKey: "Tag:cooking", Weight: 1},
		{VideoID: "v2", NodeKey: "Tag:cooking", Weight: 1},
		{VideoID: "v2", NodeKey: "Entity:ramsay", Weight: 1},
		{VideoID: "v3", NodeKey: "Entity:ramsay", Weight: 1},
	}
	adj := BuildAdjacency(edges)
	videos := map[string]bool{"v1": true, "v2": true, "v3": true}

	rng := rand.New(rand.NewSource(42))
	visits := RunWalks(adj, []string{"Tag:cooking"}, 50, 7, rng, func(v string) bool { return videos[v] })

	if visits["v1"] == 0 || visits["v2"] == 0 {
		t.Fatalf("videos on the seed tag never visited: %v", visits)
	}
	if visits["v3"] == 0 {
		t.Fatal("v3 reachable through two hops but never visited")
	}
	for id := range visits {
		if !videos[id] {
			t.Fatalf("non-video vertex tallied: %s", id)
		}
	}
}

func TestRunWalksDeterministicWithSeed(t *testing.T) {
	edges := []graph.ProjectionEdge{
		{VideoID: "v1", NodeKey: "Tag:a", Weight: 1},
		{VideoID: "v2", NodeKey: "Tag:a", Weight: 3},
		{VideoID: "v3", NodeKey: "Tag:a", Weight: 1},
	}
	adj := BuildAdjacency(edges)
	videos := map[string]bool{"v1": true, "v2": true, "v3": true}
	isVideo := func(v string) bool { return videos[v] }

	first := RunWalks(adj, []string{"Tag:a"}, 20, 5, rand.New(rand.NewSource(7)), isVideo)
	second := RunWalks(adj, []string{"Tag:a"}, 20, 5, rand.New(rand.NewSource(7)), isVideo)
	if len(first) != len(second) {
		t.Fatalf("visit maps differ in size: %d vs %d", len(first), len(second))
	}
	for id, n := range first {
		if second[id] != n {
			t.Fatalf("visits[%s] = %d vs %d with same seed", id, n, second[id])
		}
	}
	// Weight-proportional choice should favor the heavier edge.
	if first["v2"] <= first["v3"] {
		t.Fatalf("v2 (weight 3) visited %d times, v3 (weight 1) %d; want v2 > v3", first["v2"], first["v3"])
	}
}
