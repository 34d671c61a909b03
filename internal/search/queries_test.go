package search

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/streem-backend/internal/repos"
	"github.com/yungbote/streem-backend/internal/types"
)

func newTestVideo() *types.Video {
	return &types.Video{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Title:     "Test",
		Status:    types.VideoStatusReady,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("How DO I set-up React?!")
	want := []string{"how", "do", "i", "set", "up", "react"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTranscriptMSMLadder(t *testing.T) {
	cases := []struct {
		words int
		want  string
	}{
		{1, "100%"},
		{3, "100%"},
		{4, "75%"},
		{5, "60%"},
		{9, "60%"},
	}
	for _, tc := range cases {
		if got := TranscriptMSM(tc.words); got != tc.want {
			t.Fatalf("TranscriptMSM(%d) = %q, want %q", tc.words, got, tc.want)
		}
	}
}

func TestBuildRecallQueryShape(t *testing.T) {
	body := BuildRecallQuery("react python", []string{"abc"}, 500)
	if body["size"] != 500 {
		t.Fatalf("size = %v", body["size"])
	}
	boolQ := body["query"].(map[string]any)["bool"].(map[string]any)
	mustNot := boolQ["must_not"].([]any)
	if len(mustNot) != 1 {
		t.Fatalf("must_not = %v", mustNot)
	}
	should := boolQ["should"].([]any)
	if len(should) != 4 {
		t.Fatalf("should has %d clauses, want 4", len(should))
	}
	mm := should[0].(map[string]any)["multi_match"].(map[string]any)
	fields := mm["fields"].([]string)
	if fields[0] != "title^3" || fields[1] != "description^2" {
		t.Fatalf("fields = %v", fields)
	}
	filter := boolQ["filter"].([]any)
	term := filter[0].(map[string]any)["term"].(map[string]any)
	if term["status"] != "ready" {
		t.Fatalf("filter = %v", filter)
	}
}

func TestBuildRecallQueryNoExcludes(t *testing.T) {
	body := BuildRecallQuery("x", nil, 10)
	boolQ := body["query"].(map[string]any)["bool"].(map[string]any)
	if mustNot := boolQ["must_not"].([]any); len(mustNot) != 0 {
		t.Fatalf("must_not should be empty, got %v", mustNot)
	}
}

func TestBuildVideoDocThresholds(t *testing.T) {
	th := IndexThresholds{Topic: 0.75, Entity: 0.75, Tag: 0.75}
	catalog := &repos.VideoCatalog{
		Topics: []repos.CatalogRef{
			{ID: uuid.New(), Name: "Machine Learning", CanonicalName: "machine_learning", Score: 0.9},
			{ID: uuid.New(), Name: "Statistics", CanonicalName: "statistics", Score: 0.5},
		},
		Tags: []repos.CatalogRef{
			{ID: uuid.New(), Name: "tutorial", CanonicalName: "tutorial", Score: 0.75},
		},
	}
	video := newTestVideo()
	doc := BuildVideoDoc(video, "a summary", catalog, nil, "", th)

	topics := doc["topics"].([]map[string]any)
	if len(topics) != 1 {
		t.Fatalf("got %d topics, want 1 (below-threshold rows dropped)", len(topics))
	}
	if topics[0]["canonical_name"] != "machine_learning" {
		t.Fatalf("topic = %v", topics[0])
	}
	tags := doc["tags"].([]map[string]any)
	if len(tags) != 1 {
		t.Fatalf("got %d tags, want 1 (threshold is inclusive)", len(tags))
	}
	if doc["short_summary"] != "a summary" {
		t.Fatalf("short_summary = %v", doc["short_summary"])
	}
	if _, ok := doc["embedding"]; ok {
		t.Fatal("nil embedding must not be written")
	}
}

func TestCanonicalTokens(t *testing.T) {
	source := map[string]any{
		"entities": []any{
			map[string]any{"canonical_name": "pytorch"},
			map[string]any{"name": "OpenAI"},
		},
		"tags": []any{
			map[string]any{"canonical_name": "tutorial"},
		},
	}
	tokens := CanonicalTokens(source)
	for _, want := range []string{"pytorch", "openai", "tutorial"} {
		if !tokens[want] {
			t.Fatalf("missing token %q in %v", want, tokens)
		}
	}
}
