package enrich

import (
	"strings"
	"testing"

	"github.com/yungbote/streem-backend/internal/transcript"
)

func TestDecodeResultDirect(t *testing.T) {
	res, err := DecodeResult(`{"metadata":{"content_type":"educational","language":"en"},"short_summary":"s","topics":[],"entities":[],"tags":[]}`)
	if err != nil {
		t.Fatalf("DecodeResult error = %v", err)
	}
	if res.Metadata.ContentType != "educational" {
		t.Fatalf("content_type = %q, want educational", res.Metadata.ContentType)
	}
	if res.ShortSummary != "s" {
		t.Fatalf("short_summary = %q, want s", res.ShortSummary)
	}
}

func TestDecodeResultWrapped(t *testing.T) {
	wrapped := "Here is the extraction:\n```json\n{\"short_summary\":\"wrapped\"}\n```\nDone."
	res, err := DecodeResult(wrapped)
	if err != nil {
		t.Fatalf("DecodeResult error = %v", err)
	}
	if res.ShortSummary != "wrapped" {
		t.Fatalf("short_summary = %q, want wrapped", res.ShortSummary)
	}
}

func TestDecodeResultNoJSON(t *testing.T) {
	if _, err := DecodeResult("no object here"); err == nil {
		t.Fatal("expected error for output without JSON")
	}
	if _, err := DecodeResult("   "); err == nil {
		t.Fatal("expected error for empty output")
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Machine Learning", "machine_learning"},
		{"  pasta   making  ", "pasta_making"},
		{"OpenAI", "openai"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Canonicalize(tt.in); got != tt.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	res := &Result{
		Metadata:     Metadata{ContentType: " Educational ", Language: " EN "},
		ShortSummary: "  summary  ",
		Topics: []TopicItem{
			{Name: "Machine Learning", CanonicalName: "Machine Learning", Prominence: 1.4},
			{Name: "ML again", CanonicalName: "machine_learning", Prominence: 0.3},
			{Name: "", CanonicalName: "empty", Prominence: 0.5},
			{Name: "Cooking", Prominence: -0.2},
		},
		Entities: []EntityItem{
			{Name: "OpenAI", Importance: 0.9, EntityType: " Organization "},
			{Name: "openai", Importance: 0.1},
		},
		Tags: []TagItem{
			{Tag: "python", Weight: 0.8},
			{Tag: " Python ", Weight: 0.2},
		},
	}
	res.Normalize()

	if res.Metadata.ContentType != "educational" || res.Metadata.Language != "en" {
		t.Fatalf("metadata = %+v", res.Metadata)
	}
	if res.ShortSummary != "summary" {
		t.Fatalf("short_summary = %q", res.ShortSummary)
	}
	if len(res.Topics) != 2 {
		t.Fatalf("topics = %d, want 2 (dedupe + drop empty)", len(res.Topics))
	}
	if res.Topics[0].CanonicalName != "machine_learning" || res.Topics[0].Prominence != 1.0 {
		t.Fatalf("topic[0] = %+v", res.Topics[0])
	}
	if res.Topics[1].CanonicalName != "cooking" || res.Topics[1].Prominence != 0 {
		t.Fatalf("topic[1] = %+v", res.Topics[1])
	}
	if len(res.Entities) != 1 || res.Entities[0].EntityType != "organization" {
		t.Fatalf("entities = %+v", res.Entities)
	}
	if len(res.Tags) != 1 || res.Tags[0].Tag != "python" {
		t.Fatalf("tags = %+v", res.Tags)
	}
}

func TestBuildTranscriptTextClipping(t *testing.T) {
	chunks := []transcript.Chunk{
		{Text: "alpha beta"},
		{Text: "  "},
		{Text: "gamma"},
		{Text: "delta epsilon zeta"},
	}
	if got := BuildTranscriptText(chunks, 1000); got != "alpha beta gamma delta epsilon zeta" {
		t.Fatalf("unclipped = %q", got)
	}
	// "alpha beta" (10) + " gamma" (6) = 16; the next chunk would overflow.
	if got := BuildTranscriptText(chunks, 20); got != "alpha beta gamma" {
		t.Fatalf("clipped = %q", got)
	}
	if got := BuildTranscriptText(chunks, 5); got != "" {
		t.Fatalf("tiny budget = %q, want empty", got)
	}
}

func TestBuildEmbeddingTextLiteral(t *testing.T) {
	got := BuildEmbeddingText("X", "", "s", []string{"A", "B"}, nil, nil, "other", "en")
	want := "Title: X\n" +
		"\n" +
		"Description: \n" +
		"\n" +
		"Summary: s\n" +
		"\n" +
		"Topics: A | B\n" +
		"Entities: n/a\n" +
		"Tags: n/a\n" +
		"\n" +
		"Metadata: content_type=other, language=en"
	if got != want {
		t.Fatalf("embedding text = %q, want %q", got, want)
	}
}

func TestBuildEmbeddingTextDefaults(t *testing.T) {
	got := BuildEmbeddingText("t", "d", "s", nil, nil, nil, "", " ")
	if want := "Metadata: content_type=other, language=en"; !strings.Contains(got, want) {
		t.Fatalf("embedding text %q missing %q", got, want)
	}
}

func TestCatalogConversion(t *testing.T) {
	res := &Result{
		Topics:   []TopicItem{{Name: "Cooking", CanonicalName: "cooking", Prominence: 0.9}},
		Entities: []EntityItem{{Name: "Gordon Ramsay", CanonicalName: "gordon_ramsay", Importance: 0.8, EntityType: "person"}},
		Tags:     []TagItem{{Tag: "home-cooking", Weight: 0.7}},
	}
	cat := res.Catalog()
	if len(cat.Topics) != 1 || cat.Topics[0].Score != 0.9 {
		t.Fatalf("topics = %+v", cat.Topics)
	}
	if cat.Entities[0].EntityType != "person" {
		t.Fatalf("entity = %+v", cat.Entities[0])
	}
	if cat.Tags[0].CanonicalName != "home-cooking" {
		t.Fatalf("tag canonical = %q", cat.Tags[0].CanonicalName)
	}
}
