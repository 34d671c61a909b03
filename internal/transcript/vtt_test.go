package transcript

import (
	"strings"
	"testing"
)

func TestFormatVTTSingleSegment(t *testing.T) {
	got := FormatVTT([]Segment{{Start: 3.5, End: 7.25, Text: "hello"}})
	want := strings.Join([]string{
		"WEBVTT",
		"",
		"1",
		"00:00:03.500 --> 00:00:07.250",
		"hello",
		"",
	}, "\n")
	if got != want {
		t.Fatalf("FormatVTT =\n%q\nwant\n%q", got, want)
	}
}

func TestFormatTimestampHours(t *testing.T) {
	if got := FormatTimestamp(3723.042); got != "01:02:03.042" {
		t.Fatalf("FormatTimestamp = %q", got)
	}
	if got := FormatTimestamp(-1); got != "00:00:00.000" {
		t.Fatalf("FormatTimestamp negative = %q", got)
	}
}

func TestParseVTTRoundTrip(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 2.5, Text: "first cue"},
		{Start: 2.5, End: 6, Text: "second cue"},
	}
	parsed := ParseVTT(FormatVTT(segments))
	if len(parsed) != 2 {
		t.Fatalf("parsed %d segments, want 2", len(parsed))
	}
	for i := range segments {
		if parsed[i].Start != segments[i].Start || parsed[i].End != segments[i].End || parsed[i].Text != segments[i].Text {
			t.Fatalf("segment %d = %+v, want %+v", i, parsed[i], segments[i])
		}
	}
}

func TestParseVTTTolerance(t *testing.T) {
	content := "WEBVTT\n\nNOTE comment\n\n00:01.000 --> 00:03,500 align:start\nline one\nline two\n\n"
	parsed := ParseVTT(content)
	if len(parsed) != 1 {
		t.Fatalf("parsed %d segments, want 1", len(parsed))
	}
	seg := parsed[0]
	if seg.Start != 1.0 || seg.End != 3.5 {
		t.Fatalf("timing = %v..%v", seg.Start, seg.End)
	}
	if seg.Text != "line one line two" {
		t.Fatalf("text = %q", seg.Text)
	}
}

func TestChunkSegmentsMerges(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 2, Text: "short"},
		{Start: 2, End: 4, Text: "pieces of speech that should"},
		{Start: 4, End: 6, Text: "merge into one chunk once the minimum is reached"},
		{Start: 6, End: 8, Text: ""},
		{Start: 8, End: 10, Text: "tail"},
	}
	chunks := chunkSegments("v1", segments, "en", 80, 200)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2: %+v", len(chunks), chunks)
	}
	first := chunks[0]
	if first.StartSeconds != 0 || first.EndSeconds != 6 {
		t.Fatalf("first chunk timing = %v..%v", first.StartSeconds, first.EndSeconds)
	}
	if len(first.Text) < 80 {
		t.Fatalf("first chunk below min: %q", first.Text)
	}
	if chunks[1].Text != "tail" {
		t.Fatalf("tail chunk = %q", chunks[1].Text)
	}
	for _, c := range chunks {
		if c.VideoID != "v1" || c.Lang != "en" {
			t.Fatalf("chunk fields = %+v", c)
		}
	}
}

func TestChunkSegmentsFlushesBeforeOverflow(t *testing.T) {
	long := strings.Repeat("word ", 30) // ~150 chars
	segments := []Segment{
		{Start: 0, End: 1, Text: "intro words here"},
		{Start: 1, End: 2, Text: strings.TrimSpace(long)},
	}
	chunks := chunkSegments("v1", segments, "en", 80, 160)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if chunks[0].Text != "intro words here" {
		t.Fatalf("first chunk = %q", chunks[0].Text)
	}
}

func TestChunkSegmentsEmpty(t *testing.T) {
	if got := chunkSegments("v1", nil, "en", 80, 200); len(got) != 0 {
		t.Fatalf("expected no chunks, got %d", len(got))
	}
	segments := []Segment{{Start: 0, End: 1, Text: "   "}}
	if got := chunkSegments("v1", segments, "en", 80, 200); len(got) != 0 {
		t.Fatalf("whitespace-only segments should produce no chunks")
	}
}
