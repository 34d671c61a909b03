package transcript

import (
	"strings"
	"time"

	"github.com/yungbote/streem-backend/internal/platform/envutil"
)

// Chunk is a merged run of segments sized for search indexing.
type Chunk struct {
	VideoID      string    `json:"video_id"`
	Text         string    `json:"text"`
	StartSeconds float64   `json:"start_seconds"`
	EndSeconds   float64   `json:"end_seconds"`
	Lang         string    `json:"lang"`
	CreatedAt    time.Time `json:"created_at"`
}

// ChunkSegments merges consecutive segments greedily into chunks between
// min and max characters. A chunk is emitted once it reaches min; a
// segment that would push the current chunk past max flushes it first.
func ChunkSegments(videoID string, segments []Segment, lang string) []Chunk {
	minChars := envutil.Int("TRANSCRIPT_CHUNK_MIN_CHARS", 80)
	maxChars := envutil.Int("TRANSCRIPT_CHUNK_MAX_CHARS", 200)
	return chunkSegments(videoID, segments, lang, minChars, maxChars)
}

func chunkSegments(videoID string, segments []Segment, lang string, minChars, maxChars int) []Chunk {
	if maxChars <= 0 {
		maxChars = 200
	}
	if minChars <= 0 || minChars > maxChars {
		minChars = maxChars / 2
	}

	now := time.Now().UTC()
	var chunks []Chunk
	var cur strings.Builder
	var curStart, curEnd float64
	started := false

	flush := func() {
		text := strings.TrimSpace(cur.String())
		if text != "" {
			chunks = append(chunks, Chunk{
				VideoID:      videoID,
				Text:         text,
				StartSeconds: curStart,
				EndSeconds:   curEnd,
				Lang:         lang,
				CreatedAt:    now,
			})
		}
		cur.Reset()
		started = false
	}

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if started && cur.Len()+1+len(text) > maxChars {
			flush()
		}
		if !started {
			curStart = seg.Start
			started = true
		} else {
			cur.WriteString(" ")
		}
		cur.WriteString(text)
		curEnd = seg.End

		if cur.Len() >= minChars {
			flush()
		}
	}
	flush()
	return chunks
}
