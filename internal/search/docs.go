package search

import (
	"strings"
	"time"

	"github.com/yungbote/streem-backend/internal/platform/envutil"
	"github.com/yungbote/streem-backend/internal/repos"
	"github.com/yungbote/streem-backend/internal/types"
)

// IndexThresholds gates which catalog rows make it into the videos doc.
// Weaker associations stay queryable in Postgres only.
type IndexThresholds struct {
	Topic  float64
	Entity float64
	Tag    float64
}

func ThresholdsFromEnv() IndexThresholds {
	return IndexThresholds{
		Topic:  envutil.Float("OPENSEARCH_TOPIC_TH", 0.75),
		Entity: envutil.Float("OPENSEARCH_ENTITY_TH", 0.75),
		Tag:    envutil.Float("OPENSEARCH_TAG_TH", 0.75),
	}
}

// BuildVideoDoc assembles the full videos-index document. embedding may be
// nil, thumbnailURL empty.
func BuildVideoDoc(video *types.Video, summary string, catalog *repos.VideoCatalog, embedding []float32, thumbnailURL string, th IndexThresholds) map[string]any {
	if catalog == nil {
		catalog = &repos.VideoCatalog{}
	}

	duration := 0.0
	if video.DurationSeconds != nil {
		duration = *video.DurationSeconds
	}

	doc := map[string]any{
		"title":            strings.TrimSpace(video.Title),
		"description":      strings.TrimSpace(video.Description),
		"short_summary":    strings.TrimSpace(summary),
		"duration_seconds": duration,
		"created_at":       video.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":       video.UpdatedAt.UTC().Format(time.RFC3339),
		"user_id":          video.UserID.String(),
		"status":           video.Status,
		"topics":           nestedRefs(catalog.Topics, th.Topic),
		"entities":         nestedRefs(catalog.Entities, th.Entity),
		"tags":             nestedRefs(catalog.Tags, th.Tag),
	}
	if ct := strings.TrimSpace(video.ContentType); ct != "" {
		doc["content_type"] = ct
	}
	if lang := strings.TrimSpace(video.Language); lang != "" {
		doc["language"] = lang
	}
	if thumbnailURL != "" {
		doc["thumbnail_url"] = thumbnailURL
	}
	if len(embedding) > 0 {
		doc["embedding"] = embedding
	}
	return doc
}

// BuildMetadataDoc is the partial upsert used before enrichment has run.
func BuildMetadataDoc(video *types.Video, thumbnailURL string) map[string]any {
	duration := 0.0
	if video.DurationSeconds != nil {
		duration = *video.DurationSeconds
	}
	doc := map[string]any{
		"title":            strings.TrimSpace(video.Title),
		"description":      strings.TrimSpace(video.Description),
		"user_id":          video.UserID.String(),
		"status":           video.Status,
		"duration_seconds": duration,
		"created_at":       video.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":       video.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if thumbnailURL != "" {
		doc["thumbnail_url"] = thumbnailURL
	}
	return doc
}

func nestedRefs(refs []repos.CatalogRef, threshold float64) []map[string]any {
	out := make([]map[string]any, 0, len(refs))
	for _, ref := range refs {
		if ref.Score < threshold {
			continue
		}
		canonical := strings.ToLower(strings.TrimSpace(ref.CanonicalName))
		if canonical == "" {
			continue
		}
		out = append(out, map[string]any{
			"id":             ref.ID.String(),
			"name":           strings.TrimSpace(ref.Name),
			"canonical_name": canonical,
			"weight":         ref.Score,
		})
	}
	return out
}

// EmbeddingFromSource pulls the stored embedding out of a hit source.
func EmbeddingFromSource(source map[string]any) []float64 {
	raw, ok := source["embedding"].([]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return nil
		}
		out = append(out, f)
	}
	return out
}

// CanonicalTokens collects lowercase entity + tag canonical names from a hit
// source, the feature set for MMR similarity.
func CanonicalTokens(source map[string]any) map[string]bool {
	tokens := map[string]bool{}
	for _, field := range []string{"entities", "tags"} {
		items, ok := source[field].([]any)
		if !ok {
			continue
		}
		for _, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			val, _ := obj["canonical_name"].(string)
			if val == "" {
				val, _ = obj["name"].(string)
			}
			val = strings.ToLower(strings.TrimSpace(val))
			if val != "" {
				tokens[val] = true
			}
		}
	}
	return tokens
}
