package search

import (
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[^\w\s']`)

// Tokenize lowercases the query and strips punctuation.
func Tokenize(q string) []string {
	cleaned := tokenPattern.ReplaceAllString(strings.ToLower(q), " ")
	return strings.Fields(cleaned)
}

// BuildRecallQuery is the OS-lane recall body: BM25 over metadata with
// watched videos excluded and only ready videos eligible.
func BuildRecallQuery(queryText string, excludeIDs []string, size int) map[string]any {
	mustNot := []any{}
	if len(excludeIDs) > 0 {
		mustNot = append(mustNot, map[string]any{"ids": map[string]any{"values": excludeIDs}})
	}
	return map[string]any{
		"size":             size,
		"track_total_hits": false,
		"_source": []string{
			"title", "description", "content_type", "language",
			"topics", "entities", "tags",
			"duration_seconds", "created_at", "updated_at",
			"thumbnail_url", "status", "embedding",
		},
		"query": map[string]any{
			"bool": map[string]any{
				"must_not": mustNot,
				"should": []any{
					map[string]any{
						"multi_match": map[string]any{
							"query":  queryText,
							"fields": []string{"title^3", "description^2"},
							"type":   "best_fields",
						},
					},
					nestedNameMatch("tags", queryText, 2.0),
					nestedNameMatch("entities", queryText, 2.0),
					nestedNameMatch("topics", queryText, 1.0),
				},
				"minimum_should_match": 1,
				"filter": []any{
					map[string]any{"term": map[string]any{"status": "ready"}},
				},
			},
		},
	}
}

// BuildMetaQuery is the federated-search metadata body.
func BuildMetaQuery(q string, limit, offset int) map[string]any {
	return map[string]any{
		"from": offset,
		"size": limit,
		"query": map[string]any{
			"bool": map[string]any{
				"should": []any{
					map[string]any{
						"multi_match": map[string]any{
							"query":  q,
							"fields": []string{"title^1", "description^1"},
							"type":   "best_fields",
						},
					},
					nestedNameMatch("entities", q, 1.0),
					nestedNameMatch("tags", q, 1.0),
					nestedNameMatch("topics", q, 1.0),
				},
				"minimum_should_match": 1,
				"filter": []any{
					map[string]any{"term": map[string]any{"status": "ready"}},
				},
			},
		},
		"highlight": map[string]any{
			"pre_tags":  []string{"<em>"},
			"post_tags": []string{"</em>"},
			"fields": map[string]any{
				"title":         map[string]any{},
				"description":   map[string]any{},
				"entities.name": map[string]any{},
				"tags.name":     map[string]any{},
				"topics.name":   map[string]any{},
			},
		},
	}
}

// BuildTranscriptPhraseQuery is the strict first pass over transcript text.
func BuildTranscriptPhraseQuery(q string, limit int) map[string]any {
	return map[string]any{
		"size": limit,
		"query": map[string]any{
			"match_phrase": map[string]any{
				"text": map[string]any{
					"query": q,
					"slop":  1,
				},
			},
		},
		"highlight": transcriptHighlight(),
	}
}

// TranscriptMSM is the minimum_should_match ladder for the fuzzy fallback:
// short queries must match fully, longer ones degrade gracefully.
func TranscriptMSM(wordCount int) string {
	switch {
	case wordCount <= 3:
		return "100%"
	case wordCount == 4:
		return "75%"
	default:
		return "60%"
	}
}

// BuildTranscriptFuzzyQuery is the fallback when the phrase pass finds
// nothing.
func BuildTranscriptFuzzyQuery(q string, limit int) map[string]any {
	tokens := Tokenize(q)
	return map[string]any{
		"size": limit,
		"query": map[string]any{
			"match": map[string]any{
				"text": map[string]any{
					"query":                q,
					"operator":             "or",
					"minimum_should_match": TranscriptMSM(len(tokens)),
					"auto_generate_synonyms_phrase_query": false,
				},
			},
		},
		"highlight": transcriptHighlight(),
	}
}

func transcriptHighlight() map[string]any {
	return map[string]any{
		"pre_tags":  []string{"<em>"},
		"post_tags": []string{"</em>"},
		"fields": map[string]any{
			"text": map[string]any{
				"number_of_fragments": 1,
				"fragment_size":       180,
			},
		},
	}
}

func nestedNameMatch(path, query string, boost float64) map[string]any {
	return map[string]any{
		"nested": map[string]any{
			"path":       path,
			"score_mode": "max",
			"query": map[string]any{
				"match": map[string]any{
					path + ".name": map[string]any{
						"query":    query,
						"operator": "or",
					},
				},
			},
			"boost": boost,
		},
	}
}
