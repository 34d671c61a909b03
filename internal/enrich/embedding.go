package enrich

import (
	"fmt"
	"strings"
)

func pipeList(names []string) string {
	values := make([]string, 0, len(names))
	for _, name := range names {
		if v := strings.TrimSpace(name); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return "n/a"
	}
	return strings.Join(values, " | ")
}

// BuildEmbeddingText assembles the fixed-layout text whose embedding is
// stored alongside the summary. The layout is load-bearing: changing it
// invalidates every stored vector.
func BuildEmbeddingText(title, description, summary string, topicNames, entityNames, tagNames []string, contentType, language string) string {
	if strings.TrimSpace(contentType) == "" {
		contentType = "other"
	}
	if strings.TrimSpace(language) == "" {
		language = "en"
	}
	lines := []string{
		fmt.Sprintf("Title: %s", strings.TrimSpace(title)),
		"",
		fmt.Sprintf("Description: %s", strings.TrimSpace(description)),
		"",
		fmt.Sprintf("Summary: %s", strings.TrimSpace(summary)),
		"",
		fmt.Sprintf("Topics: %s", pipeList(topicNames)),
		fmt.Sprintf("Entities: %s", pipeList(entityNames)),
		fmt.Sprintf("Tags: %s", pipeList(tagNames)),
		"",
		fmt.Sprintf("Metadata: content_type=%s, language=%s", contentType, language),
	}
	return strings.Join(lines, "\n")
}
