package enrich

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yungbote/streem-backend/internal/repos"
)

type Metadata struct {
	ContentType string `json:"content_type"`
	Language    string `json:"language"`
}

type TopicItem struct {
	Name          string  `json:"name"`
	CanonicalName string  `json:"canonical_name"`
	Prominence    float64 `json:"prominence"`
}

type EntityItem struct {
	Name          string  `json:"name"`
	CanonicalName string  `json:"canonical_name"`
	Importance    float64 `json:"importance"`
	EntityType    string  `json:"entity_type,omitempty"`
}

type TagItem struct {
	Tag    string  `json:"tag"`
	Weight float64 `json:"weight"`
}

// Result is the normalized extraction output.
type Result struct {
	Metadata     Metadata     `json:"metadata"`
	ShortSummary string       `json:"short_summary"`
	Topics       []TopicItem  `json:"topics"`
	Entities     []EntityItem `json:"entities"`
	Tags         []TagItem    `json:"tags"`
}

// DecodeResult parses model output tolerantly: a direct unmarshal first,
// then a greedy first-{ to last-} retry for output wrapped in prose or
// code fences.
func DecodeResult(text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty extraction output")
	}

	var res Result
	if err := json.Unmarshal([]byte(text), &res); err == nil {
		return &res, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in extraction output")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &res); err != nil {
		return nil, fmt.Errorf("decode extraction output: %w", err)
	}
	return &res, nil
}

// Canonicalize lowercases and collapses internal whitespace to underscores.
func Canonicalize(s string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	return strings.Join(fields, "_")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Normalize cleans an extraction in place: canonical names normalized,
// duplicates dropped (first wins), weights clamped, empty names removed.
func (r *Result) Normalize() {
	r.ShortSummary = strings.TrimSpace(r.ShortSummary)
	r.Metadata.ContentType = strings.ToLower(strings.TrimSpace(r.Metadata.ContentType))
	r.Metadata.Language = strings.ToLower(strings.TrimSpace(r.Metadata.Language))

	seen := map[string]bool{}
	topics := r.Topics[:0]
	for _, t := range r.Topics {
		t.Name = strings.TrimSpace(t.Name)
		canonical := Canonicalize(t.CanonicalName)
		if canonical == "" {
			canonical = Canonicalize(t.Name)
		}
		if t.Name == "" || canonical == "" || seen[canonical] {
			continue
		}
		seen[canonical] = true
		t.CanonicalName = canonical
		t.Prominence = clamp01(t.Prominence)
		topics = append(topics, t)
	}
	r.Topics = topics

	seen = map[string]bool{}
	entities := r.Entities[:0]
	for _, e := range r.Entities {
		e.Name = strings.TrimSpace(e.Name)
		canonical := Canonicalize(e.CanonicalName)
		if canonical == "" {
			canonical = Canonicalize(e.Name)
		}
		if e.Name == "" || canonical == "" || seen[canonical] {
			continue
		}
		seen[canonical] = true
		e.CanonicalName = canonical
		e.Importance = clamp01(e.Importance)
		e.EntityType = strings.ToLower(strings.TrimSpace(e.EntityType))
		entities = append(entities, e)
	}
	r.Entities = entities

	seen = map[string]bool{}
	tags := r.Tags[:0]
	for _, g := range r.Tags {
		g.Tag = strings.TrimSpace(g.Tag)
		canonical := Canonicalize(g.Tag)
		if g.Tag == "" || canonical == "" || seen[canonical] {
			continue
		}
		seen[canonical] = true
		g.Weight = clamp01(g.Weight)
		tags = append(tags, g)
	}
	r.Tags = tags
}

// Catalog converts the extraction into catalog refs for persistence.
func (r *Result) Catalog() repos.VideoCatalog {
	catalog := repos.VideoCatalog{
		Topics:   make([]repos.CatalogRef, 0, len(r.Topics)),
		Entities: make([]repos.CatalogRef, 0, len(r.Entities)),
		Tags:     make([]repos.CatalogRef, 0, len(r.Tags)),
	}
	for _, t := range r.Topics {
		catalog.Topics = append(catalog.Topics, repos.CatalogRef{
			Name:          t.Name,
			CanonicalName: t.CanonicalName,
			Score:         t.Prominence,
		})
	}
	for _, e := range r.Entities {
		catalog.Entities = append(catalog.Entities, repos.CatalogRef{
			Name:          e.Name,
			CanonicalName: e.CanonicalName,
			EntityType:    e.EntityType,
			Score:         e.Importance,
		})
	}
	for _, g := range r.Tags {
		catalog.Tags = append(catalog.Tags, repos.CatalogRef{
			Name:          g.Tag,
			CanonicalName: Canonicalize(g.Tag),
			Score:         g.Weight,
		})
	}
	return catalog
}
