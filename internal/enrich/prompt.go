package enrich

import (
	"fmt"
	"strings"

	"github.com/yungbote/streem-backend/internal/platform/envutil"
	"github.com/yungbote/streem-backend/internal/transcript"
)

// TranscriptClipChars caps how much transcript text reaches the model.
func TranscriptClipChars() int {
	return envutil.Int("LLM_TRANSCRIPT_CLIP_CHARS", 60000)
}

// BuildTranscriptText joins chunk texts up to maxChars, clipping at a
// whitespace boundary so no chunk is cut mid-word.
func BuildTranscriptText(chunks []transcript.Chunk, maxChars int) string {
	var b strings.Builder
	total := 0
	for _, chunk := range chunks {
		text := strings.TrimSpace(chunk.Text)
		if text == "" {
			continue
		}
		need := len(text)
		if b.Len() > 0 {
			need++
		}
		if total+need > maxChars {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
		total += need
	}
	return b.String()
}

const systemPrompt = `You are an expert at analyzing video transcripts to extract structured information for a video recommendation system. Return valid JSON only.`

const promptTemplate = `## Your Task

**STEP 1:** Determine the content_type first — this guides your entire extraction strategy.

**STEP 2:** Based on the content type, extract:
- **Summary** — objective 2-4 sentence description
- **Topics** — concrete subjects/skills covered
- **Entities** — named things mentioned (people, orgs, products, places, concepts)
- **Tags** — searchable labels derived from topics and entities

# STEP 1: Content Type Classification

Classify the video's PRIMARY purpose:

**entertainment** — storytelling or artistic content: sitcoms, web series, vlogs, let's plays, reaction videos, performances.
**educational** — teaching skills or explaining concepts: tutorials, recipes, courses, lectures, DIY, explainers.
**review** — evaluating or comparing products/services/media: tech reviews, unboxings, comparisons, buying guides.
**interview** — conversation-driven content: podcasts, one-on-one interviews, panel discussions, AMAs.
**news** — reporting or documenting: breaking news, documentaries, investigative journalism, event coverage.
**lifestyle** — personal development and wellness: motivational content, productivity, habit building, meditation.
**other** — anything that does not fit, or insufficient data: pure music videos, ASMR, raw compilations.

# STEP 2: Extract Structured Information

## 1. Summary (short_summary)
- 2-4 sentences maximum, objective and factual, primary content only, no marketing language.

## 2. Topics (topics)
Main subjects, skills, or themes the video focuses on, at a categorical level
(not episode-specific details). Use specific terms when they aid
categorization ("gradient descent" over "AI"). 1-5 typical.
- prominence (0.0-1.0): share of video focus. 0.8-1.0 primary; 0.5-0.7
  significant secondary; 0.2-0.4 minor; below 0.2 omit.
- name: display-friendly ("Pasta Making"); canonical_name: lowercase
  normalized ("pasta making").

## 3. Entities (entities)
Specific instances central to the video: particular people, organizations,
products, places, theories, events, key concepts.
- importance (0.0-1.0): 0.8-1.0 main subject; 0.5-0.7 significant role;
  0.3-0.4 mentioned with context; below 0.3 omit.
- entity_type: person, organization, product, place, concept, event, other.

## 4. Tags (tags)
Searchable labels derived from topics (generalized into broader categories)
and entities (categorical attributes). Lowercase hyphenated format
("machine-learning"). Aim for 8-15 tags.
- weight (0.0-1.0): 0.8-1.0 core; 0.5-0.7 secondary; 0.3-0.4 tertiary;
  below 0.3 omit.

## 5. Language
ISO 639-1 code of the transcript's primary language (en, es, fr, ...).

## Output Format

Return valid JSON only. Output metadata FIRST since content_type guides all
other extraction:

{
  "metadata": {"content_type": "educational|entertainment|review|interview|news|lifestyle|other", "language": "en"},
  "short_summary": "2-4 sentences",
  "topics": [{"name": "Display Name", "canonical_name": "lowercase normalized", "prominence": 0.0}],
  "entities": [{"name": "Display Name", "canonical_name": "lowercase normalized", "importance": 0.0, "entity_type": "person"}],
  "tags": [{"tag": "lowercase-hyphenated", "weight": 0.0}]
}

## Now Process This Video

**Title:** %s

**Description:** %s

**Transcript:**
%s

**End of Transcript**

Remember: determine content_type first, extract with that context, return only JSON.`

func BuildPrompt(title, description, transcriptText string) string {
	return fmt.Sprintf(promptTemplate,
		strings.TrimSpace(title),
		strings.TrimSpace(description),
		strings.TrimSpace(transcriptText),
	)
}
