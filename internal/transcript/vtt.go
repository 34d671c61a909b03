package transcript

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one timed span of speech, seconds from stream start.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// FormatVTT renders segments as a WebVTT document: header, then per
// segment a 1-based cue index, a timing line and the text.
func FormatVTT(segments []Segment) string {
	lines := []string{"WEBVTT", ""}
	for i, seg := range segments {
		lines = append(lines,
			strconv.Itoa(i+1),
			fmt.Sprintf("%s --> %s", FormatTimestamp(seg.Start), FormatTimestamp(seg.End)),
			strings.TrimSpace(seg.Text),
			"",
		)
	}
	return strings.Join(lines, "\n")
}

// FormatTimestamp renders seconds as HH:MM:SS.mmm with a dot separator.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := int(seconds) / 3600
	m := (int(seconds) % 3600) / 60
	s := seconds - float64(h*3600) - float64(m*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}

// ParseVTT extracts segments from WebVTT content. It scans for timing
// lines (`-->`), normalizes comma decimal separators, and joins the
// following non-blank lines into the cue text. Headers and cue index
// lines are skipped.
func ParseVTT(content string) []Segment {
	var segments []Segment
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.Contains(line, "-->") {
			continue
		}
		parts := strings.SplitN(line, "-->", 2)
		start, okStart := parseTimestamp(parts[0])
		// The end part may carry cue settings after the timestamp.
		endField := strings.Fields(strings.TrimSpace(parts[1]))
		if len(endField) == 0 {
			continue
		}
		end, okEnd := parseTimestamp(endField[0])
		if !okStart || !okEnd {
			continue
		}

		var textParts []string
		for j := i + 1; j < len(lines); j++ {
			t := strings.TrimSpace(lines[j])
			if t == "" {
				i = j
				break
			}
			textParts = append(textParts, t)
			i = j
		}
		segments = append(segments, Segment{
			Start: start,
			End:   end,
			Text:  strings.Join(textParts, " "),
		})
	}
	return segments
}

// parseTimestamp accepts HH:MM:SS.mmm and MM:SS.mmm, with either dot or
// comma decimal separators.
func parseTimestamp(raw string) (float64, bool) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if raw == "" {
		return 0, false
	}
	parts := strings.Split(raw, ":")
	var h, m int
	var s float64
	var err error
	switch len(parts) {
	case 3:
		if h, err = strconv.Atoi(parts[0]); err != nil {
			return 0, false
		}
		if m, err = strconv.Atoi(parts[1]); err != nil {
			return 0, false
		}
		if s, err = strconv.ParseFloat(parts[2], 64); err != nil {
			return 0, false
		}
	case 2:
		if m, err = strconv.Atoi(parts[0]); err != nil {
			return 0, false
		}
		if s, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	return float64(h*3600+m*60) + s, true
}
