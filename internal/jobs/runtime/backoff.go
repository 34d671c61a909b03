package runtime

import (
	"strconv"
	"strings"
	"time"
)

// DefaultBackoff is the retry ladder used when the env override is
// missing or malformed.
var DefaultBackoff = []time.Duration{30 * time.Second, 120 * time.Second, 300 * time.Second}

// ParseBackoff parses a comma-separated list of seconds ("30,120,300")
// into a retry ladder. Any malformed entry falls back wholesale.
func ParseBackoff(spec string) []time.Duration {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return DefaultBackoff
	}
	parts := strings.Split(spec, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		secs, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || secs < 0 {
			return DefaultBackoff
		}
		out = append(out, time.Duration(secs)*time.Second)
	}
	if len(out) == 0 {
		return DefaultBackoff
	}
	return out
}
