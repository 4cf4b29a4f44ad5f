package plan

import "strings"

// Suggest returns up to limit labels matching input. Prefix matches come
// before substring matches; an empty input returns the plan head.
func Suggest(labels []string, input string, limit int) []string {
	query := strings.ToLower(strings.TrimSpace(input))
	var prefix, contains []string
	for _, label := range labels {
		lower := strings.ToLower(label)
		switch {
		case query == "" || strings.HasPrefix(lower, query):
			prefix = append(prefix, label)
		case strings.Contains(lower, query):
			contains = append(contains, label)
		}
	}
	out := append(prefix, contains...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
