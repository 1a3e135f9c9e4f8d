package models

import "strings"

// NormalizeKeywords trims keywords and drops empty and repeated ones,
// keeping first-seen order. A positive limit caps the result.
func NormalizeKeywords(keywords []string, limit int) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
