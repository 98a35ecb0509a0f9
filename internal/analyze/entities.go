package analyze

import "strings"

// findEntities returns capitalized tokens that are not the first word of
// text (position 0 is excluded because sentence-initial capitalization is
// not a reliable entity signal).
func findEntities(text string) []string {
	fields := strings.Fields(text)
	var out []string
	seen := map[string]bool{}
	for i, w := range fields {
		if i == 0 {
			continue
		}
		trimmed := strings.Trim(w, ".,;:!?()[]{}\"'")
		if trimmed == "" {
			continue
		}
		r := []rune(trimmed)
		if r[0] >= 'A' && r[0] <= 'Z' {
			if !seen[trimmed] {
				seen[trimmed] = true
				out = append(out, trimmed)
			}
		}
	}
	return out
}
