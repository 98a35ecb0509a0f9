package analyze

import "strings"

// findFileTypes returns every file-type hint from the closed set
// (fileTypeHints) that appears as a whole word in text, in the order the
// set is declared.
func findFileTypes(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, hint := range fileTypeHints {
		if containsWord(lower, hint) {
			out = append(out, hint)
		}
	}
	return out
}

// containsWord reports whether word appears in s bounded by non-letter
// characters (or the string edges), avoiding substring false positives
// like "jpg" inside "jpgx".
func containsWord(s, word string) bool {
	idx := 0
	for {
		pos := strings.Index(s[idx:], word)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(word)
		beforeOK := start == 0 || !isLetter(s[start-1])
		afterOK := end == len(s) || !isLetter(s[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
