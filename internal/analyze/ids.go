package analyze

import "strings"

// findIDs returns exact-ID candidates: labeled IDs ([A-Z]{2,}-\d{4,}
// plus any further -digit segments),
// bare alphanumeric IDs ([A-Z0-9]{8,}), emails, and IBANs, deduplicated
// and in first-seen order.
func findIDs(text string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, m := range pattern("id_labeled").FindAllString(text, -1) {
		add(m)
	}
	for _, m := range pattern("id_bare").FindAllString(text, -1) {
		if !seen[m] {
			add(m)
		}
	}
	for _, m := range pattern("email").FindAllString(text, -1) {
		add(m)
	}
	for _, m := range pattern("iban").FindAllString(text, -1) {
		add(m)
	}
	return out
}

// findPhones returns phone-like digit runs with optional leading "+" and
// separators.
func findPhones(text string) []string {
	var out []string
	for _, m := range pattern("phone").FindAllString(text, -1) {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, m)
		if len(digits) >= 7 {
			out = append(out, m)
		}
	}
	return out
}
