package analyze

import "strings"

// findVendor runs the two-pattern heuristic vendor detector: a label
// pattern ("From: Acme Inc") takes precedence over
// the bare legal-suffix pattern ("Acme Inc. issued..."). The result is
// trimmed, trailing punctuation is removed, and it is lowercased.
func findVendor(text string) string {
	if m := pattern("vendor_label").FindStringSubmatch(text); m != nil {
		return cleanVendor(m[2])
	}
	if m := pattern("vendor_suffix").FindStringSubmatch(text); m != nil {
		return cleanVendor(m[1])
	}
	return ""
}

// legalSuffixes are dropped from the end of a detected vendor so
// "Google LLC" and "Google" normalize to the same vendor key.
var legalSuffixes = []string{
	"s.r.o", "a.s", "corporation", "gmbh", "corp", "inc", "llc", "ltd",
	"ag", "sa", "sro",
}

func cleanVendor(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".,;: \t")
	s = strings.ToLower(s)
	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(s, " "+suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			s = strings.TrimRight(s, ".,;: \t")
			break
		}
	}
	return s
}
