package analyze

import "strings"

// ExtractedMetadata is the structured record the extractor attaches to a chunk (or
// artifact) from its raw text: keywords, currency, amounts, vendor,
// entities, and an optional file-type guess.
type ExtractedMetadata struct {
	Keywords     []string
	Currency     string
	AmountsCents []int64
	Vendor       string
	Entities     []string
	Dates        []string
	FileType     string
}

// ExtractMetadata runs the same regex passes as Analyze plus a richer
// keyword pass (long numbers, tax/VAT IDs, pattern-matched IDs) and the
// heuristic vendor detector. It is applied to stored chunk text by the
// ingestion orchestrator and the reindex orchestrator.
func ExtractMetadata(text string) *ExtractedMetadata {
	m := &ExtractedMetadata{}

	moneys := findMoney(text)
	if len(moneys) > 0 {
		m.Currency = moneys[0].Currency
		for _, mo := range moneys {
			m.AmountsCents = append(m.AmountsCents, mo.AmountCents)
		}
	}

	m.Vendor = findVendor(text)
	m.Entities = findEntities(text)
	m.Dates = findDates(text)

	types := findFileTypes(text)
	if len(types) > 0 {
		m.FileType = types[0]
	}

	m.Keywords = extractKeywords(text)

	return m
}

// extractKeywords collects exact keyword candidates: IDs, emails, IBANs,
// phone numbers, long numbers, and VAT/tax IDs, deduplicated in
// first-seen order.
func extractKeywords(text string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, id := range findIDs(text) {
		add(id)
	}
	for _, p := range findPhones(text) {
		add(p)
	}
	for _, n := range pattern("long_number").FindAllString(text, -1) {
		add(n)
	}
	for _, m := range pattern("vat_tax").FindAllStringSubmatch(text, -1) {
		add(m[2])
	}

	return out
}
