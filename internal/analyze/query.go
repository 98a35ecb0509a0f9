package analyze

import "strings"

// QueryAnalysis is the structured record produced by Analyze: the money
// amount (if any), exact IDs, date spans, file-type hints, entities, and
// the query text with money/ID/IBAN runs removed.
type QueryAnalysis struct {
	Money     *Money
	IDs       []string
	Dates     []string
	FileTypes []string
	Entities  []string
	CleanText string

	// originalText is kept so Vendors() can re-run the vendor heuristic
	// against the untouched input; CleanText has money/ID runs stripped,
	// which can remove part of a trailing "From: X" label.
	originalText string
}

// Vendors reports any vendor mention recognized in the original query
// text, used by the search router to choose the hybrid strategy and by
// the keyword strategy's vendor-match injection.
func (a *QueryAnalysis) Vendors() []string {
	if a == nil {
		return nil
	}
	if v := findVendor(a.originalText); v != "" {
		return []string{v}
	}
	return nil
}

// Analyze extracts money, IDs, dates, file-type hints, and entities from
// one free-text string. It never fails: unknown or
// ambiguous input yields an empty record with CleanText equal to the
// (whitespace-collapsed) original.
func Analyze(text string) *QueryAnalysis {
	a := &QueryAnalysis{originalText: text}

	moneys := findMoney(text)
	if len(moneys) > 0 {
		m := moneys[0]
		a.Money = &m
	}

	a.IDs = findIDs(text)
	a.Dates = findDates(text)
	a.FileTypes = findFileTypes(text)
	a.Entities = findEntities(text)
	a.CleanText = cleanText(text)

	return a
}

// cleanText removes money and ID/IBAN runs from text, collapses
// whitespace, and falls back to the original if the result is empty.
func cleanText(text string) string {
	cleaned := text
	for _, re := range []string{"money_symbol_first", "money_amount_first", "id_labeled", "iban"} {
		cleaned = pattern(re).ReplaceAllString(cleaned, " ")
	}
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return text
	}
	return cleaned
}
