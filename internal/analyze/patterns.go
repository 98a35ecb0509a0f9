// Package analyze extracts structured signals — money, IDs, dates, file
// type hints, entities, and vendors — from free text. It implements both
// the query analyzer (applied to search queries) and the metadata
// extractor (applied to stored chunk text), which share the same
// regex table so the two surfaces never drift apart.
package analyze

import "regexp"

// patternTable holds every regex used by the analyzer, pre-compiled at
// package init and kept in a read-only map keyed by name so logging and
// debugging can refer to a pattern by its name rather than its source.
var patternTable = map[string]*regexp.Regexp{
	"money_symbol_first": regexp.MustCompile(`(?i)([$€£¥]|USD|EUR|GBP|JPY|CZK|Kč)\s?([0-9][0-9., ]*[0-9]|[0-9])`),
	"money_amount_first": regexp.MustCompile(`(?i)([0-9]{1,3}(?:[, ][0-9]{3})+(?:\.[0-9]+)?|[0-9]+(?:[.,][0-9]+)?)\s?(USD|EUR|GBP|JPY|CZK|Kč|dollars?|euros?|pounds?|\$|€|£|¥)`),

	// Labeled IDs allow further -digit segments after the first, so a
	// multi-segment reference like INV-2024-00123 is captured whole
	// instead of truncating at the second hyphen.
	"id_labeled":  regexp.MustCompile(`\b[A-Z]{2,}-\d{4,}(?:-\d+)*\b`),
	"id_bare":     regexp.MustCompile(`\b[A-Z0-9]{8,}\b`),
	"email":       regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`),
	"iban":        regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`),
	"phone":       regexp.MustCompile(`\+?\d[\d\-. ()]{7,}\d`),
	"long_number": regexp.MustCompile(`\b\d{6,}\b`),
	"vat_tax":     regexp.MustCompile(`(?i)\b(VAT|TAX ID|EIN|TIN)[:\s]*([A-Z0-9\-]{6,})`),

	"date_iso":      regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
	"date_us":       regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`),
	"date_eu":       regexp.MustCompile(`\b\d{1,2}\.\d{1,2}\.\d{4}\b`),
	"date_quarter":  regexp.MustCompile(`(?i)\bQ[1-4]\s+\d{4}\b`),
	"date_month_yr": regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?\s+\d{4}\b`),
	"date_relative": regexp.MustCompile(`(?i)\b(last week|this month|next quarter|next year|last month|this week|last year|this quarter)\b`),

	// The vendor phrase is a run of Capitalized words only, so the match
	// stops before trailing lowercase prose ("From: Google LLC, amount…").
	"vendor_label":  regexp.MustCompile(`\b(From|Vendor|Company|Supplier|Provider|Seller|Sold by|Billed by|Issued by):\s*([A-Z][\w&.'\-]*(?: +[A-Z][\w&.'\-]*)*)`),
	"vendor_suffix": regexp.MustCompile(`\b([A-Z][\w&.'\-]*(?: +[A-Z][\w&.'\-]*)* +(?:Inc|LLC|Ltd|Corp|Corporation|GmbH|AG|SA|sro|s\.r\.o\.|a\.s\.)\.?)\b`),

	"capitalized_word": regexp.MustCompile(`\b[A-Z][a-zA-Z]+\b`),
}

// pattern looks up a pre-compiled pattern by name, panicking if it is
// missing — patternTable is a closed, startup-time table, so a missing
// entry is a programming error, not a runtime condition.
func pattern(name string) *regexp.Regexp {
	re, ok := patternTable[name]
	if !ok {
		panic("analyze: unknown pattern " + name)
	}
	return re
}

// fileTypeHints is the fixed closed set of file-type and semantic labels
// the analyzer recognizes in free text.
var fileTypeHints = []string{
	"pdf", "csv", "xlsx", "png", "jpg", "jpeg", "docx", "txt", "json",
	"invoice", "receipt", "contract", "spreadsheet", "document", "image", "photo",
}

// currencySymbols maps recognized currency symbols/codes to ISO codes.
var currencySymbols = map[string]string{
	"$": "USD", "usd": "USD",
	"€": "EUR", "eur": "EUR",
	"£": "GBP", "gbp": "GBP",
	"¥": "JPY", "jpy": "JPY",
	"kč": "CZK", "czk": "CZK",
	"dollar": "USD", "dollars": "USD",
	"euro": "EUR", "euros": "EUR",
	"pound": "GBP", "pounds": "GBP",
}

// defaultCurrency is used when an amount is recognized but no currency
// symbol or code is present.
const defaultCurrency = "USD"

// stopWords is the short closed stop-word list shared with the
// suggestion index so both keyword surfaces agree on
// what counts as a meaningful word.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "this": true, "that": true, "with": true, "from": true,
	"have": true, "has": true,
}
