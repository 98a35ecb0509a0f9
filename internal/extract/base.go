package extract

import "github.com/custodia-labs/docsearch/internal/analyze"

// BaseExtractor centralizes the amount/currency/date/entity/keyword
// helpers shared by every type-specific extractor, so the regex-driven
// rules live in exactly one place (internal/analyze)
// and every extractor calls through the same thin wrapper.
type BaseExtractor struct{}

// metadataFrom runs the metadata extractor over text.
func (BaseExtractor) metadataFrom(text string) *analyze.ExtractedMetadata {
	return analyze.ExtractMetadata(text)
}

// applyToSummary folds extracted metadata fields into s, leaving fields
// the extractor itself already set untouched (extractor wins on
// conflict).
func (b BaseExtractor) applyToSummary(s *Summary, text string) {
	m := b.metadataFrom(text)
	if s.Currency == "" {
		s.Currency = m.Currency
	}
	if s.Vendor == "" {
		s.Vendor = m.Vendor
	}
	s.AmountsCents = append(s.AmountsCents, m.AmountsCents...)
	s.Entities = append(s.Entities, m.Entities...)
	s.Keywords = append(s.Keywords, m.Keywords...)
	s.Dates = append(s.Dates, m.Dates...)
}

// applyToChunk folds extracted metadata fields onto a ChunkDraft.
func (b BaseExtractor) applyToChunk(c *ChunkDraft, text string) {
	m := b.metadataFrom(text)
	if c.Vendor == "" {
		c.Vendor = m.Vendor
	}
	if c.Currency == "" {
		c.Currency = m.Currency
	}
	c.AmountsCents = append(c.AmountsCents, m.AmountsCents...)
	c.Entities = append(c.Entities, m.Entities...)
	c.Keywords = append(c.Keywords, m.Keywords...)
	c.Dates = append(c.Dates, m.Dates...)
}

// capSlice truncates a slice to at most n elements.
func capSlice[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
