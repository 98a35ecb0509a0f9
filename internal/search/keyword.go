package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/custodia-labs/docsearch/internal/analyze"
	"github.com/custodia-labs/docsearch/internal/model"
	"github.com/custodia-labs/docsearch/internal/normalize"
)

// fieldWeight is one artifact field's case-insensitive substring match
// score, in the fixed priority order of the keyword strategy's
// artifact-level pass.
type fieldWeight struct {
	field func(*model.Artifact) string
	score float64
	name  string
}

var artifactFieldWeights = []fieldWeight{
	{func(a *model.Artifact) string { return a.FileName }, 1.0, "file_name"},
	{func(a *model.Artifact) string { return strings.Join(a.Keywords, " ") }, 0.95, "keywords"},
	{func(a *model.Artifact) string { return a.Summary }, 0.9, "summary"},
	{func(a *model.Artifact) string { return a.Description }, 0.85, "content"},
	{func(a *model.Artifact) string { return strings.Join(a.Entities, " ") }, 0.8, "entities"},
}

// keywordSearch implements the keyword strategy: an
// artifact-level substring pass, a chunk-level normalized-text
// cascade over a bounded candidate scan widened by the BM25 index's
// ranked recall, and injected exact-keyword/vendor matches, merged by
// artifact id. vendors carries the regex-detected and category-derived
// vendor candidates the caller already computed.
func (s *Service) keywordSearch(ctx context.Context, tenantID, rawQuery string, qa *analyze.QueryAnalysis, qNorm string, qTokens []string, vendors []string, limit int) ([]Result, error) {
	artifacts, _, err := s.Store.ListArtifacts(ctx, tenantID, "", s.ArtifactCandidateLimit)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*model.Artifact, len(artifacts))
	for _, a := range artifacts {
		byID[a.ID] = a
	}

	merged := make(map[string]*Result)
	upsert := func(a *model.Artifact, score float64, mt MatchType, field string) {
		if a == nil {
			return
		}
		cur, ok := merged[a.ID]
		if ok && cur.Score >= score {
			return
		}
		merged[a.ID] = &Result{
			ID:           a.ID,
			FileName:     a.FileName,
			FileKind:     string(a.FileKind),
			Summary:      a.Summary,
			Vendor:       a.Vendor,
			Score:        score,
			MatchType:    mt,
			CreatedAt:    a.CreatedAt,
			MatchedField: field,
		}
	}

	lowerQuery := strings.ToLower(rawQuery)
	for _, a := range artifacts {
		best, bestField := 0.0, ""
		for _, fw := range artifactFieldWeights {
			text := fw.field(a)
			if text == "" {
				continue
			}
			if strings.Contains(strings.ToLower(text), lowerQuery) && fw.score > best {
				best, bestField = fw.score, fw.name
			}
		}
		if best > 0 {
			upsert(a, best, MatchFieldMatch, bestField)
		}
	}

	// mergeChunk scores one chunk through the cascade and lifts it onto
	// its parent, keeping the parent's best chunk as representative.
	mergeChunk := func(c *model.Chunk) {
		score, matchType := scoreChunkKeyword(c, qNorm, qTokens)
		if score <= 0 {
			return
		}
		a := byID[c.ArtifactID]
		if a == nil {
			parent, gerr := s.Store.GetArtifact(ctx, tenantID, c.ArtifactID)
			if gerr != nil || parent == nil {
				return
			}
			byID[c.ArtifactID] = parent
			a = parent
		}

		cur, ok := merged[a.ID]
		if ok && cur.Score >= score {
			return
		}
		merged[a.ID] = &Result{
			ID:             a.ID,
			FileName:       a.FileName,
			FileKind:       string(a.FileKind),
			Summary:        a.Summary,
			Vendor:         a.Vendor,
			Score:          score,
			MatchType:      matchType,
			CreatedAt:      a.CreatedAt,
			MatchedInChunk: c.ID(),
			ChunkPreview:   preview(c),
			pageNumber:     c.Locator.PageNumber,
			rowIndex:       c.Locator.RowIndex,
		}
	}

	chunks, err := s.Store.ListChunks(ctx, tenantID, s.ChunkCandidateLimit)
	if err != nil {
		return nil, err
	}

	scanned := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		scanned[c.ID()] = true
		mergeChunk(c)
	}

	// The BM25 index widens recall beyond the bounded scan: chunks it
	// ranks for the query's terms but that the candidate window missed
	// are fetched and pushed through the same cascade, so BM25 decides
	// what else to look at while the cascade still decides the score.
	if s.BM25 != nil && len(qTokens) > 0 {
		hits, berr := s.BM25.Search(ctx, strings.Join(qTokens, " "), s.ChunkCandidateLimit)
		if berr != nil {
			slog.Warn("keyword search: bm25 recall failed, continuing with scan only", "tenant", tenantID, "error", berr)
		}
		for _, h := range hits {
			if scanned[h.DocID] {
				continue
			}
			scanned[h.DocID] = true
			c, gerr := s.Store.GetChunk(ctx, tenantID, h.DocID)
			if gerr != nil || c == nil || c.TenantID != tenantID {
				continue
			}
			mergeChunk(c)
		}
	}

	for _, id := range qa.IDs {
		for _, a := range artifacts {
			if containsString(a.Keywords, id) {
				upsert(a, 1.0, MatchExactKeyword, "keywords")
			}
		}
	}
	for _, v := range vendors {
		for _, a := range artifacts {
			if a.Vendor == v {
				upsert(a, 0.95, MatchVendor, "vendor")
			}
		}
	}

	return rankAndTruncate(merged, limit), nil
}

// scoreChunkKeyword applies the exact-phrase-then-partial-
// overlap cascade to one chunk's normalized fields.
func scoreChunkKeyword(c *model.Chunk, qNorm string, qTokens []string) (float64, MatchType) {
	if qNorm == "" {
		return 0, ""
	}

	if c.SearchableText != "" && strings.Contains(c.SearchableText, qNorm) {
		return 1.00, MatchExactPhrase
	}
	if c.OCRTextNormalized != "" && strings.Contains(c.OCRTextNormalized, qNorm) {
		return 0.98, MatchExactPhrase
	}
	if c.TextNormalized != "" && strings.Contains(c.TextNormalized, qNorm) {
		return 0.95, MatchExactPhrase
	}
	if desc := normalize.Normalize(c.Description, true); desc != "" && strings.Contains(desc, qNorm) {
		return 0.93, MatchExactPhrase
	}

	if len(qTokens) == 0 {
		return 0, ""
	}

	type overlapField struct {
		text string
		base float64
	}
	fields := []overlapField{
		{c.SearchableText, 0.6},
		{c.OCRTextNormalized, 0.55},
		{c.TextNormalized, 0.5},
	}

	best := 0.0
	for _, f := range fields {
		if f.text == "" {
			continue
		}
		ratio := tokenOverlapRatio(qTokens, normalize.Tokenize(f.text))
		if ratio < 0.25 {
			continue
		}
		score := f.base * ratio
		if score > best {
			best = score
		}
	}
	if best > 0 {
		return best, MatchPartialKeyword
	}
	return 0, ""
}

// tokenOverlapRatio is |qTokens ∩ fieldTokens| / |qTokens|.
func tokenOverlapRatio(qTokens, fieldTokens []string) float64 {
	fieldSet := make(map[string]bool, len(fieldTokens))
	for _, t := range fieldTokens {
		fieldSet[t] = true
	}
	matched := 0
	for _, t := range qTokens {
		if fieldSet[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(qTokens))
}

// preview returns the first 200 characters of a chunk's text or OCR
// text, trailing "…" if truncated.
func preview(c *model.Chunk) string {
	text := c.Text
	if text == "" {
		text = c.OCRText
	}
	r := []rune(text)
	if len(r) <= maxPreviewChars {
		return text
	}
	return string(r[:maxPreviewChars]) + "…"
}

func containsString(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}

// rankAndTruncate sorts merged results by score descending and
// truncates to limit.
func rankAndTruncate(merged map[string]*Result, limit int) []Result {
	out := make([]Result, 0, len(merged))
	for _, r := range merged {
		out = append(out, *r)
	}
	sortResultsDesc(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
