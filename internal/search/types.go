// Package search implements the Search Service: query
// classification and routing among keyword, semantic, hybrid, and
// compound strategies, result merging, and deep-link attachment.
package search

import "time"

// Mode selects a search strategy. ModeAuto defers to the classifier.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeSemantic Mode = "semantic"
	ModeKeyword  Mode = "keyword"
	ModeHybrid   Mode = "hybrid"
	ModeCompound Mode = "compound"
)

// MatchType labels how a result was found, surfaced to callers so UIs
// can explain a hit.
type MatchType string

const (
	MatchExactPhrase      MatchType = "exact_phrase"
	MatchExactKeyword     MatchType = "exact_keyword"
	MatchVendor           MatchType = "vendor"
	MatchPartialKeyword   MatchType = "partial_keyword"
	MatchFieldMatch       MatchType = "field_match"
	MatchSemanticDocument MatchType = "semantic_document"
	MatchSemanticChunk    MatchType = "semantic_chunk"
	MatchHybrid           MatchType = "hybrid"
)

// Request is one call to Search.
type Request struct {
	Query    string
	TenantID string
	Limit    int
	Mode     Mode
}

// Result is one ranked artifact match.
type Result struct {
	ID             string
	FileName       string
	FileKind       string
	Summary        string
	Vendor         string
	Score          float64
	MatchType      MatchType
	CreatedAt      time.Time
	OpenURL        string
	MatchedInChunk string
	ChunkPreview   string
	MatchedField   string

	// pageNumber and rowIndex carry the matched chunk's locator so
	// attachDeepLinks can build a page- or row-qualified open_url; they
	// are not part of the external result shape.
	pageNumber *int
	rowIndex   *int
}

// Response is the full outcome of a Search call.
type Response struct {
	Query          string
	QueryAnalysis  *queryAnalysisView
	Mode           Mode
	Results        []Result
	Total          int
	Error          string
}

// queryAnalysisView is the externally visible projection of the query
// analysis result, decoupled from internal/analyze's own type so the
// search response schema does not change if the analyzer's internals do.
type queryAnalysisView struct {
	Money     *moneyView `json:"money,omitempty"`
	IDs       []string   `json:"ids,omitempty"`
	Dates     []string   `json:"dates,omitempty"`
	FileTypes []string   `json:"file_types,omitempty"`
	Entities  []string   `json:"entities,omitempty"`
	Vendors   []string   `json:"vendors,omitempty"`
}

type moneyView struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

const maxPreviewChars = 200
