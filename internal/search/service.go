package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/custodia-labs/docsearch/internal/analyze"
	"github.com/custodia-labs/docsearch/internal/config"
	"github.com/custodia-labs/docsearch/internal/model"
	"github.com/custodia-labs/docsearch/internal/normalize"
	"github.com/custodia-labs/docsearch/internal/store"
)

// EmbedFunc embeds free text into a query vector, normally
// internal/embedclient.Client.Embed.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// VectorStores resolves the per-tenant artifact and chunk vector
// indices. internal/app constructs one HNSW-backed pair per tenant and
// supplies this lookup at wiring time.
type VectorStores interface {
	ArtifactStore(tenantID string) (store.VectorStore, error)
	ChunkStore(tenantID string) (store.VectorStore, error)
}

// Service implements the search pipeline over a metadata store, a pair of per-tenant
// vector indices, and an embedding function for queries.
type Service struct {
	Store   store.MetadataStore
	Vectors VectorStores
	Embed   EmbedFunc
	Tenancy config.TenancyConfig

	// BM25 widens the keyword strategy's recall beyond the bounded
	// metadata-store scan. Optional: nil skips the recall pass and the
	// strategy runs on the scan alone.
	BM25 store.BM25Index

	// CandidateLimit bounds how many artifacts/chunks the keyword
	// strategy scans per call.
	ArtifactCandidateLimit int
	ChunkCandidateLimit    int
}

// NewService builds a Service with the default candidate bounds.
func NewService(st store.MetadataStore, vectors VectorStores, embed EmbedFunc, tenancy config.TenancyConfig) *Service {
	return &Service{
		Store:                  st,
		Vectors:                vectors,
		Embed:                  embed,
		Tenancy:                tenancy,
		ArtifactCandidateLimit: 1000,
		ChunkCandidateLimit:    1000,
	}
}

// Search classifies, normalizes, and executes query against tenantID,
// returning up to limit ranked results. It never returns an error to
// the caller: any internal failure yields an empty result set with an
// error annotation on the response.
func (s *Service) Search(ctx context.Context, req Request) *Response {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	if strings.TrimSpace(req.Query) == "" {
		return &Response{Query: req.Query, Mode: req.Mode, Results: []Result{}}
	}

	qa := analyze.Analyze(req.Query)
	qNorm := normalize.NormalizeQuery(req.Query)
	qTokens := normalize.Tokenize(qNorm)

	categories, err := s.Store.ListSearchCategories(ctx, req.TenantID)
	if err != nil {
		slog.Warn("list search categories failed, continuing without category signal", "tenant", req.TenantID, "error", err)
		categories = nil
	}

	// Vendor candidates come from the regex detector and, when the
	// tenant's vendor category recognizes the query as vendor-dominant,
	// from the query's leftover (non-trigger) words: "invoice from
	// google" carries no regex-visible vendor, but "google" is still the
	// vendor to match against.
	vendors := append(qa.Vendors(), categoryVendorCandidates(qNorm, qTokens, categories)...)

	mode := req.Mode
	if mode == "" || mode == ModeAuto {
		mode = classify(qa, qNorm, qTokens, categories)
	}

	resp := &Response{
		Query:         req.Query,
		QueryAnalysis: toQueryAnalysisView(qa),
		Mode:          mode,
	}

	var results []Result

	switch mode {
	case ModeKeyword, ModeCompound:
		results, err = s.keywordSearch(ctx, req.TenantID, req.Query, qa, qNorm, qTokens, vendors, req.Limit)
	case ModeSemantic:
		results, err = s.semanticSearch(ctx, req.TenantID, req.Query, req.Limit)
	case ModeHybrid:
		results, err = s.hybridSearch(ctx, req.TenantID, req.Query, qa, qNorm, qTokens, vendors, req.Limit)
	default:
		results, err = s.keywordSearch(ctx, req.TenantID, req.Query, qa, qNorm, qTokens, vendors, req.Limit)
	}

	if err != nil {
		slog.Warn("search failed", "tenant", req.TenantID, "mode", mode, "error", err)
		resp.Error = err.Error()
		resp.Results = []Result{}
		return resp
	}

	attachDeepLinks(results)
	resp.Results = results
	resp.Total = len(results)
	return resp
}

// classify implements the auto-routing rule. Vendor detection combines
// the regex-only heuristic (internal/analyze) with the SearchCategory
// classifier, which recognizes a query as category-dominant from its
// trigger keywords even when no vendor legal suffix or "Label:" colon
// literally appears in the text: "invoice from google" carries no
// regex-visible vendor, but the default vendor category's "from"
// trigger plus its non-category-word tolerance still mark it as
// vendor-dominant.
func classify(qa *analyze.QueryAnalysis, qNorm string, qTokens []string, categories []*model.SearchCategory) Mode {
	if len(qa.IDs) > 0 {
		return ModeKeyword
	}
	hasMoneyDateVendor := qa.Money != nil || len(qa.Dates) > 0 || len(qa.Vendors()) > 0 || matchesAnyCategory(qNorm, qTokens, categories)
	if len(qTokens) <= 2 && !hasMoneyDateVendor {
		return ModeKeyword
	}
	if hasMoneyDateVendor {
		return ModeHybrid
	}
	return ModeSemantic
}

// matchesAnyCategory reports whether qNorm/qTokens trip any tenant
// SearchCategory's trigger-keyword-plus-tolerance rule (the
// category-dominant query classifier).
func matchesAnyCategory(qNorm string, qTokens []string, categories []*model.SearchCategory) bool {
	for _, cat := range categories {
		if matchesCategory(qNorm, qTokens, cat) {
			return true
		}
	}
	return false
}

// matchesCategory reports whether the query contains one of cat's trigger
// keywords and whether the remaining words — those that are not part of a
// trigger keyword, an ignored word, or a known category entity — stay
// within cat.MaxNonCategoryWords: a vendor-category trigger like "from"
// plus a short remainder ("google") counts as a vendor-dominant query
// even with no vendor regex match.
func matchesCategory(qNorm string, qTokens []string, cat *model.SearchCategory) bool {
	ok, _ := categoryLeftovers(qNorm, qTokens, cat)
	return ok
}

// categoryLeftovers runs the category-match rule and, on a match, also
// returns the query words not consumed by a trigger keyword, ignored
// word, or known entity — for a vendor category these leftovers are the
// vendor name the user typed.
func categoryLeftovers(qNorm string, qTokens []string, cat *model.SearchCategory) (bool, []string) {
	if cat == nil || len(cat.TriggerKeywords) == 0 {
		return false, nil
	}

	triggered := false
	consumed := map[string]bool{}
	for _, trigger := range cat.TriggerKeywords {
		tNorm := normalize.NormalizeQuery(trigger)
		if tNorm == "" {
			continue
		}
		if strings.Contains(qNorm, tNorm) {
			triggered = true
			for _, w := range strings.Fields(tNorm) {
				consumed[w] = true
			}
		}
	}
	if !triggered {
		return false, nil
	}

	for _, w := range cat.IgnoredWords {
		consumed[normalize.NormalizeQuery(w)] = true
	}
	for _, e := range cat.Entities {
		consumed[normalize.NormalizeQuery(e)] = true
	}

	var leftovers []string
	for _, tok := range qTokens {
		if !consumed[tok] {
			leftovers = append(leftovers, tok)
		}
	}

	return len(leftovers) <= cat.MaxNonCategoryWords, leftovers
}

// categoryVendorCandidates returns the leftover words of any matching
// vendor-type category as vendor names to try in the keyword strategy's
// vendor-match injection.
func categoryVendorCandidates(qNorm string, qTokens []string, categories []*model.SearchCategory) []string {
	var out []string
	for _, cat := range categories {
		if cat == nil || cat.Type != model.CategoryVendor {
			continue
		}
		if ok, leftovers := categoryLeftovers(qNorm, qTokens, cat); ok {
			out = append(out, leftovers...)
			// A multi-word remainder is also one vendor candidate as a
			// phrase ("acme industries").
			if len(leftovers) > 1 {
				out = append(out, strings.Join(leftovers, " "))
			}
		}
	}
	return out
}

func toQueryAnalysisView(qa *analyze.QueryAnalysis) *queryAnalysisView {
	v := &queryAnalysisView{
		IDs:       qa.IDs,
		Dates:     qa.Dates,
		FileTypes: qa.FileTypes,
		Entities:  qa.Entities,
		Vendors:   qa.Vendors(),
	}
	if qa.Money != nil {
		v.Money = &moneyView{AmountCents: qa.Money.AmountCents, Currency: qa.Money.Currency}
	}
	return v
}
