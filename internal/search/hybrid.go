package search

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/docsearch/internal/analyze"
)

// hybridSearch implements the hybrid strategy: keyword and
// semantic run independently, then merge by parent id with a weighted
// mix when both found the artifact, or the single available score
// otherwise. The two strategies hit different backends (the BM25 index
// vs. the HNSW vector store) with no shared state, so they run
// concurrently via errgroup rather than one after the other.
func (s *Service) hybridSearch(ctx context.Context, tenantID, rawQuery string, qa *analyze.QueryAnalysis, qNorm string, qTokens []string, vendors []string, limit int) ([]Result, error) {
	fanOut := limit * 2

	var keywordResults, semanticResults []Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		keywordResults, err = s.keywordSearch(gctx, tenantID, rawQuery, qa, qNorm, qTokens, vendors, fanOut)
		return err
	})
	g.Go(func() error {
		var err error
		semanticResults, err = s.semanticSearch(gctx, tenantID, rawQuery, fanOut)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]*Result, len(keywordResults)+len(semanticResults))
	keywordScore := make(map[string]float64)
	semanticScore := make(map[string]float64)

	for i := range keywordResults {
		r := keywordResults[i]
		keywordScore[r.ID] = r.Score
		cp := r
		byID[r.ID] = &cp
	}
	for i := range semanticResults {
		r := semanticResults[i]
		semanticScore[r.ID] = r.Score
		if _, ok := byID[r.ID]; !ok {
			cp := r
			byID[r.ID] = &cp
		}
	}

	bm25W := s.Tenancy.HybridBM25Weight
	semW := s.Tenancy.HybridSemanticWeight

	merged := make(map[string]*Result, len(byID))
	for id, r := range byID {
		kw, hasKw := keywordScore[id]
		sem, hasSem := semanticScore[id]

		out := *r
		switch {
		case hasKw && hasSem:
			out.Score = semW*sem + bm25W*kw
			out.MatchType = MatchHybrid
		case hasSem:
			out.Score = sem
		default:
			out.Score = kw
		}
		merged[id] = &out
	}

	return rankAndTruncate(merged, limit), nil
}
