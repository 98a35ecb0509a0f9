package search

import (
	"context"
	"math"

	"github.com/custodia-labs/docsearch/internal/model"
	"github.com/custodia-labs/docsearch/internal/store"
)

// semanticSearch implements the semantic strategy: cosine
// similarity over a per-tenant artifact vector index and a per-tenant
// chunk vector index, merged by parent id with the chunk score
// winning ties (it carries a locator for the deep link). When a tenant
// has no HNSW index built (embeddings disabled, or a fresh process
// before the first ingest), the strategy falls back to scanning a
// bounded candidate set from the metadata store and scoring cosine
// in-process — the literal algorithm the strategy is defined by.
func (s *Service) semanticSearch(ctx context.Context, tenantID, query string, limit int) ([]Result, error) {
	vec, err := s.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, nil
	}

	merged := make(map[string]*Result)

	artifactHits := s.artifactVectorHits(ctx, tenantID, vec, limit*2)
	for _, hit := range artifactHits {
		score := float64(hit.Score)
		if score < s.Tenancy.SemanticThresholdStrict {
			continue
		}
		a, gerr := s.Store.GetArtifact(ctx, tenantID, hit.ID)
		if gerr != nil || a == nil {
			continue
		}
		merged[a.ID] = &Result{
			ID:        a.ID,
			FileName:  a.FileName,
			FileKind:  string(a.FileKind),
			Summary:   a.Summary,
			Vendor:    a.Vendor,
			Score:     score,
			MatchType: MatchSemanticDocument,
			CreatedAt: a.CreatedAt,
		}
	}

	chunkHits := s.chunkVectorHits(ctx, tenantID, vec, limit*10)
	bestPerParent := make(map[string]*store.VectorResult)
	for _, hit := range chunkHits {
		if float64(hit.Score) < s.Tenancy.SemanticThresholdLoose {
			continue
		}
		parentID := model.ParentIDFromChunkID(hit.ID)
		if cur, ok := bestPerParent[parentID]; !ok || hit.Score > cur.Score {
			bestPerParent[parentID] = hit
		}
	}

	for parentID, hit := range bestPerParent {
		score := float64(hit.Score)
		if cur, ok := merged[parentID]; ok && cur.Score >= score {
			continue
		}
		a, gerr := s.Store.GetArtifact(ctx, tenantID, parentID)
		if gerr != nil || a == nil {
			continue
		}
		c, cgerr := s.Store.GetChunk(ctx, tenantID, hit.ID)
		result := &Result{
			ID:             a.ID,
			FileName:       a.FileName,
			FileKind:       string(a.FileKind),
			Summary:        a.Summary,
			Vendor:         a.Vendor,
			Score:          score,
			MatchType:      MatchSemanticChunk,
			CreatedAt:      a.CreatedAt,
			MatchedInChunk: hit.ID,
		}
		if cgerr == nil && c != nil {
			result.ChunkPreview = preview(c)
			result.pageNumber = c.Locator.PageNumber
			result.rowIndex = c.Locator.RowIndex
		}
		merged[parentID] = result
	}

	return rankAndTruncate(merged, limit), nil
}

// artifactVectorHits queries the tenant's artifact HNSW index, or
// brute-forces cosine over stored artifact embeddings when no index
// has been built for the tenant.
func (s *Service) artifactVectorHits(ctx context.Context, tenantID string, vec []float32, k int) []*store.VectorResult {
	if artStore, err := s.Vectors.ArtifactStore(tenantID); err == nil && artStore != nil && artStore.Count() > 0 {
		hits, serr := artStore.Search(ctx, vec, k)
		if serr == nil {
			return hits
		}
	}

	artifacts, _, err := s.Store.ListArtifacts(ctx, tenantID, "", s.ArtifactCandidateLimit)
	if err != nil {
		return nil
	}
	var hits []*store.VectorResult
	for _, a := range artifacts {
		if len(a.TextEmbedding) == 0 {
			continue
		}
		hits = append(hits, &store.VectorResult{ID: a.ID, Score: cosineSimilarity(vec, a.TextEmbedding)})
	}
	return topK(hits, k)
}

// chunkVectorHits is the chunk-side twin of artifactVectorHits.
func (s *Service) chunkVectorHits(ctx context.Context, tenantID string, vec []float32, k int) []*store.VectorResult {
	if chunkStore, err := s.Vectors.ChunkStore(tenantID); err == nil && chunkStore != nil && chunkStore.Count() > 0 {
		hits, serr := chunkStore.Search(ctx, vec, k)
		if serr == nil {
			return hits
		}
	}

	chunks, err := s.Store.ListChunks(ctx, tenantID, s.ChunkCandidateLimit)
	if err != nil {
		return nil
	}
	var hits []*store.VectorResult
	for _, c := range chunks {
		emb := c.TextEmbedding
		if len(emb) == 0 {
			emb = c.CaptionEmbedding
		}
		if len(emb) == 0 {
			continue
		}
		hits = append(hits, &store.VectorResult{ID: c.ID(), Score: cosineSimilarity(vec, emb)})
	}
	return topK(hits, k)
}

func topK(hits []*store.VectorResult, k int) []*store.VectorResult {
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].Score > hits[j-1].Score; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// cosineSimilarity returns a·b / (|a||b|), or 0 for mismatched or
// zero-magnitude vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
