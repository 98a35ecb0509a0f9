// Package ingest implements the Ingestion Orchestrator:
// the two entry points, IngestFile and IngestSnippet, that turn raw
// bytes or pasted text into a persisted artifact plus its chunks,
// embeddings, and suggestion-index terms.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docsearch/internal/analyze"
	"github.com/custodia-labs/docsearch/internal/embedclient"
	serrors "github.com/custodia-labs/docsearch/internal/errors"
	"github.com/custodia-labs/docsearch/internal/extract"
	"github.com/custodia-labs/docsearch/internal/model"
	"github.com/custodia-labs/docsearch/internal/normalize"
	"github.com/custodia-labs/docsearch/internal/store"
	"github.com/custodia-labs/docsearch/internal/suggest"
)

// VectorStoreLookup resolves the per-tenant vector index an
// orchestrator writes artifact or chunk vectors into.
type VectorStoreLookup func(tenantID string) (store.VectorStore, error)

// Orchestrator runs the pipeline over the extractor registry, the
// embedding client, the metadata store, and the suggestion index.
type Orchestrator struct {
	Extractors *extract.Registry
	Embed      *embedclient.Client
	Store      store.MetadataStore
	Suggest    *suggest.Index

	// BM25 receives every chunk's searchable text so the keyword
	// strategy's recall pass (search.Service.BM25) can surface chunks
	// outside the bounded candidate scan. Optional: nil skips indexing.
	BM25 store.BM25Index

	ArtifactVectors VectorStoreLookup
	ChunkVectors    VectorStoreLookup

	// StoreRetry bounds the backoff applied to artifact/chunk writes
	// before a store failure surfaces.
	StoreRetry serrors.RetryConfig
}

// New builds an Orchestrator from its collaborators. bm25 may be nil.
func New(extractors *extract.Registry, embed *embedclient.Client, st store.MetadataStore, sg *suggest.Index, bm25 store.BM25Index, artifactVectors, chunkVectors VectorStoreLookup) *Orchestrator {
	return &Orchestrator{
		Extractors:      extractors,
		Embed:           embed,
		Store:           st,
		Suggest:         sg,
		BM25:            bm25,
		ArtifactVectors: artifactVectors,
		ChunkVectors:    chunkVectors,
		StoreRetry: serrors.RetryConfig{
			MaxRetries:   2,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2.0,
		},
	}
}

// IngestFile runs the full extract/analyze/normalize/embed/persist/
// suggest pipeline over a file's bytes and returns the created
// artifact.
func (o *Orchestrator) IngestFile(ctx context.Context, data []byte, filename, mimeType, tenantID, ownerID string, tags []string, meta map[string]string) (*model.Artifact, error) {
	if len(data) == 0 {
		return nil, serrors.InvalidInput("empty file", nil).WithDetail("filename", filename)
	}
	if tenantID == "" {
		return nil, serrors.InvalidInput("tenant id is required", nil)
	}

	extractor := o.Extractors.Select(mimeType, filename)
	summary, drafts := extractor.Extract(extract.Input{Bytes: data, Filename: filename, MimeType: mimeType})

	artifact := &model.Artifact{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		OwnerID:      ownerID,
		URI:          filename,
		FileName:     filename,
		MimeType:     mimeType,
		Kind:         model.KindFile,
		FileKind:     model.FileKind(summary.FileType),
		SizeBytes:    int64(len(data)),
		Tags:         tags,
		TypeMetadata: meta,
		CreatedAt:    now(),
		UpdatedAt:    now(),
	}
	return o.finishIngest(ctx, artifact, summary, drafts)
}

// IngestSnippet runs the same pipeline using the Snippet extractor
// over raw pasted/generated text instead of file bytes.
func (o *Orchestrator) IngestSnippet(ctx context.Context, text, title, tenantID, ownerID, source string, tags []string, meta map[string]string) (*model.Artifact, error) {
	if strings.TrimSpace(text) == "" {
		return nil, serrors.InvalidInput("empty snippet text", nil)
	}
	if tenantID == "" {
		return nil, serrors.InvalidInput("tenant id is required", nil)
	}

	extractor := extract.NewSnippetExtractor()
	summary, drafts := extractor.Extract(extract.Input{Text: text, Filename: title, Source: source})

	if meta == nil {
		meta = map[string]string{}
	}
	meta["source"] = source

	artifact := &model.Artifact{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		OwnerID:      ownerID,
		URI:          title,
		FileName:     title,
		MimeType:     "text/plain",
		Kind:         model.KindText,
		FileKind:     model.FileKindSnippet,
		SizeBytes:    int64(len(text)),
		Tags:         tags,
		TypeMetadata: meta,
		CreatedAt:    now(),
		UpdatedAt:    now(),
	}
	return o.finishIngest(ctx, artifact, summary, drafts)
}

// finishIngest applies an extractor's output onto a freshly built
// artifact and runs the shared embed/persist/suggest sequence common
// to both entry points.
func (o *Orchestrator) finishIngest(ctx context.Context, artifact *model.Artifact, summary *extract.Summary, drafts []extract.ChunkDraft) (*model.Artifact, error) {
	applySummary(artifact, summary)

	artifactText := summary.Summary
	if artifactText == "" {
		artifactText = artifact.FileName
	}
	if vec, err := o.Embed.Embed(ctx, artifactText); err != nil {
		slog.Warn("ingest: artifact embedding failed", "artifact", artifact.ID, "error", err)
	} else {
		artifact.TextEmbedding = vec
	}

	// Transient store failures get a bounded exponential-backoff retry
	// here at the orchestrator level before the error surfaces.
	if err := serrors.Retry(ctx, o.StoreRetry, func() error {
		return o.Store.SaveArtifact(ctx, artifact)
	}); err != nil {
		return nil, serrors.StoreFatal("ingest: save artifact", err)
	}

	chunks := o.buildChunks(ctx, artifact, drafts)
	if len(chunks) > 0 {
		err := serrors.Retry(ctx, o.StoreRetry, func() error {
			return o.Store.SaveChunks(ctx, chunks)
		})
		if err != nil {
			slog.Error("ingest: save chunks failed, artifact committed without chunks", "artifact", artifact.ID, "error", err)
		} else {
			o.indexVectors(ctx, artifact, chunks)
			o.indexBM25(ctx, chunks)
		}
	}

	o.populateSuggestions(ctx, artifact, chunks)
	o.recordIndexState(ctx, artifact.TenantID)

	return artifact, nil
}

// indexBM25 feeds each chunk's searchable text into the auxiliary BM25
// index, if one is configured.
func (o *Orchestrator) indexBM25(ctx context.Context, chunks []*model.Chunk) {
	if o.BM25 == nil || len(chunks) == 0 {
		return
	}
	docs := make([]*store.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = &store.Document{ID: c.ID(), Content: c.SearchableText}
	}
	if err := o.BM25.Index(ctx, docs); err != nil {
		slog.Warn("ingest: bm25 index failed", "error", err)
	}
}

// recordIndexState persists the embedding model and dimension a
// tenant's vector index was built with, read back by the `docsearch
// stats` command to detect a stale index after an embedder change.
func (o *Orchestrator) recordIndexState(ctx context.Context, tenantID string) {
	if o.Embed == nil {
		return
	}
	if err := o.Store.SetState(ctx, tenantID, store.StateKeyIndexModel, o.Embed.ModelName()); err != nil {
		slog.Warn("ingest: save index model state failed", "error", err)
	}
	if err := o.Store.SetState(ctx, tenantID, store.StateKeyIndexDimension, fmt.Sprintf("%d", o.Embed.Dimensions())); err != nil {
		slog.Warn("ingest: save index dimension state failed", "error", err)
	}
}

// applySummary folds an extractor Summary onto the artifact record:
// the extractor's structured fields plus its
// image-specific fields when present.
func applySummary(a *model.Artifact, s *extract.Summary) {
	a.Summary = s.Summary
	a.Vendor = s.Vendor
	a.Currency = s.Currency
	a.AmountsCents = s.AmountsCents
	a.Entities = s.Entities
	// Artifact keywords stay exact (IDs, emails, IBANs) so exact-keyword
	// search can match them verbatim; only the chunk-level keyword fold
	// tokenizes.
	a.Keywords = dedupeExact(s.Keywords)
	a.Dates = s.Dates
	a.ImageLabels = s.ImageLabels
	a.OCRText = s.OCRText
	if a.TypeMetadata == nil {
		a.TypeMetadata = map[string]string{}
	}
	for k, v := range s.TypeMetadata {
		a.TypeMetadata[k] = v
	}
}

// buildChunks applies metadata extraction to each draft's text, merges it with what the
// extractor already produced (extractor wins on conflict), builds
// searchable_text and the normalized text fields, and embeds every
// chunk text in one batch call.
func (o *Orchestrator) buildChunks(ctx context.Context, artifact *model.Artifact, drafts []extract.ChunkDraft) []*model.Chunk {
	if len(drafts) == 0 {
		return nil
	}

	texts := make([]string, len(drafts))
	for i, d := range drafts {
		texts[i] = d.Text
	}
	vectors, err := o.Embed.EmbedBatch(ctx, texts)
	if err != nil {
		slog.Warn("ingest: chunk embedding batch failed", "artifact", artifact.ID, "error", err)
		vectors = make([][]float32, len(drafts))
	}

	chunks := make([]*model.Chunk, 0, len(drafts))
	for i, d := range drafts {
		m := analyze.ExtractMetadata(d.Text)

		c := &model.Chunk{
			ArtifactID:  artifact.ID,
			ChunkIndex:  i,
			TenantID:    artifact.TenantID,
			ChunkType:   d.ChunkType,
			Locator:     d.Locator,
			Text:        d.Text,
			OCRText:     d.OCRText,
			Caption:     d.Caption,
			Description: d.Description,
			Labels:      d.Labels,
			CreatedAt:   now(),
			UpdatedAt:   now(),
		}

		c.Vendor = firstNonEmpty(d.Vendor, m.Vendor)
		c.Currency = firstNonEmpty(d.Currency, m.Currency)
		c.AmountsCents = mergeInt64s(d.AmountsCents, m.AmountsCents)
		c.Entities = dedupeTokenized(mergeStrings(d.Entities, m.Entities))
		c.Keywords = dedupeTokenized(mergeStrings(d.Keywords, m.Keywords))
		c.Dates = mergeStrings(d.Dates, m.Dates)

		c.TextNormalized = normalize.Normalize(c.Text, true)
		c.OCRTextNormalized = normalize.Normalize(c.OCRText, true)
		c.SearchableText = normalize.CreateSearchableText(
			artifact.FileName, artifact.Description, joinTags(artifact.Tags), joinTags(artifact.Keywords),
			c.Text, c.OCRText, c.Caption, joinTags(c.Labels),
		)

		if i < len(vectors) {
			c.TextEmbedding = vectors[i]
		}
		if len(d.ImageEmbedding) > 0 {
			c.CaptionEmbedding = d.ImageEmbedding
		}

		chunks = append(chunks, c)
	}
	return chunks
}

// indexVectors writes the artifact's and each chunk's embedding into
// their respective per-tenant vector stores, when one is configured
// and the embedding is non-empty.
func (o *Orchestrator) indexVectors(ctx context.Context, artifact *model.Artifact, chunks []*model.Chunk) {
	if o.ArtifactVectors != nil && len(artifact.TextEmbedding) > 0 {
		if vs, err := o.ArtifactVectors(artifact.TenantID); err == nil && vs != nil {
			if err := vs.Add(ctx, []string{artifact.ID}, [][]float32{artifact.TextEmbedding}); err != nil {
				slog.Warn("ingest: artifact vector index add failed", "artifact", artifact.ID, "error", err)
			}
		}
	}

	if o.ChunkVectors == nil {
		return
	}
	vs, err := o.ChunkVectors(artifact.TenantID)
	if err != nil || vs == nil {
		return
	}
	var ids []string
	var vecs [][]float32
	for _, c := range chunks {
		vec := c.TextEmbedding
		if len(vec) == 0 {
			vec = c.CaptionEmbedding
		}
		if len(vec) == 0 {
			continue
		}
		ids = append(ids, c.ID())
		vecs = append(vecs, vec)
	}
	if len(ids) > 0 {
		if err := vs.Add(ctx, ids, vecs); err != nil {
			slog.Warn("ingest: chunk vector index add failed", "artifact", artifact.ID, "error", err)
		}
	}
}

// populateSuggestions runs the suggestion index's AddTerms over the
// artifact's terms.
// Failure is logged and swallowed; suggestions are best-effort.
func (o *Orchestrator) populateSuggestions(ctx context.Context, artifact *model.Artifact, chunks []*model.Chunk) {
	if o.Suggest == nil {
		return
	}
	var content strings.Builder
	content.WriteString(artifact.Summary)
	for _, c := range chunks {
		content.WriteString(" ")
		content.WriteString(c.Text)
	}

	if err := o.Suggest.AddTerms(ctx, artifact.TenantID, artifact.FileName, artifact.Entities, artifact.Keywords, artifact.Vendor, content.String()); err != nil {
		slog.Warn("ingest: suggestion index update failed", "artifact", artifact.ID, "error", err)
	}
}

func now() time.Time { return time.Now().UTC() }

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func mergeStrings(a, b []string) []string {
	return append(append([]string{}, a...), b...)
}

func mergeInt64s(a, b []int64) []int64 {
	return append(append([]int64{}, a...), b...)
}

func joinTags(parts []string) string {
	return strings.Join(parts, " ")
}

func dedupeExact(items []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}

// dedupeTokenized folds every keyword source through Tokenize and
// deduplicates the resulting tokens, applied at the chunk level.
func dedupeTokenized(items []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, raw := range items {
		for _, tok := range normalize.Tokenize(raw) {
			if !seen[tok] {
				seen[tok] = true
				out = append(out, tok)
			}
		}
	}
	return out
}
