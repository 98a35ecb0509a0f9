// Package reindex implements the Reindex Orchestrator:
// a background consumer of artifact create/update/delete events that
// selectively reruns normalization, metadata extraction, embedding,
// and suggestion indexing without blocking the caller that emitted
// the event.
package reindex

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/docsearch/internal/analyze"
	"github.com/custodia-labs/docsearch/internal/embedclient"
	"github.com/custodia-labs/docsearch/internal/ingest"
	"github.com/custodia-labs/docsearch/internal/model"
	"github.com/custodia-labs/docsearch/internal/normalize"
	"github.com/custodia-labs/docsearch/internal/store"
	"github.com/custodia-labs/docsearch/internal/suggest"
)

// Fields named in Event.ChangedFields that Updated inspects to decide
// how much work a reindex pass needs.
const (
	fieldContent  = "content"
	fieldSummary  = "summary"
	fieldText     = "text"
	fieldFileName = "file_name"
	fieldVendor   = "vendor"
	fieldKeywords = "keywords"
	fieldEntities = "entities"
)

// Orchestrator runs one goroutine per artifact id on demand, coalescing
// any event that arrives while that artifact's task is already running
// (tasks are not ordered across artifacts but are serial per artifact
// id, with no pre-emption).
type Orchestrator struct {
	Store   store.MetadataStore
	Embed   *embedclient.Client
	Suggest *suggest.Index
	BM25    store.BM25Index

	ArtifactVectors ingest.VectorStoreLookup
	ChunkVectors    ingest.VectorStoreLookup

	mu     sync.Mutex
	queues map[string]*artifactQueue
}

// New builds an Orchestrator from its collaborators. ArtifactVectors,
// ChunkVectors, and bm25 may be nil, in which case reindexing skips
// the corresponding update (mirroring the ingest orchestrator's own
// nil-safe behavior).
func New(st store.MetadataStore, embed *embedclient.Client, sg *suggest.Index, bm25 store.BM25Index, artifactVectors, chunkVectors ingest.VectorStoreLookup) *Orchestrator {
	return &Orchestrator{
		Store:           st,
		Embed:           embed,
		Suggest:         sg,
		BM25:            bm25,
		ArtifactVectors: artifactVectors,
		ChunkVectors:    chunkVectors,
		queues:          make(map[string]*artifactQueue),
	}
}

// artifactQueue serializes events for a single artifact: one task runs
// at a time, and at most one coalesced "next" event waits behind it.
type artifactQueue struct {
	mu      sync.Mutex
	running bool
	pending *model.Event
}

// Submit enqueues an event for background processing. It never blocks
// the caller and never returns an error; every sub-step logs and
// continues on failure.
func (o *Orchestrator) Submit(ev model.Event) {
	key := ev.TenantID + "/" + ev.ArtifactID

	o.mu.Lock()
	q, ok := o.queues[key]
	if !ok {
		q = &artifactQueue{}
		o.queues[key] = q
	}
	o.mu.Unlock()

	q.mu.Lock()
	if q.running {
		q.pending = coalesce(q.pending, ev)
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	go o.drain(context.Background(), q, ev)
}

// WaitIdle blocks until the artifact's queue has drained (no task running,
// nothing coalesced) or timeout elapses, returning whether it went idle.
// Intended for one-shot callers (CLI commands) that would otherwise race
// process exit against the background drain goroutine; the long-running
// server path has no need for it since the orchestrator outlives its events.
func (o *Orchestrator) WaitIdle(tenantID, artifactID string, timeout time.Duration) bool {
	key := tenantID + "/" + artifactID
	deadline := time.Now().Add(timeout)
	for {
		o.mu.Lock()
		q, ok := o.queues[key]
		o.mu.Unlock()
		if !ok {
			return true
		}
		q.mu.Lock()
		idle := !q.running
		q.mu.Unlock()
		if idle {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(25 * time.Millisecond)
	}
}

// coalesce merges a newly submitted event into one already waiting
// behind a running task. Deleted wins outright; Created wins over
// Updated; two Updated events union their changed-field sets.
func coalesce(pending *model.Event, next model.Event) *model.Event {
	if pending == nil {
		return &next
	}
	if pending.Kind == model.EventDeleted || next.Kind == model.EventDeleted {
		merged := next
		merged.Kind = model.EventDeleted
		return &merged
	}
	if pending.Kind == model.EventCreated || next.Kind == model.EventCreated {
		merged := next
		merged.Kind = model.EventCreated
		return &merged
	}
	merged := next
	merged.Kind = model.EventUpdated
	// An Updated event with no changed-field list means "full reindex";
	// unioning it with a narrow update must stay full.
	if len(pending.ChangedFields) == 0 || len(next.ChangedFields) == 0 {
		merged.ChangedFields = nil
	} else {
		merged.ChangedFields = unionFields(pending.ChangedFields, next.ChangedFields)
	}
	return &merged
}

func unionFields(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range append(append([]string{}, a...), b...) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// drain runs ev, then keeps running whatever coalesced into q.pending
// until the queue is empty, then marks it idle.
func (o *Orchestrator) drain(ctx context.Context, q *artifactQueue, ev model.Event) {
	for {
		o.process(ctx, ev)

		q.mu.Lock()
		if q.pending == nil {
			q.running = false
			q.mu.Unlock()
			return
		}
		ev = *q.pending
		q.pending = nil
		q.mu.Unlock()
	}
}

func (o *Orchestrator) process(ctx context.Context, ev model.Event) {
	switch ev.Kind {
	case model.EventCreated:
		o.reindexCreated(ctx, ev)
	case model.EventUpdated:
		o.reindexUpdated(ctx, ev)
	case model.EventDeleted:
		o.reindexDeleted(ctx, ev)
	default:
		slog.Warn("reindex: unknown event kind", "kind", ev.Kind, "artifact", ev.ArtifactID)
	}
}

// reindexCreated runs the full normalize/extract/embed/suggest pass
// over an already
// persisted artifact and its chunks.
func (o *Orchestrator) reindexCreated(ctx context.Context, ev model.Event) {
	artifact, chunks, ok := o.load(ctx, ev)
	if !ok {
		return
	}
	o.regenerateMetadataAndEmbeddings(ctx, artifact, chunks)
	o.rewriteSearchableText(artifact, chunks)
	o.commit(ctx, artifact, chunks)
	o.refreshSuggestions(ctx, artifact, chunks)
}

// reindexUpdated selectively reruns the pipeline stages the changed
// fields require.
func (o *Orchestrator) reindexUpdated(ctx context.Context, ev model.Event) {
	artifact, chunks, ok := o.load(ctx, ev)
	if !ok {
		return
	}

	full := len(ev.ChangedFields) == 0
	contentChanged := full || hasAny(ev.ChangedFields, fieldContent, fieldSummary, fieldText)
	suggestFieldsChanged := full || hasAny(ev.ChangedFields, fieldFileName, fieldVendor, fieldKeywords, fieldEntities)

	// Always rewrite searchable_text/text_normalized/ocr_text_normalized
	// from current parent metadata: the most important step for search
	// freshness.
	o.rewriteSearchableText(artifact, chunks)

	if contentChanged {
		o.regenerateMetadataAndEmbeddings(ctx, artifact, chunks)
		o.rewriteSearchableText(artifact, chunks)
	}

	o.commit(ctx, artifact, chunks)

	if contentChanged || suggestFieldsChanged {
		o.refreshSuggestions(ctx, artifact, chunks)
	}
}

// reindexDeleted cascades the delete and cleans up the suggestion
// index for the removed filename.
func (o *Orchestrator) reindexDeleted(ctx context.Context, ev model.Event) {
	artifact, err := o.Store.GetArtifact(ctx, ev.TenantID, ev.ArtifactID)
	if err != nil {
		slog.Warn("reindex: delete skipped, artifact already gone", "artifact", ev.ArtifactID, "error", err)
		return
	}

	if o.BM25 != nil {
		if chunks, err := o.Store.GetChunksByArtifact(ctx, ev.TenantID, ev.ArtifactID); err == nil {
			ids := make([]string, len(chunks))
			for i, c := range chunks {
				ids[i] = c.ID()
			}
			if err := o.BM25.Delete(ctx, ids); err != nil {
				slog.Warn("reindex: bm25 delete failed", "artifact", ev.ArtifactID, "error", err)
			}
		}
	}

	if o.ArtifactVectors != nil {
		if vs, err := o.ArtifactVectors(ev.TenantID); err == nil && vs != nil {
			if err := vs.Delete(ctx, []string{ev.ArtifactID}); err != nil {
				slog.Warn("reindex: artifact vector delete failed", "artifact", ev.ArtifactID, "error", err)
			}
		}
	}
	if o.ChunkVectors != nil {
		if vs, err := o.ChunkVectors(ev.TenantID); err == nil && vs != nil {
			if chunks, err := o.Store.GetChunksByArtifact(ctx, ev.TenantID, ev.ArtifactID); err == nil {
				ids := make([]string, len(chunks))
				for i, c := range chunks {
					ids[i] = c.ID()
				}
				if err := vs.Delete(ctx, ids); err != nil {
					slog.Warn("reindex: chunk vector delete failed", "artifact", ev.ArtifactID, "error", err)
				}
			}
		}
	}

	if err := o.Store.DeleteChunksByArtifact(ctx, ev.TenantID, ev.ArtifactID); err != nil {
		slog.Error("reindex: delete chunks failed", "artifact", ev.ArtifactID, "error", err)
	}
	if err := o.Store.DeleteArtifact(ctx, ev.TenantID, ev.ArtifactID); err != nil {
		slog.Error("reindex: delete artifact failed", "artifact", ev.ArtifactID, "error", err)
		return
	}

	if o.Suggest != nil {
		if err := o.Suggest.RemoveFilename(ctx, ev.TenantID, artifact.FileName); err != nil {
			slog.Warn("reindex: suggestion cleanup failed", "artifact", ev.ArtifactID, "error", err)
		}
	}
}

func hasAny(fields []string, candidates ...string) bool {
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	for _, c := range candidates {
		if set[c] {
			return true
		}
	}
	return false
}

func (o *Orchestrator) load(ctx context.Context, ev model.Event) (*model.Artifact, []*model.Chunk, bool) {
	artifact, err := o.Store.GetArtifact(ctx, ev.TenantID, ev.ArtifactID)
	if err != nil {
		slog.Warn("reindex: artifact not found, skipping", "artifact", ev.ArtifactID, "error", err)
		return nil, nil, false
	}
	chunks, err := o.Store.GetChunksByArtifact(ctx, ev.TenantID, ev.ArtifactID)
	if err != nil {
		slog.Warn("reindex: chunk fetch failed, skipping", "artifact", ev.ArtifactID, "error", err)
		return nil, nil, false
	}
	return artifact, chunks, true
}

// regenerateMetadataAndEmbeddings reruns metadata extraction over every
// chunk's stored text and re-embeds the artifact and chunk texts.
func (o *Orchestrator) regenerateMetadataAndEmbeddings(ctx context.Context, artifact *model.Artifact, chunks []*model.Chunk) {
	artifactText := artifact.Summary
	if artifactText == "" {
		artifactText = artifact.FileName
	}
	if vec, err := o.Embed.Embed(ctx, artifactText); err != nil {
		slog.Warn("reindex: artifact embedding failed", "artifact", artifact.ID, "error", err)
	} else {
		artifact.TextEmbedding = vec
	}

	if len(chunks) == 0 {
		return
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := o.Embed.EmbedBatch(ctx, texts)
	if err != nil {
		slog.Warn("reindex: chunk embedding batch failed", "artifact", artifact.ID, "error", err)
		vectors = nil
	}

	for i, c := range chunks {
		m := analyze.ExtractMetadata(c.Text)
		c.Vendor = firstNonEmpty(m.Vendor, c.Vendor)
		c.Currency = firstNonEmpty(m.Currency, c.Currency)
		if len(m.AmountsCents) > 0 {
			c.AmountsCents = m.AmountsCents
		}
		if len(m.Entities) > 0 {
			c.Entities = dedupeTokenized(m.Entities)
		}
		if len(m.Keywords) > 0 {
			c.Keywords = dedupeTokenized(m.Keywords)
		}
		if len(m.Dates) > 0 {
			c.Dates = m.Dates
		}
		if vectors != nil && i < len(vectors) {
			c.TextEmbedding = vectors[i]
		}
	}

	if o.ArtifactVectors != nil && len(artifact.TextEmbedding) > 0 {
		if vs, verr := o.ArtifactVectors(artifact.TenantID); verr == nil && vs != nil {
			if err := vs.Add(ctx, []string{artifact.ID}, [][]float32{artifact.TextEmbedding}); err != nil {
				slog.Warn("reindex: artifact vector update failed", "artifact", artifact.ID, "error", err)
			}
		}
	}
	if o.ChunkVectors != nil {
		if vs, verr := o.ChunkVectors(artifact.TenantID); verr == nil && vs != nil {
			var ids []string
			var vecs [][]float32
			for _, c := range chunks {
				if len(c.TextEmbedding) == 0 {
					continue
				}
				ids = append(ids, c.ID())
				vecs = append(vecs, c.TextEmbedding)
			}
			if len(ids) > 0 {
				if err := vs.Add(ctx, ids, vecs); err != nil {
					slog.Warn("reindex: chunk vector update failed", "artifact", artifact.ID, "error", err)
				}
			}
		}
	}
}

// rewriteSearchableText recomputes searchable_text, text_normalized,
// and ocr_text_normalized for every chunk from the parent's current
// metadata, restoring the searchable-text invariant.
func (o *Orchestrator) rewriteSearchableText(artifact *model.Artifact, chunks []*model.Chunk) {
	for _, c := range chunks {
		c.TextNormalized = normalize.Normalize(c.Text, true)
		c.OCRTextNormalized = normalize.Normalize(c.OCRText, true)
		c.SearchableText = normalize.CreateSearchableText(
			artifact.FileName, artifact.Description, joinTags(artifact.Tags), joinTags(artifact.Keywords),
			c.Text, c.OCRText, c.Caption, joinTags(c.Labels),
		)
	}
}

func (o *Orchestrator) commit(ctx context.Context, artifact *model.Artifact, chunks []*model.Chunk) {
	if err := o.Store.SaveArtifact(ctx, artifact); err != nil {
		slog.Error("reindex: save artifact failed", "artifact", artifact.ID, "error", err)
	}
	if len(chunks) == 0 {
		return
	}
	if err := o.Store.SaveChunks(ctx, chunks); err != nil {
		slog.Error("reindex: save chunks failed", "artifact", artifact.ID, "error", err)
		return
	}
	if o.BM25 == nil {
		return
	}
	docs := make([]*store.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = &store.Document{ID: c.ID(), Content: c.SearchableText}
	}
	if err := o.BM25.Index(ctx, docs); err != nil {
		slog.Warn("reindex: bm25 index failed", "artifact", artifact.ID, "error", err)
	}
}

func (o *Orchestrator) refreshSuggestions(ctx context.Context, artifact *model.Artifact, chunks []*model.Chunk) {
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
		slog.Warn("reindex: suggestion refresh failed", "artifact", artifact.ID, "error", err)
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// dedupeTokenized mirrors the ingest orchestrator's keyword folding so
// reindexed chunks stay consistent with freshly ingested ones.
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

func joinTags(parts []string) string {
	return strings.Join(parts, " ")
}
