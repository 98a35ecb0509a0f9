// Package store provides vector storage (HNSW), keyword storage (SQLite
// FTS5 BM25), and metadata persistence (SQLite) for artifacts and chunks.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/docsearch/internal/model"
)

// State keys for metadata store, scoped per tenant by the caller.
const (
	// StateKeyIndexDimension stores the embedding dimension used for a tenant's vector index.
	StateKeyIndexDimension = "index_embedding_dimension"
	// StateKeyIndexModel stores the embedding model name used for a tenant's index.
	StateKeyIndexModel = "index_embedding_model"
)

// Checkpoint state keys for resumable batch ingestion. A large ingest
// batch records progress here so a crash mid-embedding can resume
// instead of re-processing already-embedded chunks, per the deadline/
// reindex-repair rule.
const (
	StateKeyCheckpointStage         = "checkpoint_stage" // "scanning"|"extracting"|"embedding"|"indexing"|"complete"
	StateKeyCheckpointTotal         = "checkpoint_total"
	StateKeyCheckpointEmbedded      = "checkpoint_embedded"
	StateKeyCheckpointTimestamp     = "checkpoint_timestamp"
	StateKeyCheckpointEmbedderModel = "checkpoint_embedder_model"
)

// MetadataStore persists artifact and chunk metadata, scoped by tenant.
type MetadataStore interface {
	// Artifact operations
	SaveArtifact(ctx context.Context, artifact *model.Artifact) error
	GetArtifact(ctx context.Context, tenantID, id string) (*model.Artifact, error)
	ListArtifacts(ctx context.Context, tenantID string, cursor string, limit int) ([]*model.Artifact, string, error)
	DeleteArtifact(ctx context.Context, tenantID, id string) error // cascades to chunks

	// Chunk operations
	SaveChunks(ctx context.Context, chunks []*model.Chunk) error
	GetChunk(ctx context.Context, tenantID, id string) (*model.Chunk, error)
	GetChunks(ctx context.Context, tenantID string, ids []string) ([]*model.Chunk, error)
	GetChunksByArtifact(ctx context.Context, tenantID, artifactID string) ([]*model.Chunk, error)
	ListChunks(ctx context.Context, tenantID string, limit int) ([]*model.Chunk, error)
	DeleteChunksByArtifact(ctx context.Context, tenantID, artifactID string) error

	// Search category operations
	SaveSearchCategory(ctx context.Context, category *model.SearchCategory) error
	ListSearchCategories(ctx context.Context, tenantID string) ([]*model.SearchCategory, error)

	// State operations (tenant-scoped key-value store for runtime state)
	GetState(ctx context.Context, tenantID, key string) (string, error)
	SetState(ctx context.Context, tenantID, key, value string) error

	// Embedding bookkeeping (for vector index compaction/rebuild)
	GetAllEmbeddings(ctx context.Context, tenantID string) (map[string][]float32, error)
	GetEmbeddingStats(ctx context.Context, tenantID string) (withEmbedding, withoutEmbedding int, err error)

	// CountArtifacts and CountChunks report a tenant's index size for
	// the `docsearch stats` command.
	CountArtifacts(ctx context.Context, tenantID string) (int, error)
	CountChunks(ctx context.Context, tenantID string) (int, error)
	// ArtifactTimeRange reports the earliest created_at and latest
	// updated_at across a tenant's artifacts, used to report when an
	// index was first built and last touched. Returns zero times when
	// the tenant has no artifacts.
	ArtifactTimeRange(ctx context.Context, tenantID string) (createdAt, updatedAt time.Time, err error)

	// Checkpoint operations (for resumable batch ingestion)
	SaveIngestCheckpoint(ctx context.Context, tenantID, stage string, total, embeddedCount int, embedderModel string) error
	LoadIngestCheckpoint(ctx context.Context, tenantID string) (*IngestCheckpoint, error)
	ClearIngestCheckpoint(ctx context.Context, tenantID string) error

	// Lifecycle
	Close() error
}

// IngestCheckpoint represents the saved state of a batch ingestion run for resume.
type IngestCheckpoint struct {
	Stage         string
	Total         int
	EmbeddedCount int
	Timestamp     time.Time
	EmbedderModel string
}

// IndexInfo summarizes a tenant's index for the `docsearch stats` command.
type IndexInfo struct {
	TenantID string

	IndexModel      string
	IndexDimensions int

	ArtifactCount   int
	ChunkCount      int
	IndexSizeBytes  int64
	BM25SizeBytes   int64
	VectorSizeBytes int64

	CreatedAt time.Time
	UpdatedAt time.Time

	CurrentModel      string
	CurrentDimensions int
	Compatible        bool
}

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

// Document is a chunk's keyword-searchable projection: the subset of a
// model.Chunk the BM25 index needs, decoupled from the chunk's other
// fields (embedding, locator, tenant) which the keyword index never sees.
type Document struct {
	ID      string // model.Chunk.ID
	Content string // normalized chunk text handed to the tokenizer
}

// BM25Result represents a single BM25 search result.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about the BM25 index.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// BM25Index provides keyword search using the BM25 algorithm.
type BM25Index interface {
	Index(ctx context.Context, docs []*Document) error
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)
	Delete(ctx context.Context, docIDs []string) error
	AllIDs() ([]string, error)
	Stats() *IndexStats
	Save(path string) error
	Load(path string) error
	Close() error
}

// BM25Config configures the BM25 index.
type BM25Config struct {
	// K1 is the term frequency saturation parameter (default: 1.2).
	K1 float64
	// B is the length normalization parameter (default: 0.75).
	B float64
	// StopWords is a list of words to filter out during tokenization.
	StopWords []string
	// MinTokenLength is the minimum token length to index (default: 2).
	MinTokenLength int
}

// DefaultBM25Config returns default BM25 configuration for document text.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultStopWords,
		MinTokenLength: 2,
	}
}

// DefaultStopWords contains common English words filtered from the
// keyword index. It is a superset of the suggestion service's 12-word
// stop-word set; the extra modal and auxiliary verbs are filtered here only.
var DefaultStopWords = []string{
	"the", "and", "for", "are", "but", "not", "this", "that", "with",
	"from", "have", "has", "was", "were", "been", "being", "will",
	"would", "could", "should", "can", "may", "might",
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // Chunk ID
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Normalized similarity (0-1)
}

// VectorStoreConfig configures a tenant's vector store.
type VectorStoreConfig struct {
	// Dimensions is the embedding vector dimension, fixed per tenant once set.
	Dimensions int

	// Metric is the distance metric: "cos" (cosine) or "l2" (euclidean).
	Metric string

	// M is HNSW max connections per layer (default: 32).
	M int

	// EfConstruction is HNSW build-time search width (default: 128).
	EfConstruction int

	// EfSearch is HNSW query-time search width (default: 64).
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for a vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore provides semantic search using the HNSW algorithm. One
// instance is constructed per tenant so tenants never share a graph.
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	AllIDs() []string
	Contains(id string) bool
	Count() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates a vector dimension mismatch against a
// tenant's established embedding dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run 'docsearch reindex')", e.Expected, e.Got)
}
