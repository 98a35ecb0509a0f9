package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docsearch/internal/model"
)

func newTestMetadataStore(t *testing.T) *SQLiteMetadataStore {
	t.Helper()
	s, err := NewSQLiteMetadataStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleArtifact(tenantID, id string) *model.Artifact {
	return &model.Artifact{
		ID:           id,
		TenantID:     tenantID,
		OwnerID:      "user-1",
		FileName:     "invoice.pdf",
		MimeType:     "application/pdf",
		Kind:         model.KindFile,
		FileKind:     model.FileKindPDF,
		SizeBytes:    1024,
		Tags:         []string{"finance"},
		Vendor:       "Acme Corp",
		Currency:     "USD",
		AmountsCents: []int64{120450},
		Entities:     []string{"Acme Corp"},
		Keywords:     []string{"invoice", "consulting"},
		TextEmbedding: []float32{0.1, 0.2, 0.3},
	}
}

func TestSQLiteMetadataStore_SaveAndGetArtifact(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	a := sampleArtifact("tenant-a", "art-1")
	require.NoError(t, s.SaveArtifact(ctx, a))

	got, err := s.GetArtifact(ctx, "tenant-a", "art-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", got.Vendor)
	assert.Equal(t, []int64{120450}, got.AmountsCents)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got.TextEmbedding)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLiteMetadataStore_GetArtifact_TenantIsolation(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveArtifact(ctx, sampleArtifact("tenant-a", "art-1")))

	_, err := s.GetArtifact(ctx, "tenant-b", "art-1")
	assert.Error(t, err, "an artifact from another tenant must not be visible")
}

func TestSQLiteMetadataStore_SaveArtifact_UpdatesExisting(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	a := sampleArtifact("tenant-a", "art-1")
	require.NoError(t, s.SaveArtifact(ctx, a))

	a.Vendor = "Updated Vendor"
	require.NoError(t, s.SaveArtifact(ctx, a))

	got, err := s.GetArtifact(ctx, "tenant-a", "art-1")
	require.NoError(t, err)
	assert.Equal(t, "Updated Vendor", got.Vendor)
}

func TestSQLiteMetadataStore_ListArtifacts_Pagination(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		a := sampleArtifact("tenant-a", "art-"+string(rune('0'+i)))
		a.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, s.SaveArtifact(ctx, a))
	}

	page1, cursor1, err := s.ListArtifacts(ctx, "tenant-a", "", 2)
	require.NoError(t, err)
	assert.Len(t, page1, 2)
	assert.NotEmpty(t, cursor1)

	page2, cursor2, err := s.ListArtifacts(ctx, "tenant-a", cursor1, 2)
	require.NoError(t, err)
	assert.Len(t, page2, 2)
	assert.NotEmpty(t, cursor2)

	page3, cursor3, err := s.ListArtifacts(ctx, "tenant-a", cursor2, 2)
	require.NoError(t, err)
	assert.Len(t, page3, 1)
	assert.Empty(t, cursor3, "last page has no next cursor")
}

func TestSQLiteMetadataStore_DeleteArtifact_CascadesChunks(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveArtifact(ctx, sampleArtifact("tenant-a", "art-1")))
	chunk := &model.Chunk{TenantID: "tenant-a", ArtifactID: "art-1", ChunkIndex: 0, Text: "hello"}
	require.NoError(t, s.SaveChunks(ctx, []*model.Chunk{chunk}))

	require.NoError(t, s.DeleteArtifact(ctx, "tenant-a", "art-1"))

	_, err := s.GetArtifact(ctx, "tenant-a", "art-1")
	assert.Error(t, err)

	chunks, err := s.GetChunksByArtifact(ctx, "tenant-a", "art-1")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func sampleChunk(tenantID, artifactID string, index int) *model.Chunk {
	return &model.Chunk{
		TenantID:       tenantID,
		ArtifactID:     artifactID,
		ChunkIndex:     index,
		ChunkType:      model.ChunkTypePage,
		Text:           "Invoice total due 1,204.50",
		SearchableText: "invoice total due",
		TextEmbedding:  []float32{0.5, 0.6},
		Entities:       []string{"Acme Corp"},
	}
}

func TestSQLiteMetadataStore_SaveChunks_AndGetByArtifact(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	chunks := []*model.Chunk{
		sampleChunk("tenant-a", "art-1", 0),
		sampleChunk("tenant-a", "art-1", 1),
	}
	require.NoError(t, s.SaveChunks(ctx, chunks))

	got, err := s.GetChunksByArtifact(ctx, "tenant-a", "art-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].ChunkIndex)
	assert.Equal(t, 1, got[1].ChunkIndex)
}

func TestSQLiteMetadataStore_GetChunk_ByID(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	c := sampleChunk("tenant-a", "art-1", 0)
	require.NoError(t, s.SaveChunks(ctx, []*model.Chunk{c}))

	got, err := s.GetChunk(ctx, "tenant-a", c.ID())
	require.NoError(t, err)
	assert.Equal(t, "art-1", got.ArtifactID)
	assert.Equal(t, []float32{0.5, 0.6}, got.TextEmbedding)
}

func TestSQLiteMetadataStore_GetChunks_BatchByID(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	c1 := sampleChunk("tenant-a", "art-1", 0)
	c2 := sampleChunk("tenant-a", "art-1", 1)
	require.NoError(t, s.SaveChunks(ctx, []*model.Chunk{c1, c2}))

	got, err := s.GetChunks(ctx, "tenant-a", []string{c1.ID(), c2.ID(), "missing#9"})
	require.NoError(t, err)
	assert.Len(t, got, 2, "missing IDs are silently omitted")
}

func TestSQLiteMetadataStore_DeleteChunksByArtifact(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveChunks(ctx, []*model.Chunk{sampleChunk("tenant-a", "art-1", 0)}))
	require.NoError(t, s.DeleteChunksByArtifact(ctx, "tenant-a", "art-1"))

	got, err := s.GetChunksByArtifact(ctx, "tenant-a", "art-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteMetadataStore_SearchCategories_SeededWithDefaults(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	cats, err := s.ListSearchCategories(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Len(t, cats, 4)

	// Seeding is idempotent — calling again must not duplicate rows.
	cats2, err := s.ListSearchCategories(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Len(t, cats2, 4)
}

func TestSQLiteMetadataStore_SaveSearchCategory_UpdatesByType(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	cat := &model.SearchCategory{TenantID: "tenant-a", Type: model.CategoryVendor, MatchScore: 0.5}
	require.NoError(t, s.SaveSearchCategory(ctx, cat))

	cat.MatchScore = 0.75
	require.NoError(t, s.SaveSearchCategory(ctx, cat))

	cats, err := s.ListSearchCategories(ctx, "tenant-a")
	require.NoError(t, err)
	var vendor *model.SearchCategory
	for _, c := range cats {
		if c.Type == model.CategoryVendor {
			vendor = c
		}
	}
	require.NotNil(t, vendor)
	assert.Equal(t, 0.75, vendor.MatchScore)
}

func TestSQLiteMetadataStore_State_SetAndGet(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetState(ctx, "tenant-a", StateKeyIndexModel, "bge-small-en"))

	v, err := s.GetState(ctx, "tenant-a", StateKeyIndexModel)
	require.NoError(t, err)
	assert.Equal(t, "bge-small-en", v)
}

func TestSQLiteMetadataStore_State_MissingKeyReturnsEmpty(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	v, err := s.GetState(ctx, "tenant-a", "nonexistent")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestSQLiteMetadataStore_GetAllEmbeddings(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	c1 := sampleChunk("tenant-a", "art-1", 0)
	c2 := sampleChunk("tenant-a", "art-1", 1)
	c2.TextEmbedding = nil
	require.NoError(t, s.SaveChunks(ctx, []*model.Chunk{c1, c2}))

	embeddings, err := s.GetAllEmbeddings(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Len(t, embeddings, 1)
	assert.Contains(t, embeddings, c1.ID())
}

func TestSQLiteMetadataStore_GetEmbeddingStats(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	c1 := sampleChunk("tenant-a", "art-1", 0)
	c2 := sampleChunk("tenant-a", "art-1", 1)
	c2.TextEmbedding = nil
	require.NoError(t, s.SaveChunks(ctx, []*model.Chunk{c1, c2}))

	with, without, err := s.GetEmbeddingStats(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 1, with)
	assert.Equal(t, 1, without)
}

func TestSQLiteMetadataStore_IngestCheckpoint_RoundTrip(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveIngestCheckpoint(ctx, "tenant-a", "embedding", 100, 42, "bge-small-en"))

	cp, err := s.LoadIngestCheckpoint(ctx, "tenant-a")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "embedding", cp.Stage)
	assert.Equal(t, 100, cp.Total)
	assert.Equal(t, 42, cp.EmbeddedCount)

	require.NoError(t, s.ClearIngestCheckpoint(ctx, "tenant-a"))
	cp2, err := s.LoadIngestCheckpoint(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Nil(t, cp2)
}

func TestSQLiteMetadataStore_Persistence_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metadata.db")

	s1, err := NewSQLiteMetadataStore(path)
	require.NoError(t, err)

	require.NoError(t, s1.SaveArtifact(context.Background(), sampleArtifact("tenant-a", "art-1")))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteMetadataStore(path)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	got, err := s2.GetArtifact(context.Background(), "tenant-a", "art-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", got.Vendor)
}

func TestSQLiteMetadataStore_Close_Idempotent(t *testing.T) {
	s, err := NewSQLiteMetadataStore("")
	require.NoError(t, err)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
