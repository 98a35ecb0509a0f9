package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/custodia-labs/docsearch/internal/config"
	"github.com/custodia-labs/docsearch/internal/model"
	"github.com/custodia-labs/docsearch/internal/normalize"
	"github.com/custodia-labs/docsearch/internal/store"
)

// fakeStore is a minimal in-memory store.MetadataStore for exercising
// the search strategies without a real database.
type fakeStore struct {
	artifacts  map[string]*model.Artifact
	chunks     map[string]*model.Chunk
	categories map[string][]*model.SearchCategory

	// unlisted chunk IDs are returned by GetChunk but hidden from
	// ListChunks, simulating chunks outside the bounded candidate scan.
	unlisted map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{artifacts: map[string]*model.Artifact{}, chunks: map[string]*model.Chunk{}}
}

func (f *fakeStore) addArtifact(a *model.Artifact) { f.artifacts[a.ID] = a }
func (f *fakeStore) addChunk(c *model.Chunk)       { f.chunks[c.ID()] = c }

func (f *fakeStore) SaveArtifact(ctx context.Context, a *model.Artifact) error { return nil }
func (f *fakeStore) GetArtifact(ctx context.Context, tenantID, id string) (*model.Artifact, error) {
	a, ok := f.artifacts[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return a, nil
}
func (f *fakeStore) ListArtifacts(ctx context.Context, tenantID, cursor string, limit int) ([]*model.Artifact, string, error) {
	var out []*model.Artifact
	for _, a := range f.artifacts {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, "", nil
}
func (f *fakeStore) DeleteArtifact(ctx context.Context, tenantID, id string) error { return nil }
func (f *fakeStore) SaveChunks(ctx context.Context, chunks []*model.Chunk) error   { return nil }
func (f *fakeStore) GetChunk(ctx context.Context, tenantID, id string) (*model.Chunk, error) {
	c, ok := f.chunks[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return c, nil
}
func (f *fakeStore) GetChunks(ctx context.Context, tenantID string, ids []string) ([]*model.Chunk, error) {
	return nil, nil
}
func (f *fakeStore) GetChunksByArtifact(ctx context.Context, tenantID, artifactID string) ([]*model.Chunk, error) {
	return nil, nil
}
func (f *fakeStore) ListChunks(ctx context.Context, tenantID string, limit int) ([]*model.Chunk, error) {
	var out []*model.Chunk
	for _, c := range f.chunks {
		if c.TenantID == tenantID && !f.unlisted[c.ID()] {
			out = append(out, c)
		}
	}
	return out, nil
}
func (f *fakeStore) DeleteChunksByArtifact(ctx context.Context, tenantID, artifactID string) error {
	return nil
}
func (f *fakeStore) SaveSearchCategory(ctx context.Context, cat *model.SearchCategory) error {
	if f.categories == nil {
		f.categories = map[string][]*model.SearchCategory{}
	}
	f.categories[cat.TenantID] = append(f.categories[cat.TenantID], cat)
	return nil
}

// ListSearchCategories mirrors the real store's lazy-seed behavior: a
// tenant with no saved categories is seeded with the four defaults.
func (f *fakeStore) ListSearchCategories(ctx context.Context, tenantID string) ([]*model.SearchCategory, error) {
	if cats, ok := f.categories[tenantID]; ok {
		return cats, nil
	}
	return model.DefaultSearchCategories(tenantID), nil
}
func (f *fakeStore) GetState(ctx context.Context, tenantID, key string) (string, error) {
	return "", nil
}
func (f *fakeStore) SetState(ctx context.Context, tenantID, key, value string) error { return nil }
func (f *fakeStore) GetAllEmbeddings(ctx context.Context, tenantID string) (map[string][]float32, error) {
	return nil, nil
}
func (f *fakeStore) GetEmbeddingStats(ctx context.Context, tenantID string) (int, int, error) {
	return 0, 0, nil
}
func (f *fakeStore) CountArtifacts(ctx context.Context, tenantID string) (int, error) {
	return len(f.artifacts), nil
}
func (f *fakeStore) CountChunks(ctx context.Context, tenantID string) (int, error) {
	return len(f.chunks), nil
}
func (f *fakeStore) ArtifactTimeRange(ctx context.Context, tenantID string) (time.Time, time.Time, error) {
	return time.Time{}, time.Time{}, nil
}
func (f *fakeStore) SaveIngestCheckpoint(ctx context.Context, tenantID, stage string, total, embedded int, model string) error {
	return nil
}
func (f *fakeStore) LoadIngestCheckpoint(ctx context.Context, tenantID string) (*store.IngestCheckpoint, error) {
	return nil, nil
}
func (f *fakeStore) ClearIngestCheckpoint(ctx context.Context, tenantID string) error { return nil }
func (f *fakeStore) Close() error                                                    { return nil }

// fakeVectorStores implements VectorStores with no vector indices,
// used by tests exercising only the keyword strategy.
type fakeVectorStores struct{}

func (fakeVectorStores) ArtifactStore(tenantID string) (store.VectorStore, error) { return nil, nil }
func (fakeVectorStores) ChunkStore(tenantID string) (store.VectorStore, error)    { return nil, nil }

func noopEmbed(ctx context.Context, text string) ([]float32, error) { return nil, nil }

// fakeBM25 is a canned store.BM25Index that returns fixed hits,
// standing in for the real index in recall-path tests.
type fakeBM25 struct {
	hits []*store.BM25Result
}

func (f *fakeBM25) Index(ctx context.Context, docs []*store.Document) error { return nil }
func (f *fakeBM25) Search(ctx context.Context, query string, limit int) ([]*store.BM25Result, error) {
	return f.hits, nil
}
func (f *fakeBM25) Delete(ctx context.Context, docIDs []string) error { return nil }
func (f *fakeBM25) AllIDs() ([]string, error)                         { return nil, nil }
func (f *fakeBM25) Stats() *store.IndexStats                          { return &store.IndexStats{} }
func (f *fakeBM25) Save(path string) error                            { return nil }
func (f *fakeBM25) Load(path string) error                            { return nil }
func (f *fakeBM25) Close() error                                      { return nil }

func testTenancy() config.TenancyConfig {
	return config.TenancyConfig{
		HybridBM25Weight:        0.4,
		HybridSemanticWeight:    0.6,
		SemanticThresholdStrict: 0.15,
		SemanticThresholdLoose:  0.05,
	}
}

func newChunk(artifactID string, idx int, text string) *model.Chunk {
	return &model.Chunk{
		ArtifactID:     artifactID,
		ChunkIndex:     idx,
		TenantID:       "tenant-a",
		ChunkType:      model.ChunkTypeParagraph,
		Text:           text,
		TextNormalized: normalize.Normalize(text, true),
		SearchableText: normalize.CreateSearchableText(text),
		CreatedAt:      time.Now(),
	}
}

func TestKeywordExactPhraseMatch(t *testing.T) {
	st := newFakeStore()
	st.addArtifact(&model.Artifact{ID: "a1", TenantID: "tenant-a", FileName: "note.txt", FileKind: model.FileKindText})
	st.addChunk(newChunk("a1", 0, "Jak se formuje datova budoucnost"))

	svc := NewService(st, fakeVectorStores{}, noopEmbed, testTenancy())
	resp := svc.Search(context.Background(), Request{Query: "datova budoucnost", TenantID: "tenant-a", Limit: 10, Mode: ModeKeyword})

	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("Results = %+v, want 1 result", resp.Results)
	}
	if resp.Results[0].Score != 1.0 || resp.Results[0].MatchType != MatchExactPhrase {
		t.Errorf("Results[0] = %+v, want score 1.0 exact_phrase", resp.Results[0])
	}
}

func TestKeywordFileNameMatch(t *testing.T) {
	st := newFakeStore()
	st.addArtifact(&model.Artifact{ID: "a1", TenantID: "tenant-a", FileName: "invoice-acme.pdf", FileKind: model.FileKindPDF})

	svc := NewService(st, fakeVectorStores{}, noopEmbed, testTenancy())
	resp := svc.Search(context.Background(), Request{Query: "invoice-acme", TenantID: "tenant-a", Limit: 10, Mode: ModeKeyword})

	if len(resp.Results) != 1 || resp.Results[0].Score != 1.0 || resp.Results[0].MatchedField != "file_name" {
		t.Errorf("Results = %+v, want file_name match at 1.0", resp.Results)
	}
}

func TestAutoRouteShortQueryIsKeyword(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, fakeVectorStores{}, noopEmbed, testTenancy())
	resp := svc.Search(context.Background(), Request{Query: "invoice pdf", TenantID: "tenant-a", Limit: 10})
	if resp.Mode != ModeKeyword {
		t.Errorf("Mode = %s, want keyword for a 2-word query with no money/date/vendor", resp.Mode)
	}
}

func TestAutoRouteVendorQueryIsHybrid(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, fakeVectorStores{}, noopEmbed, testTenancy())
	resp := svc.Search(context.Background(), Request{Query: "invoice from Google LLC", TenantID: "tenant-a", Limit: 10})
	if resp.Mode != ModeHybrid {
		t.Errorf("Mode = %s, want hybrid for a query carrying a vendor mention", resp.Mode)
	}
}

// TestAutoRouteCategoryVendorQueryIsHybrid uses a lowercase query with
// no legal suffix, so internal/analyze's regex vendor detector finds
// nothing. Routing to hybrid here can only come from the default vendor
// SearchCategory's "from" trigger keyword.
func TestAutoRouteCategoryVendorQueryIsHybrid(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, fakeVectorStores{}, noopEmbed, testTenancy())
	resp := svc.Search(context.Background(), Request{Query: "invoice from google", TenantID: "tenant-a", Limit: 10})
	if resp.Mode != ModeHybrid {
		t.Errorf("Mode = %s, want hybrid for a category-triggered vendor query", resp.Mode)
	}
}

// TestCategoryVendorQueryMatchesVendorArtifact checks that the
// lowercase query's leftover word ("google") matches
// an artifact whose extracted vendor is "google" at the 0.95 vendor
// score, even though the regex vendor detector sees nothing in the query.
func TestCategoryVendorQueryMatchesVendorArtifact(t *testing.T) {
	st := newFakeStore()
	st.addArtifact(&model.Artifact{
		ID: "a1", TenantID: "tenant-a", FileName: "google-receipt.eml",
		Vendor: "google", Currency: "USD", AmountsCents: []int64{930},
	})

	svc := NewService(st, fakeVectorStores{}, noopEmbed, testTenancy())
	resp := svc.Search(context.Background(), Request{Query: "invoice from google", TenantID: "tenant-a", Limit: 10})

	if resp.Mode != ModeHybrid {
		t.Fatalf("Mode = %s, want hybrid", resp.Mode)
	}
	if len(resp.Results) == 0 {
		t.Fatal("Results empty, want the vendor-matched artifact")
	}
	r := resp.Results[0]
	if r.Vendor != "google" || r.Score < 0.95 {
		t.Errorf("Results[0] = %+v, want vendor=google at >= 0.95", r)
	}
}

// TestKeywordBM25RecallFindsUnscannedChunk exercises the recall pass:
// a chunk hidden from the bounded candidate scan is still found because
// the BM25 index ranks it for the query, and it scores through the same
// exact-phrase cascade as scanned chunks.
func TestKeywordBM25RecallFindsUnscannedChunk(t *testing.T) {
	st := newFakeStore()
	st.addArtifact(&model.Artifact{ID: "a1", TenantID: "tenant-a", FileName: "deep.txt", FileKind: model.FileKindText})
	c := newChunk("a1", 0, "payment schedule for the warehouse lease")
	st.addChunk(c)
	st.unlisted = map[string]bool{c.ID(): true}

	svc := NewService(st, fakeVectorStores{}, noopEmbed, testTenancy())

	// Without BM25 the hidden chunk is unreachable.
	resp := svc.Search(context.Background(), Request{Query: "payment schedule for the warehouse lease", TenantID: "tenant-a", Limit: 10, Mode: ModeKeyword})
	if len(resp.Results) != 0 {
		t.Fatalf("Results = %+v, want none while the chunk is outside the scan and no BM25 is wired", resp.Results)
	}

	svc.BM25 = &fakeBM25{hits: []*store.BM25Result{{DocID: c.ID(), Score: 7.2}}}
	resp = svc.Search(context.Background(), Request{Query: "payment schedule for the warehouse lease", TenantID: "tenant-a", Limit: 10, Mode: ModeKeyword})

	if len(resp.Results) != 1 {
		t.Fatalf("Results = %+v, want the BM25-recalled chunk", resp.Results)
	}
	r := resp.Results[0]
	if r.Score != 1.0 || r.MatchType != MatchExactPhrase {
		t.Errorf("Results[0] = %+v, want the cascade's exact-phrase score, not the raw BM25 score", r)
	}
	if r.MatchedInChunk != c.ID() {
		t.Errorf("MatchedInChunk = %q, want %q", r.MatchedInChunk, c.ID())
	}
}

// TestKeywordBM25RecallSkipsForeignTenant checks the recall pass never
// lifts another tenant's chunk even if the shared BM25 index ranks it.
func TestKeywordBM25RecallSkipsForeignTenant(t *testing.T) {
	st := newFakeStore()
	st.addArtifact(&model.Artifact{ID: "b1", TenantID: "tenant-b", FileName: "other.txt", FileKind: model.FileKindText})
	foreign := &model.Chunk{
		ArtifactID:     "b1",
		ChunkIndex:     0,
		TenantID:       "tenant-b",
		ChunkType:      model.ChunkTypeParagraph,
		Text:           "payment schedule for the warehouse lease",
		TextNormalized: normalize.Normalize("payment schedule for the warehouse lease", true),
		SearchableText: normalize.CreateSearchableText("payment schedule for the warehouse lease"),
	}
	st.addChunk(foreign)

	svc := NewService(st, fakeVectorStores{}, noopEmbed, testTenancy())
	svc.BM25 = &fakeBM25{hits: []*store.BM25Result{{DocID: foreign.ID(), Score: 7.2}}}

	resp := svc.Search(context.Background(), Request{Query: "payment schedule for the warehouse lease", TenantID: "tenant-a", Limit: 10, Mode: ModeKeyword})
	if len(resp.Results) != 0 {
		t.Errorf("Results = %+v, want none across tenants", resp.Results)
	}
}

func TestSearchNeverErrorsOnEmptyTenant(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, fakeVectorStores{}, noopEmbed, testTenancy())
	resp := svc.Search(context.Background(), Request{Query: "anything", TenantID: "tenant-nobody", Limit: 10, Mode: ModeKeyword})
	if resp.Error != "" {
		t.Errorf("unexpected error for empty tenant: %s", resp.Error)
	}
	if len(resp.Results) != 0 {
		t.Errorf("Results = %v, want empty", resp.Results)
	}
}

func TestDeepLinkCarriesPageNumber(t *testing.T) {
	st := newFakeStore()
	st.addArtifact(&model.Artifact{ID: "a1", TenantID: "tenant-a", FileName: "report.pdf", FileKind: model.FileKindPDF})
	page := 3
	c := newChunk("a1", 0, "annual revenue figures for the year")
	c.Locator.PageNumber = &page
	st.addChunk(c)

	svc := NewService(st, fakeVectorStores{}, noopEmbed, testTenancy())
	resp := svc.Search(context.Background(), Request{Query: "annual revenue figures for the year", TenantID: "tenant-a", Limit: 10, Mode: ModeKeyword})

	if len(resp.Results) != 1 {
		t.Fatalf("Results = %+v, want 1 result", resp.Results)
	}
	if want := "/resources/a1?page=3"; resp.Results[0].OpenURL != want {
		t.Errorf("OpenURL = %q, want %q", resp.Results[0].OpenURL, want)
	}
}
