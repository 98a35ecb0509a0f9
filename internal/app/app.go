// Package app constructs the engine's components at process startup
// and wires them together with explicit constructors rather than
// process-wide singletons. cmd/docsearch is the only caller;
// request-scoped code should depend on the narrower internal/*
// interfaces instead of on *App.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/custodia-labs/docsearch/internal/async"
	"github.com/custodia-labs/docsearch/internal/config"
	"github.com/custodia-labs/docsearch/internal/embed"
	"github.com/custodia-labs/docsearch/internal/embedclient"
	"github.com/custodia-labs/docsearch/internal/errors"
	"github.com/custodia-labs/docsearch/internal/extract"
	"github.com/custodia-labs/docsearch/internal/ingest"
	"github.com/custodia-labs/docsearch/internal/logging"
	"github.com/custodia-labs/docsearch/internal/preflight"
	"github.com/custodia-labs/docsearch/internal/provider"
	"github.com/custodia-labs/docsearch/internal/reindex"
	"github.com/custodia-labs/docsearch/internal/search"
	"github.com/custodia-labs/docsearch/internal/store"
	"github.com/custodia-labs/docsearch/internal/suggest"
	"github.com/custodia-labs/docsearch/internal/telemetry"
)

// App is the fully-wired engine: every pipeline component, constructed
// once at startup and shared by every request-scoped call (CLI command
// or RPC handler).
type App struct {
	Config *config.Config
	Logger *slog.Logger

	DataDir string

	Store      store.MetadataStore
	BM25       store.BM25Index
	Suggest    *suggest.Index
	Blob       provider.BlobStore
	Embed      *embedclient.Client
	Extractors *extract.Registry

	Ingest  *ingest.Orchestrator
	Search  *search.Service
	Reindex *reindex.Orchestrator
	Metrics *telemetry.QueryMetrics

	redisClient  *redis.Client
	miniRedis    *miniredis.Miniredis
	embedBreaker *errors.CircuitBreaker
	visionCB     *errors.CircuitBreaker

	mu            sync.Mutex
	artifactVecs  map[string]store.VectorStore
	chunkVecs     map[string]store.VectorStore
	embedDims     int
	metricsDBPath string
}

// Options configures New beyond what Config carries: the on-disk
// locations the SQLite-backed stores live under, split out so tests
// can point at a temp dir without mutating Config.
type Options struct {
	// DataDir holds the metadata DB, per-tenant vector indexes, BM25
	// index, and telemetry DB. Empty selects an in-memory/ephemeral
	// store, suitable for tests.
	DataDir string
}

// New builds an App from cfg, opening or creating the on-disk stores
// under opts.DataDir and dialing (or faking) the suggestion store's
// Redis backend. Callers must call Close when done.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		Config:       cfg,
		Logger:       logger,
		DataDir:      opts.DataDir,
		artifactVecs: make(map[string]store.VectorStore),
		chunkVecs:    make(map[string]store.VectorStore),
	}

	if a.DataDir != "" {
		if err := os.MkdirAll(a.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	metaPath := ""
	if a.DataDir != "" {
		metaPath = filepath.Join(a.DataDir, "metadata.db")
	}
	metaStore, err := store.NewSQLiteMetadataStore(metaPath)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	a.Store = metaStore

	bm25Base := ""
	if a.DataDir != "" {
		bm25Base = store.GetBM25IndexPath(a.DataDir)
	}
	bm25Backend := cfg.Search.BM25Backend
	if a.DataDir != "" {
		if detected := store.DetectBM25Backend(a.DataDir); detected != "" {
			bm25Backend = string(detected)
		}
	}
	bm25, err := store.NewBM25IndexWithBackend(bm25Base, store.DefaultBM25Config(), bm25Backend)
	if err != nil {
		return nil, fmt.Errorf("open bm25 index: %w", err)
	}
	a.BM25 = bm25

	if err := a.dialRedis(cfg.Redis); err != nil {
		return nil, fmt.Errorf("connect suggestion store: %w", err)
	}
	a.Suggest = suggest.New(a.redisClient)

	a.Blob = provider.NewMemoryBlobStore()

	embedder, err := a.buildEmbedder(ctx, cfg.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}
	a.embedBreaker = errors.NewCircuitBreaker("embedding-provider",
		errors.WithMaxFailures(5),
		errors.WithResetTimeout(30*time.Second),
	)
	wrappedEmbedder := newCircuitEmbedder(embedder, a.embedBreaker)
	a.embedDims = wrappedEmbedder.Dimensions()
	a.Embed = embedclient.New(wrappedEmbedder, cfg.Search.ChunkOverlap)

	vision, ocr := a.buildVisionCollaborators(cfg.Providers)
	a.Extractors = extract.NewRegistry(vision, ocr, a.Embed.Embed)

	a.Ingest = ingest.New(a.Extractors, a.Embed, a.Store, a.Suggest, a.BM25, a.artifactVectorStore, a.chunkVectorStore)

	a.Search = search.NewService(a.Store, a, a.Embed.Embed, cfg.Tenancy)
	a.Search.BM25 = a.BM25
	a.Search.ArtifactCandidateLimit = cfg.Search.MaxResults * 50
	if a.Search.ArtifactCandidateLimit <= 0 {
		a.Search.ArtifactCandidateLimit = 1000
	}
	a.Search.ChunkCandidateLimit = a.Search.ArtifactCandidateLimit

	a.Reindex = reindex.New(a.Store, a.Embed, a.Suggest, a.BM25, a.artifactVectorStore, a.chunkVectorStore)

	metricsPath := ""
	if a.DataDir != "" {
		metricsPath = filepath.Join(a.DataDir, "telemetry.db")
	}
	if metricsStore, mErr := openMetricsStore(metricsPath); mErr != nil {
		logger.Warn("telemetry store unavailable, metrics disabled", "error", mErr)
	} else {
		a.metricsDBPath = metricsPath
		a.Metrics = telemetry.NewQueryMetrics(metricsStore)
	}

	return a, nil
}

// Preflight runs the disk/memory/file-descriptor checks
// (internal/preflight) against DataDir before serving traffic:
// storage-capacity and resource-limit checks for the SQLite/HNSW/BM25
// stack this engine runs.
func (a *App) Preflight(ctx context.Context) []preflight.CheckResult {
	checker := preflight.New(preflight.WithOutput(os.Stderr))
	dir := a.DataDir
	if dir == "" {
		dir = os.TempDir()
	}
	results := []preflight.CheckResult{
		checker.CheckDiskSpace(dir),
		checker.CheckMemory(),
		checker.CheckFileDescriptors(),
		checker.CheckWritePermissions(dir),
		checker.CheckEmbedderModel(),
		checker.CheckEmbedderDiskSpace(),
	}
	return results
}

// Close releases every owned resource: the metadata store, BM25
// index, all per-tenant vector stores, the telemetry store, and the
// suggestion store's Redis connection (or embedded miniredis).
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(a.Store.Close())
	record(a.BM25.Close())
	for _, vs := range a.artifactVecs {
		record(vs.Close())
	}
	for _, vs := range a.chunkVecs {
		record(vs.Close())
	}
	if a.Metrics != nil {
		record(a.Metrics.Close())
	}
	if a.redisClient != nil {
		record(a.redisClient.Close())
	}
	if a.miniRedis != nil {
		a.miniRedis.Close()
	}
	return firstErr
}

// dialRedis connects to the configured Redis instance, or starts an
// embedded miniredis when no address is configured — the same
// zero-dependency default experience the CLI's other stores offer
// (SQLite/HNSW are both embedded; the suggestion store follows suit
// unless a real Redis is pointed at).
func (a *App) dialRedis(cfg config.RedisConfig) error {
	addr := cfg.Addr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start embedded redis: %w", err)
		}
		a.miniRedis = mr
		addr = mr.Addr()
	}
	a.redisClient = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return nil
}

// buildEmbedder selects the configured embedding provider via
// internal/embed's factory (Ollama by default, static fallback when
// unreachable), then wraps it with CachedEmbedder's in-process LRU
// keyed on content hash.
func (a *App) buildEmbedder(ctx context.Context, cfg config.EmbeddingsConfig) (provider.EmbeddingProvider, error) {
	providerType := embed.ProviderType(cfg.Provider)
	if providerType == "" {
		providerType = embed.ProviderOllama
	}
	embedder, err := embed.NewEmbedder(ctx, providerType, cfg.Model)
	if err != nil {
		return nil, err
	}
	// The factory already wraps with the default-size cache unless the
	// env kill-switch disabled it; only wrap here when it didn't.
	if _, cached := embedder.(*embed.CachedEmbedder); !cached {
		cacheSize := cfg.CacheSize
		if cacheSize <= 0 {
			cacheSize = 2000
		}
		embedder = embed.NewCachedEmbedder(embedder, cacheSize)
	}
	return embedder, nil
}

// buildVisionCollaborators wires the HTTP-backed vision/OCR clients
// (internal/provider/httpvision.go), each guarded by its own circuit
// breaker. Empty endpoints yield permanently-unavailable collaborators,
// which is the documented degrade path, not an
// error.
func (a *App) buildVisionCollaborators(cfg config.ProvidersConfig) (provider.VisionProvider, provider.OCREngine) {
	a.visionCB = errors.NewCircuitBreaker("vision-provider",
		errors.WithMaxFailures(3),
		errors.WithResetTimeout(30*time.Second),
	)
	vis := newCircuitVision(provider.NewHTTPVisionProvider(cfg.VisionEndpoint, cfg.VisionTimeout), a.visionCB)
	ocr := provider.NewHTTPOCREngine(cfg.OCREndpoint, cfg.OCRTimeout)
	return vis, ocr
}

func openMetricsStore(path string) (*telemetry.SQLiteMetricsStore, error) {
	dsn := ":memory:"
	if path != "" {
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open telemetry database: %w", err)
	}
	if err := telemetry.InitTelemetrySchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init telemetry schema: %w", err)
	}
	return telemetry.NewSQLiteMetricsStore(db)
}

// artifactVectorStore and chunkVectorStore implement
// ingest.VectorStoreLookup, lazily constructing one HNSW graph per
// tenant per kind the first time it is needed, persisted under
// DataDir/vectors/<tenant>-{artifact,chunk}.gob.
func (a *App) artifactVectorStore(tenantID string) (store.VectorStore, error) {
	return a.vectorStore(a.artifactVecs, tenantID, "artifact")
}

func (a *App) chunkVectorStore(tenantID string) (store.VectorStore, error) {
	return a.vectorStore(a.chunkVecs, tenantID, "chunk")
}

func (a *App) vectorStore(bucket map[string]store.VectorStore, tenantID, kind string) (store.VectorStore, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if vs, ok := bucket[tenantID]; ok {
		return vs, nil
	}

	dims := a.embedDims
	if dims <= 0 {
		dims = 768
	}
	cfg := store.DefaultVectorStoreConfig(dims)
	vs, err := store.NewHNSWStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s vector store for tenant %s: %w", kind, tenantID, err)
	}

	if a.DataDir != "" {
		path := filepath.Join(a.DataDir, "vectors", tenantID+"-"+kind+".gob")
		if err := vs.Load(path); err != nil {
			a.Logger.Debug("no existing vector index to load, starting fresh", "tenant", tenantID, "kind", kind, "error", err)
		}
	}

	bucket[tenantID] = vs
	return vs, nil
}

// ArtifactStore implements search.VectorStores.
func (a *App) ArtifactStore(tenantID string) (store.VectorStore, error) {
	return a.artifactVectorStore(tenantID)
}

// ChunkStore implements search.VectorStores.
func (a *App) ChunkStore(tenantID string) (store.VectorStore, error) {
	return a.chunkVectorStore(tenantID)
}

// SaveVectorIndexes persists every tenant's in-memory HNSW graphs to
// DataDir/vectors, so a restart resumes from the last known state
// instead of rebuilding from the metadata store. Call before Close on
// a clean shutdown; an interrupted process relies on reindex to repair
// state on the next event.
func (a *App) SaveVectorIndexes() error {
	if a.DataDir == "" {
		return nil
	}
	dir := filepath.Join(a.DataDir, "vectors")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	save := func(bucket map[string]store.VectorStore, kind string) {
		for tenantID, vs := range bucket {
			path := filepath.Join(dir, tenantID+"-"+kind+".gob")
			if err := vs.Save(path); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("save %s vector index for tenant %s: %w", kind, tenantID, err)
			}
		}
	}
	save(a.artifactVecs, "artifact")
	save(a.chunkVecs, "chunk")
	return firstErr
}

// StartBackgroundIndexer wraps fn (typically a batch-ingest walk) in
// a BackgroundIndexer (internal/async), reporting progress
// through the returned *async.IndexProgress so a CLI command can poll
// or print it while the walk runs.
func (a *App) StartBackgroundIndexer(ctx context.Context, fn async.IndexFunc) *async.BackgroundIndexer {
	dataDir := a.DataDir
	if dataDir == "" {
		dataDir = os.TempDir()
	}
	indexer := async.NewBackgroundIndexer(async.IndexerConfig{DataDir: dataDir})
	indexer.IndexFunc = fn
	indexer.Start(ctx)
	return indexer
}

// Stats assembles a tenant's store.IndexInfo for the `docsearch stats`
// command: artifact/chunk counts and index sizes from the metadata,
// BM25, and vector stores, plus the embedding model/dimension the
// index was built with compared against the currently configured
// embedder.
func (a *App) Stats(ctx context.Context, tenantID string) (*store.IndexInfo, error) {
	info := &store.IndexInfo{TenantID: tenantID}

	artifactCount, err := a.Store.CountArtifacts(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("count artifacts: %w", err)
	}
	info.ArtifactCount = artifactCount

	chunkCount, err := a.Store.CountChunks(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	info.ChunkCount = chunkCount

	createdAt, updatedAt, err := a.Store.ArtifactTimeRange(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("artifact time range: %w", err)
	}
	info.CreatedAt, info.UpdatedAt = createdAt, updatedAt

	if v, err := a.Store.GetState(ctx, tenantID, store.StateKeyIndexModel); err == nil {
		info.IndexModel = v
	}
	if v, err := a.Store.GetState(ctx, tenantID, store.StateKeyIndexDimension); err == nil && v != "" {
		fmt.Sscanf(v, "%d", &info.IndexDimensions)
	}

	info.CurrentModel = a.Embed.ModelName()
	info.CurrentDimensions = a.Embed.Dimensions()
	info.Compatible = info.IndexDimensions == 0 || info.IndexDimensions == info.CurrentDimensions

	if a.DataDir != "" {
		info.BM25SizeBytes = fileSize(filepath.Join(a.DataDir, "bm25.db"))
		info.VectorSizeBytes = fileSize(filepath.Join(a.DataDir, "vectors", tenantID+"-artifact.gob")) +
			fileSize(filepath.Join(a.DataDir, "vectors", tenantID+"-chunk.gob"))
		info.IndexSizeBytes = fileSize(filepath.Join(a.DataDir, "metadata.db")) + info.BM25SizeBytes + info.VectorSizeBytes
	}

	return info, nil
}

func fileSize(path string) int64 {
	if path == "" {
		return 0
	}
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

// EnsureLogging applies the given level and path (falling back to
// logging.DefaultConfig) and returns the resulting logger plus a
// cleanup func, matching internal/logging.Setup's contract.
func EnsureLogging(level string, logPath string) (*slog.Logger, func(), error) {
	cfg := logging.DefaultConfig()
	if level != "" {
		cfg.Level = level
	}
	if logPath != "" {
		cfg.FilePath = logPath
	}
	return logging.Setup(cfg)
}
