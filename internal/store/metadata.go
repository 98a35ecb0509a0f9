package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/custodia-labs/docsearch/internal/model"
)

// SQLiteMetadataStore implements MetadataStore on top of SQLite, using the
// same pure-Go driver and WAL configuration as SQLiteBM25Index so a
// tenant's metadata and keyword index can share a data directory safely
// under concurrent access.
type SQLiteMetadataStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

var _ MetadataStore = (*SQLiteMetadataStore)(nil)

// NewSQLiteMetadataStore opens (or creates) a metadata database at path.
// An empty path opens an in-memory database, for tests.
func NewSQLiteMetadataStore(path string) (*SQLiteMetadataStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteMetadataStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteMetadataStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);
	INSERT OR IGNORE INTO schema_version (version) VALUES (1);

	CREATE TABLE IF NOT EXISTS artifacts (
		tenant_id TEXT NOT NULL,
		id TEXT NOT NULL,
		owner_id TEXT,
		uri TEXT,
		file_name TEXT,
		description TEXT,
		mime_type TEXT,
		kind TEXT,
		file_kind TEXT,
		size_bytes INTEGER,
		tags TEXT,
		vendor TEXT,
		currency TEXT,
		amounts_cents TEXT,
		entities TEXT,
		keywords TEXT,
		dates TEXT,
		summary TEXT,
		text_embedding BLOB,
		image_embedding BLOB,
		image_labels TEXT,
		ocr_text TEXT,
		type_metadata TEXT,
		created_at TEXT,
		updated_at TEXT,
		PRIMARY KEY (tenant_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_tenant_created ON artifacts(tenant_id, created_at);

	CREATE TABLE IF NOT EXISTS chunks (
		tenant_id TEXT NOT NULL,
		id TEXT NOT NULL,
		artifact_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		chunk_type TEXT,
		locator TEXT,
		text TEXT,
		ocr_text TEXT,
		caption TEXT,
		description TEXT,
		labels TEXT,
		text_embedding BLOB,
		caption_embedding BLOB,
		vendor TEXT,
		currency TEXT,
		amounts_cents TEXT,
		entities TEXT,
		keywords TEXT,
		dates TEXT,
		text_normalized TEXT,
		ocr_text_normalized TEXT,
		searchable_text TEXT,
		created_at TEXT,
		updated_at TEXT,
		PRIMARY KEY (tenant_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_tenant_artifact ON chunks(tenant_id, artifact_id);

	CREATE TABLE IF NOT EXISTS search_categories (
		tenant_id TEXT NOT NULL,
		type TEXT NOT NULL,
		entities TEXT,
		ignored_words TEXT,
		trigger_keywords TEXT,
		max_non_category_words INTEGER,
		match_score REAL,
		PRIMARY KEY (tenant_id, type)
	);

	CREATE TABLE IF NOT EXISTS kv_state (
		tenant_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT,
		PRIMARY KEY (tenant_id, key)
	);

	CREATE TABLE IF NOT EXISTS ingest_checkpoints (
		tenant_id TEXT PRIMARY KEY,
		stage TEXT,
		total INTEGER,
		embedded_count INTEGER,
		timestamp TEXT,
		embedder_model TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func jsonEncode(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func jsonDecode[T any](s string, out *T) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), out)
}

func encodeFloats(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	b, _ := json.Marshal(v)
	return b
}

func decodeFloats(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	var v []float32
	_ = json.Unmarshal(b, &v)
	return v
}

// SaveArtifact inserts or replaces an artifact row.
func (s *SQLiteMetadataStore) SaveArtifact(ctx context.Context, a *model.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}

	tags, err := jsonEncode(a.Tags)
	if err != nil {
		return err
	}
	amounts, err := jsonEncode(a.AmountsCents)
	if err != nil {
		return err
	}
	entities, err := jsonEncode(a.Entities)
	if err != nil {
		return err
	}
	keywords, err := jsonEncode(a.Keywords)
	if err != nil {
		return err
	}
	dates, err := jsonEncode(a.Dates)
	if err != nil {
		return err
	}
	imageLabels, err := jsonEncode(a.ImageLabels)
	if err != nil {
		return err
	}
	typeMeta, err := jsonEncode(a.TypeMetadata)
	if err != nil {
		return err
	}

	now := a.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artifacts (
			tenant_id, id, owner_id, uri, file_name, description, mime_type, kind, file_kind,
			size_bytes, tags, vendor, currency, amounts_cents, entities, keywords, dates,
			summary, text_embedding, image_embedding, image_labels, ocr_text, type_metadata,
			created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			owner_id=excluded.owner_id, uri=excluded.uri, file_name=excluded.file_name,
			description=excluded.description, mime_type=excluded.mime_type, kind=excluded.kind,
			file_kind=excluded.file_kind, size_bytes=excluded.size_bytes, tags=excluded.tags,
			vendor=excluded.vendor, currency=excluded.currency, amounts_cents=excluded.amounts_cents,
			entities=excluded.entities, keywords=excluded.keywords, dates=excluded.dates,
			summary=excluded.summary, text_embedding=excluded.text_embedding,
			image_embedding=excluded.image_embedding, image_labels=excluded.image_labels,
			ocr_text=excluded.ocr_text, type_metadata=excluded.type_metadata,
			updated_at=excluded.updated_at
	`,
		a.TenantID, a.ID, a.OwnerID, a.URI, a.FileName, a.Description, a.MimeType,
		string(a.Kind), string(a.FileKind), a.SizeBytes, tags, a.Vendor, a.Currency,
		amounts, entities, keywords, dates, a.Summary, encodeFloats(a.TextEmbedding),
		encodeFloats(a.ImageEmbedding), imageLabels, a.OCRText, typeMeta,
		a.CreatedAt.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	return err
}

// GetArtifact retrieves a single artifact, scoped to tenantID.
func (s *SQLiteMetadataStore) GetArtifact(ctx context.Context, tenantID, id string) (*model.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	row := s.db.QueryRowContext(ctx, `SELECT
		tenant_id, id, owner_id, uri, file_name, description, mime_type, kind, file_kind,
		size_bytes, tags, vendor, currency, amounts_cents, entities, keywords, dates,
		summary, text_embedding, image_embedding, image_labels, ocr_text, type_metadata,
		created_at, updated_at
		FROM artifacts WHERE tenant_id = ? AND id = ?`, tenantID, id)

	a, err := scanArtifact(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("artifact %s not found for tenant %s: %w", id, tenantID, err)
	}
	return a, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*model.Artifact, error) {
	var a model.Artifact
	var kind, fileKind string
	var tags, amounts, entities, keywords, dates, imageLabels, typeMeta string
	var textEmbedding, imageEmbedding []byte
	var createdAt, updatedAt string

	err := row.Scan(
		&a.TenantID, &a.ID, &a.OwnerID, &a.URI, &a.FileName, &a.Description, &a.MimeType,
		&kind, &fileKind, &a.SizeBytes, &tags, &a.Vendor, &a.Currency, &amounts, &entities,
		&keywords, &dates, &a.Summary, &textEmbedding, &imageEmbedding, &imageLabels,
		&a.OCRText, &typeMeta, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Kind = model.Kind(kind)
	a.FileKind = model.FileKind(fileKind)
	_ = jsonDecode(tags, &a.Tags)
	_ = jsonDecode(amounts, &a.AmountsCents)
	_ = jsonDecode(entities, &a.Entities)
	_ = jsonDecode(keywords, &a.Keywords)
	_ = jsonDecode(dates, &a.Dates)
	_ = jsonDecode(imageLabels, &a.ImageLabels)
	_ = jsonDecode(typeMeta, &a.TypeMetadata)
	a.TextEmbedding = decodeFloats(textEmbedding)
	a.ImageEmbedding = decodeFloats(imageEmbedding)
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	return &a, nil
}

// ListArtifacts returns a page of artifacts ordered by creation time, with
// id as a tiebreaker, using a created_at|id cursor for stable pagination.
func (s *SQLiteMetadataStore) ListArtifacts(ctx context.Context, tenantID string, cursor string, limit int) ([]*model.Artifact, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, "", fmt.Errorf("metadata store is closed")
	}
	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	query := `SELECT
		tenant_id, id, owner_id, uri, file_name, description, mime_type, kind, file_kind,
		size_bytes, tags, vendor, currency, amounts_cents, entities, keywords, dates,
		summary, text_embedding, image_embedding, image_labels, ocr_text, type_metadata,
		created_at, updated_at
		FROM artifacts WHERE tenant_id = ?`

	if cursor == "" {
		rows, err = s.db.QueryContext(ctx, query+` ORDER BY created_at, id LIMIT ?`, tenantID, limit+1)
	} else {
		createdAt, id, decodeErr := decodeCursor(cursor)
		if decodeErr != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", decodeErr)
		}
		rows, err = s.db.QueryContext(ctx, query+`
			AND (created_at, id) > (?, ?) ORDER BY created_at, id LIMIT ?`,
			tenantID, createdAt, id, limit+1)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*model.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var nextCursor string
	if len(artifacts) > limit {
		last := artifacts[limit-1]
		nextCursor = encodeCursor(last.CreatedAt, last.ID)
		artifacts = artifacts[:limit]
	}
	return artifacts, nextCursor, nil
}

func encodeCursor(t time.Time, id string) string {
	return t.Format(time.RFC3339Nano) + "|" + id
}

func decodeCursor(cursor string) (string, string, error) {
	for i := len(cursor) - 1; i >= 0; i-- {
		if cursor[i] == '|' {
			return cursor[:i], cursor[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("malformed cursor %q", cursor)
}

// DeleteArtifact removes an artifact and cascades to its chunks.
func (s *SQLiteMetadataStore) DeleteArtifact(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE tenant_id = ? AND artifact_id = ?`, tenantID, id); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE tenant_id = ? AND id = ?`, tenantID, id); err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return tx.Commit()
}

// SaveChunks inserts or replaces a batch of chunks in a single transaction.
func (s *SQLiteMetadataStore) SaveChunks(ctx context.Context, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (
			tenant_id, id, artifact_id, chunk_index, chunk_type, locator, text, ocr_text,
			caption, description, labels, text_embedding, caption_embedding, vendor, currency,
			amounts_cents, entities, keywords, dates, text_normalized, ocr_text_normalized,
			searchable_text, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			chunk_type=excluded.chunk_type, locator=excluded.locator, text=excluded.text,
			ocr_text=excluded.ocr_text, caption=excluded.caption, description=excluded.description,
			labels=excluded.labels, text_embedding=excluded.text_embedding,
			caption_embedding=excluded.caption_embedding, vendor=excluded.vendor,
			currency=excluded.currency, amounts_cents=excluded.amounts_cents,
			entities=excluded.entities, keywords=excluded.keywords, dates=excluded.dates,
			text_normalized=excluded.text_normalized, ocr_text_normalized=excluded.ocr_text_normalized,
			searchable_text=excluded.searchable_text, updated_at=excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, c := range chunks {
		locator, err := jsonEncode(c.Locator)
		if err != nil {
			return err
		}
		labels, err := jsonEncode(c.Labels)
		if err != nil {
			return err
		}
		amounts, err := jsonEncode(c.AmountsCents)
		if err != nil {
			return err
		}
		entities, err := jsonEncode(c.Entities)
		if err != nil {
			return err
		}
		keywords, err := jsonEncode(c.Keywords)
		if err != nil {
			return err
		}
		dates, err := jsonEncode(c.Dates)
		if err != nil {
			return err
		}

		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		if _, err := stmt.ExecContext(ctx,
			c.TenantID, c.ID(), c.ArtifactID, c.ChunkIndex, string(c.ChunkType), locator,
			c.Text, c.OCRText, c.Caption, c.Description, labels, encodeFloats(c.TextEmbedding),
			encodeFloats(c.CaptionEmbedding), c.Vendor, c.Currency, amounts, entities, keywords,
			dates, c.TextNormalized, c.OCRTextNormalized, c.SearchableText,
			createdAt.Format(time.RFC3339Nano), now,
		); err != nil {
			return fmt.Errorf("failed to save chunk %s: %w", c.ID(), err)
		}
	}

	return tx.Commit()
}

func scanChunk(row rowScanner) (*model.Chunk, error) {
	var c model.Chunk
	var id, chunkType, locator, labels, amounts, entities, keywords, dates string
	var textEmbedding, captionEmbedding []byte
	var createdAt, updatedAt string

	err := row.Scan(
		&c.TenantID, &id, &c.ArtifactID, &c.ChunkIndex, &chunkType, &locator, &c.Text,
		&c.OCRText, &c.Caption, &c.Description, &labels, &textEmbedding, &captionEmbedding,
		&c.Vendor, &c.Currency, &amounts, &entities, &keywords, &dates, &c.TextNormalized,
		&c.OCRTextNormalized, &c.SearchableText, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.ChunkType = model.ChunkType(chunkType)
	_ = jsonDecode(locator, &c.Locator)
	_ = jsonDecode(labels, &c.Labels)
	_ = jsonDecode(amounts, &c.AmountsCents)
	_ = jsonDecode(entities, &c.Entities)
	_ = jsonDecode(keywords, &c.Keywords)
	_ = jsonDecode(dates, &c.Dates)
	c.TextEmbedding = decodeFloats(textEmbedding)
	c.CaptionEmbedding = decodeFloats(captionEmbedding)
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	return &c, nil
}

const chunkSelectColumns = `
	tenant_id, id, artifact_id, chunk_index, chunk_type, locator, text, ocr_text,
	caption, description, labels, text_embedding, caption_embedding, vendor, currency,
	amounts_cents, entities, keywords, dates, text_normalized, ocr_text_normalized,
	searchable_text, created_at, updated_at`

// GetChunk retrieves a single chunk by its stable ID, scoped to tenantID.
func (s *SQLiteMetadataStore) GetChunk(ctx context.Context, tenantID, id string) (*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+chunkSelectColumns+` FROM chunks WHERE tenant_id = ? AND id = ?`, tenantID, id)
	return scanChunk(row)
}

// GetChunks retrieves chunks by ID, scoped to tenantID. Missing IDs are
// silently omitted from the result.
func (s *SQLiteMetadataStore) GetChunks(ctx context.Context, tenantID string, ids []string) ([]*model.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]any, 0, len(ids)+1)
	args = append(args, tenantID)
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, id)
	}

	query := `SELECT ` + chunkSelectColumns + ` FROM chunks WHERE tenant_id = ? AND id IN (` + string(placeholders) + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*model.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// GetChunksByArtifact returns all chunks belonging to an artifact, ordered
// by chunk index.
func (s *SQLiteMetadataStore) GetChunksByArtifact(ctx context.Context, tenantID, artifactID string) ([]*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+chunkSelectColumns+`
		FROM chunks WHERE tenant_id = ? AND artifact_id = ? ORDER BY chunk_index`, tenantID, artifactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*model.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ListChunks returns up to limit chunks for a tenant, most recently
// created first, for the Search Service's bounded candidate fetch
// (the keyword strategy scans at most 1000 chunks per call).
func (s *SQLiteMetadataStore) ListChunks(ctx context.Context, tenantID string, limit int) ([]*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+chunkSelectColumns+`
		FROM chunks WHERE tenant_id = ? ORDER BY created_at DESC LIMIT ?`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*model.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// DeleteChunksByArtifact removes every chunk owned by an artifact.
func (s *SQLiteMetadataStore) DeleteChunksByArtifact(ctx context.Context, tenantID, artifactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE tenant_id = ? AND artifact_id = ?`, tenantID, artifactID)
	return err
}

// SaveSearchCategory inserts or replaces a tenant's category row, keyed by
// (tenant, category type).
func (s *SQLiteMetadataStore) SaveSearchCategory(ctx context.Context, cat *model.SearchCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}

	entities, err := jsonEncode(cat.Entities)
	if err != nil {
		return err
	}
	ignored, err := jsonEncode(cat.IgnoredWords)
	if err != nil {
		return err
	}
	triggers, err := jsonEncode(cat.TriggerKeywords)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO search_categories (tenant_id, type, entities, ignored_words, trigger_keywords, max_non_category_words, match_score)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(tenant_id, type) DO UPDATE SET
			entities=excluded.entities, ignored_words=excluded.ignored_words,
			trigger_keywords=excluded.trigger_keywords,
			max_non_category_words=excluded.max_non_category_words, match_score=excluded.match_score
	`, cat.TenantID, string(cat.Type), entities, ignored, triggers, cat.MaxNonCategoryWords, cat.MatchScore)
	return err
}

// ListSearchCategories returns a tenant's categories, lazily seeding the
// four defaults on first access.
func (s *SQLiteMetadataStore) ListSearchCategories(ctx context.Context, tenantID string) ([]*model.SearchCategory, error) {
	s.mu.RLock()
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_categories WHERE tenant_id = ?`, tenantID).Scan(&count)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if count == 0 {
		for _, cat := range model.DefaultSearchCategories(tenantID) {
			if err := s.SaveSearchCategory(ctx, cat); err != nil {
				return nil, fmt.Errorf("failed to seed default category %s: %w", cat.Type, err)
			}
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, type, entities, ignored_words, trigger_keywords, max_non_category_words, match_score
		FROM search_categories WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []*model.SearchCategory
	for rows.Next() {
		var cat model.SearchCategory
		var catType, entities, ignored, triggers string
		if err := rows.Scan(&cat.TenantID, &catType, &entities, &ignored, &triggers, &cat.MaxNonCategoryWords, &cat.MatchScore); err != nil {
			return nil, err
		}
		cat.Type = model.CategoryType(catType)
		_ = jsonDecode(entities, &cat.Entities)
		_ = jsonDecode(ignored, &cat.IgnoredWords)
		_ = jsonDecode(triggers, &cat.TriggerKeywords)
		cats = append(cats, &cat)
	}
	return cats, rows.Err()
}

// GetState reads a tenant-scoped key-value entry.
func (s *SQLiteMetadataStore) GetState(ctx context.Context, tenantID, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", fmt.Errorf("metadata store is closed")
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_state WHERE tenant_id = ? AND key = ?`, tenantID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetState writes a tenant-scoped key-value entry.
func (s *SQLiteMetadataStore) SetState(ctx context.Context, tenantID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_state (tenant_id, key, value) VALUES (?,?,?)
		ON CONFLICT(tenant_id, key) DO UPDATE SET value=excluded.value`, tenantID, key, value)
	return err
}

// GetAllEmbeddings returns every chunk's text embedding for a tenant,
// keyed by chunk ID, used to rebuild a vector store from scratch.
func (s *SQLiteMetadataStore) GetAllEmbeddings(ctx context.Context, tenantID string) (map[string][]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, text_embedding FROM chunks WHERE tenant_id = ? AND text_embedding IS NOT NULL`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]float32)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		if vec := decodeFloats(blob); len(vec) > 0 {
			result[id] = vec
		}
	}
	return result, rows.Err()
}

// GetEmbeddingStats reports how many of a tenant's chunks have (and lack) a
// text embedding, used by `docsearch stats` and reindex planning.
func (s *SQLiteMetadataStore) GetEmbeddingStats(ctx context.Context, tenantID string) (withEmbedding, withoutEmbedding int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, 0, fmt.Errorf("metadata store is closed")
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE tenant_id = ? AND text_embedding IS NOT NULL`, tenantID).Scan(&withEmbedding)
	if err != nil {
		return 0, 0, err
	}
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE tenant_id = ? AND text_embedding IS NULL`, tenantID).Scan(&withoutEmbedding)
	return withEmbedding, withoutEmbedding, err
}

// CountArtifacts reports how many artifacts a tenant currently has.
func (s *SQLiteMetadataStore) CountArtifacts(ctx context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("metadata store is closed")
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts WHERE tenant_id = ?`, tenantID).Scan(&n)
	return n, err
}

// CountChunks reports how many chunks a tenant currently has.
func (s *SQLiteMetadataStore) CountChunks(ctx context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("metadata store is closed")
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE tenant_id = ?`, tenantID).Scan(&n)
	return n, err
}

// ArtifactTimeRange reports the earliest created_at and latest
// updated_at across a tenant's artifacts.
func (s *SQLiteMetadataStore) ArtifactTimeRange(ctx context.Context, tenantID string) (createdAt, updatedAt time.Time, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return time.Time{}, time.Time{}, fmt.Errorf("metadata store is closed")
	}
	var minCreated, maxUpdated sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT MIN(created_at), MAX(updated_at) FROM artifacts WHERE tenant_id = ?`, tenantID,
	).Scan(&minCreated, &maxUpdated)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if minCreated.Valid {
		createdAt, _ = time.Parse(time.RFC3339Nano, minCreated.String)
	}
	if maxUpdated.Valid {
		updatedAt, _ = time.Parse(time.RFC3339Nano, maxUpdated.String)
	}
	return createdAt, updatedAt, nil
}

// SaveIngestCheckpoint records resumable batch-ingest progress for a tenant.
func (s *SQLiteMetadataStore) SaveIngestCheckpoint(ctx context.Context, tenantID, stage string, total, embeddedCount int, embedderModel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_checkpoints (tenant_id, stage, total, embedded_count, timestamp, embedder_model)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			stage=excluded.stage, total=excluded.total, embedded_count=excluded.embedded_count,
			timestamp=excluded.timestamp, embedder_model=excluded.embedder_model`,
		tenantID, stage, total, embeddedCount, time.Now().UTC().Format(time.RFC3339Nano), embedderModel)
	return err
}

// LoadIngestCheckpoint returns a tenant's saved checkpoint, or nil if none exists.
func (s *SQLiteMetadataStore) LoadIngestCheckpoint(ctx context.Context, tenantID string) (*IngestCheckpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	var cp IngestCheckpoint
	var ts string
	err := s.db.QueryRowContext(ctx, `
		SELECT stage, total, embedded_count, timestamp, embedder_model
		FROM ingest_checkpoints WHERE tenant_id = ?`, tenantID).
		Scan(&cp.Stage, &cp.Total, &cp.EmbeddedCount, &ts, &cp.EmbedderModel)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cp.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	return &cp, nil
}

// ClearIngestCheckpoint removes a tenant's checkpoint after a successful run.
func (s *SQLiteMetadataStore) ClearIngestCheckpoint(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM ingest_checkpoints WHERE tenant_id = ?`, tenantID)
	return err
}

// Close releases the underlying database connection.
func (s *SQLiteMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
