// Package model defines the persistence-independent domain types shared by
// every component of the search engine: artifacts, chunks, search
// categories, and the locators used for deep links.
package model

import "time"

// Kind is the high-level category of an artifact.
type Kind string

const (
	KindFile     Kind = "file"
	KindText     Kind = "text"
	KindURL      Kind = "url"
	KindDatabase Kind = "database"
	KindAPI      Kind = "api"
)

// FileKind labels the type-specific extractor that produced an artifact.
type FileKind string

const (
	FileKindPDF     FileKind = "pdf"
	FileKindCSV     FileKind = "csv"
	FileKindImage   FileKind = "image"
	FileKindText    FileKind = "text"
	FileKindSnippet FileKind = "snippet"
)

// ChunkType identifies the shape of a chunk's source material.
type ChunkType string

const (
	ChunkTypePage         ChunkType = "page"
	ChunkTypeRow          ChunkType = "row"
	ChunkTypeParagraph    ChunkType = "paragraph"
	ChunkTypeSnippetChunk ChunkType = "snippet_chunk"
	ChunkTypeImage        ChunkType = "image"
)

// Artifact is one uploaded file or text snippet plus its extracted metadata.
// It is owned by a tenant and exclusively owns its chunks.
type Artifact struct {
	ID          string
	TenantID    string
	OwnerID     string
	URI         string
	FileName    string
	Description string
	MimeType    string
	Kind        Kind
	FileKind    FileKind
	SizeBytes   int64
	Tags        []string

	Vendor        string
	Currency      string
	AmountsCents  []int64
	Entities      []string
	Keywords      []string
	Dates         []string
	Summary       string
	TextEmbedding []float32

	ImageEmbedding []float32
	ImageLabels    []string
	OCRText        string

	TypeMetadata map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Locator pinpoints where within an artifact a chunk lives, for deep links.
type Locator struct {
	PageNumber *int
	RowIndex   *int
	ColIndex   *int
	BBox       *BoundingBox
}

// BoundingBox is a pixel-space rectangle used for image chunk locators.
type BoundingBox struct {
	X, Y, W, H float64
}

// Chunk is a bounded, addressable slice of an artifact.
type Chunk struct {
	ArtifactID string
	ChunkIndex int
	TenantID   string

	ChunkType ChunkType
	Locator   Locator

	Text        string
	OCRText     string
	Caption     string
	Description string
	Labels      []string

	TextEmbedding    []float32
	CaptionEmbedding []float32

	Vendor       string
	Currency     string
	AmountsCents []int64
	Entities     []string
	Keywords     []string
	Dates        []string

	TextNormalized    string
	OCRTextNormalized string
	SearchableText    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ID returns the chunk's stable identifier, artifact ID and index joined.
func (c *Chunk) ID() string {
	return ChunkID(c.ArtifactID, c.ChunkIndex)
}

// ChunkID builds the stable (artifact id, chunk index) identifier used as
// the primary key across the metadata store, BM25 index, and vector store.
func ChunkID(artifactID string, index int) string {
	return artifactID + "#" + itoa(index)
}

// ParentIDFromChunkID recovers the owning artifact id from a stable
// chunk id built by ChunkID.
func ParentIDFromChunkID(chunkID string) string {
	for i := len(chunkID) - 1; i >= 0; i-- {
		if chunkID[i] == '#' {
			return chunkID[:i]
		}
	}
	return chunkID
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// CategoryType enumerates the kinds of search category a tenant can declare.
type CategoryType string

const (
	CategoryVendor CategoryType = "vendor"
	CategoryPeople CategoryType = "people"
	CategoryPrice  CategoryType = "price"
	CategoryCustom CategoryType = "custom"
)

// SearchCategory is a tenant-scoped classifier recognizing queries
// dominated by a known entity class.
type SearchCategory struct {
	TenantID            string
	Type                CategoryType
	Entities            []string
	IgnoredWords        []string
	TriggerKeywords     []string
	MaxNonCategoryWords int
	MatchScore          float64
}

// DefaultSearchCategories returns the four default category rows a tenant
// is lazily seeded with on first access.
func DefaultSearchCategories(tenantID string) []*SearchCategory {
	return []*SearchCategory{
		{
			TenantID:            tenantID,
			Type:                CategoryVendor,
			TriggerKeywords:     []string{"from", "vendor", "supplier", "billed by", "issued by"},
			IgnoredWords:        []string{"invoice", "receipt", "from", "bill"},
			MaxNonCategoryWords: 3,
			MatchScore:          0.9,
		},
		{
			TenantID:            tenantID,
			Type:                CategoryPeople,
			TriggerKeywords:     []string{"by", "assigned to", "owner", "author"},
			IgnoredWords:        []string{"by", "from", "owner"},
			MaxNonCategoryWords: 2,
			MatchScore:          0.85,
		},
		{
			TenantID:            tenantID,
			Type:                CategoryPrice,
			TriggerKeywords:     []string{"cost", "price", "amount", "total", "paid"},
			IgnoredWords:        []string{"cost", "price", "total"},
			MaxNonCategoryWords: 2,
			MatchScore:          0.9,
		},
		{
			TenantID:   tenantID,
			Type:       CategoryCustom,
			MatchScore: 0.7,
		},
	}
}

// EventKind is the kind of mutation that triggers reindexing.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// Event is emitted by the ingest/edit/delete surfaces and consumed by the
// reindex orchestrator.
type Event struct {
	Kind          EventKind
	ArtifactID    string
	TenantID      string
	ChangedFields []string
	EmittedAt     time.Time
}
