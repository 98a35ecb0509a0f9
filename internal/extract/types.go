// Package extract implements the type-specific extractors: PDF, CSV,
// image, text, and snippet, each converting raw input
// into an artifact-level Summary plus an ordered list of ChunkDrafts.
// Extractor selection is a closed, compile-time dispatch table (no
// runtime class lookup).
package extract

import (
	"github.com/custodia-labs/docsearch/internal/model"
)

// Summary is the artifact-level output of an extractor: everything the
// ingestion orchestrator merges into the Artifact record before chunk
// processing.
type Summary struct {
	Summary      string
	Vendor       string
	Currency     string
	AmountsCents []int64
	Entities     []string
	Keywords     []string
	Dates        []string
	FileType     string
	TypeMetadata map[string]string

	ImageLabels []string
	OCRText     string
}

// ChunkDraft is one chunk as produced directly by an extractor, before
// the ingestion orchestrator applies metadata extraction and
// normalization and before text embeddings are attached.
type ChunkDraft struct {
	ChunkType   model.ChunkType
	Text        string
	OCRText     string
	Caption     string
	Description string
	Labels      []string
	Locator     model.Locator

	Vendor       string
	Currency     string
	AmountsCents []int64
	Entities     []string
	Keywords     []string
	Dates        []string

	// ImageEmbedding, when non-nil, is a pre-computed caption+OCR
	// embedding the Image extractor already produced, so ingestion does
	// not re-embed this chunk's text.
	ImageEmbedding []float32
}

// Input is the raw material handed to an extractor. Bytes is used by
// every file-backed extractor (PDF/CSV/image/text); Text and Source are
// used instead by the Snippet extractor, which never has underlying
// bytes.
type Input struct {
	Bytes    []byte
	Text     string
	Filename string
	MimeType string
	Source   string
}

// Extractor converts raw input into an artifact summary plus ordered
// chunks. It must never abort ingestion: on a library failure it
// returns a minimal Summary and no chunks, never an error that halts
// the caller.
type Extractor interface {
	Extract(in Input) (*Summary, []ChunkDraft)
}

// intPtr and friends are small helpers used by extractors when building
// Locators.
func intPtr(n int) *int { return &n }
