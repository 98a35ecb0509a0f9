package extract

import (
	"path/filepath"
	"strings"

	"github.com/custodia-labs/docsearch/internal/provider"
	"github.com/custodia-labs/docsearch/internal/vision"
)

// Registry is the closed, compile-time dispatch table that selects an
// extractor by MIME type and filename suffix. It holds the vision/OCR
// collaborators the Image extractor needs, wired once at startup.
type Registry struct {
	image *ImageExtractor
	text  *TextExtractor
	pdf   *PDFExtractor
	csv   *CSVExtractor
}

// NewRegistry builds a Registry. vis, ocr, and embed may be nil; the
// Image extractor degrades gracefully when they are.
func NewRegistry(vis provider.VisionProvider, ocr provider.OCREngine, embed vision.EmbedFunc) *Registry {
	return &Registry{
		image: NewImageExtractor(vis, ocr, embed),
		text:  NewTextExtractor(),
		pdf:   NewPDFExtractor(),
		csv:   NewCSVExtractor(),
	}
}

// Select picks an Extractor by MIME type first, then by filename
// suffix, defaulting to the Text extractor.
func (r *Registry) Select(mimeType, filename string) Extractor {
	switch {
	case mimeType == "application/pdf":
		return r.pdf
	case mimeType == "text/csv":
		return r.csv
	case strings.HasPrefix(mimeType, "image/"):
		return r.image
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return r.pdf
	case ".csv":
		return r.csv
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp":
		return r.image
	}

	return r.text
}
