package extract

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/docsearch/internal/model"
	"github.com/ledongthuc/pdf"
)

// PDFExtractor parses PDF bytes into one chunk per non-empty page.
type PDFExtractor struct {
	BaseExtractor
}

// NewPDFExtractor creates a PDFExtractor.
func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

// Extract implements Extractor. On a library failure it returns a
// minimal summary and no chunks, never an error.
func (e *PDFExtractor) Extract(in Input) (*Summary, []ChunkDraft) {
	reader, err := pdf.NewReader(bytes.NewReader(in.Bytes), int64(len(in.Bytes)))
	if err != nil {
		slog.Warn("pdf extractor failed to open document", "filename", in.Filename, "error", err)
		return &Summary{FileType: "pdf"}, nil
	}

	numPages := reader.NumPage()
	typeMeta := map[string]string{
		"pdf_pages": fmt.Sprintf("%d", numPages),
	}
	for k, v := range pdfDocumentInfo(reader) {
		typeMeta[k] = v
	}

	var chunks []ChunkDraft
	var allText bytes.Buffer

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("pdf extractor failed on page", "filename", in.Filename, "page", i, "error", err)
			continue
		}
		if text == "" {
			continue
		}

		allText.WriteString(text)
		allText.WriteString("\n")

		chunk := ChunkDraft{
			ChunkType: model.ChunkTypePage,
			Text:      text,
			Locator:   model.Locator{PageNumber: intPtr(i)},
		}
		e.applyToChunk(&chunk, text)
		chunks = append(chunks, chunk)
	}

	summary := &Summary{
		Summary:      firstLine(allText.String()),
		FileType:     "pdf",
		TypeMetadata: typeMeta,
	}
	e.applyToSummary(summary, allText.String())

	return summary, chunks
}

// pdfDocumentInfo best-effort reads the PDF's Info dictionary
// (Title/Author/Subject/Creator). A missing or malformed Info
// dictionary yields an empty map, never an error.
func pdfDocumentInfo(reader *pdf.Reader) map[string]string {
	out := map[string]string{}
	defer func() {
		// Some malformed PDFs panic deep inside the trailer walk; this
		// extractor never aborts ingestion over metadata.
		if r := recover(); r != nil {
			slog.Warn("pdf trailer metadata recovered from panic", "error", r)
		}
	}()

	trailer := reader.Trailer()
	info := trailer.Key("Info")
	if info.IsNull() {
		return out
	}
	for _, key := range []string{"Title", "Author", "Subject", "Creator"} {
		if v := info.Key(key); !v.IsNull() {
			if s := v.RawString(); s != "" {
				out[key] = s
			}
		}
	}
	return out
}

// firstLine returns the first non-empty line of s, used as a fallback
// summary when no better one exists.
func firstLine(s string) string {
	for _, line := range bytes.SplitN([]byte(s), []byte("\n"), 2) {
		if t := string(bytes.TrimSpace(line)); t != "" {
			return t
		}
	}
	return ""
}
