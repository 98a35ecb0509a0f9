package extract

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/docsearch/internal/model"
)

// Sizing thresholds that decide a snippet's chunking strategy.
const (
	snippetSingleChunkMax = 500
	snippetParagraphMax   = 2000
	snippetWindowSize     = 500
	snippetWindowOverlap  = 100
	snippetMaxChunks      = 500
)

var sentenceBoundary = regexp.MustCompile(`(?s)([.!?])\s+`)

// SnippetExtractor handles raw text with no underlying bytes: pasted
// text, AI agent output, or API submissions. Its chunking strategy
// scales with input size rather than following a fixed window like
// TextExtractor.
type SnippetExtractor struct {
	BaseExtractor
}

// NewSnippetExtractor creates a SnippetExtractor.
func NewSnippetExtractor() *SnippetExtractor { return &SnippetExtractor{} }

// Extract implements Extractor. Snippets come in through in.Text (and
// in.Source carries the originating source tag as free text), never
// in.Bytes.
func (e *SnippetExtractor) Extract(in Input) (*Summary, []ChunkDraft) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return &Summary{FileType: "snippet"}, nil
	}

	parts := snippetParts(text)
	if len(parts) > snippetMaxChunks {
		parts = parts[:snippetMaxChunks]
	}
	chunks := make([]ChunkDraft, 0, len(parts))
	for _, p := range parts {
		chunk := ChunkDraft{
			ChunkType: model.ChunkTypeSnippetChunk,
			Text:      p,
		}
		e.applyToChunk(&chunk, p)
		chunks = append(chunks, chunk)
	}

	summary := &Summary{
		Summary:  firstLine(text),
		FileType: "snippet",
	}
	e.applyToSummary(summary, text)

	return summary, chunks
}

// snippetParts applies the three-tier chunking rule: short text is one
// chunk, medium text splits on paragraphs (falling back to sentences),
// and long text slides a fixed window.
func snippetParts(text string) []string {
	n := len([]rune(text))

	switch {
	case n <= snippetSingleChunkMax:
		return []string{text}
	case n <= snippetParagraphMax:
		return splitParagraphsOrSentences(text)
	default:
		return slidingWindow(text, snippetWindowSize, snippetWindowOverlap)
	}
}

// splitParagraphsOrSentences splits on blank lines when present,
// otherwise on sentence boundaries.
func splitParagraphsOrSentences(text string) []string {
	if strings.Contains(text, "\n\n") {
		var out []string
		for _, p := range strings.Split(text, "\n\n") {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}

	var out []string
	last := 0
	loc := sentenceBoundary.FindAllStringIndex(text, -1)
	for _, m := range loc {
		s := strings.TrimSpace(text[last:m[1]])
		if s != "" {
			out = append(out, s)
		}
		last = m[1]
	}
	if tail := strings.TrimSpace(text[last:]); tail != "" {
		out = append(out, tail)
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

// slidingWindow mirrors embedclient.ChunkText's dense-index sliding
// window, duplicated here (rather than imported) since the snippet
// window size and overlap are fixed constants distinct from the
// embedding client's document-chunking defaults.
func slidingWindow(text string, size, overlap int) []string {
	runes := []rune(text)
	step := size - overlap
	if step <= 0 {
		step = size
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
