package extract

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/docsearch/internal/model"
)

// maxTextChunks bounds how many paragraph/line/window chunks a text
// artifact produces.
const maxTextChunks = 500

// textFixedWindowSize is the fallback fixed window size when a text
// artifact has neither paragraph breaks nor short enough lines.
const textFixedWindowSize = 500

var iniSectionPattern = regexp.MustCompile(`(?m)^\s*\[([^\]]+)\]\s*$`)

// TextExtractor is the fallback extractor for plain text and the
// closed set of text-like sub-types: .txt, .md,
// .json, .ini, .yaml/.yml, .xml, and anything else not recognized as
// PDF, CSV, or image.
type TextExtractor struct {
	BaseExtractor
}

// NewTextExtractor creates a TextExtractor.
func NewTextExtractor() *TextExtractor { return &TextExtractor{} }

// textSubType is the closed set of sub-types the text extractor dispatches
// on by filename suffix.
type textSubType string

const (
	subTypePlain textSubType = "text"
	subTypeJSON  textSubType = "json"
	subTypeINI   textSubType = "ini"
	subTypeYAML  textSubType = "yaml"
	subTypeXML   textSubType = "xml"
	subTypeMD    textSubType = "markdown"
)

// detectSubType maps a filename suffix to its text sub-type, defaulting
// to plain text for .txt and anything unrecognized.
func detectSubType(filename string) textSubType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return subTypeJSON
	case ".ini", ".cfg", ".conf":
		return subTypeINI
	case ".yaml", ".yml":
		return subTypeYAML
	case ".xml":
		return subTypeXML
	case ".md", ".markdown":
		return subTypeMD
	default:
		return subTypePlain
	}
}

// Extract implements Extractor.
func (e *TextExtractor) Extract(in Input) (*Summary, []ChunkDraft) {
	text := string(in.Bytes)
	if text == "" {
		text = in.Text
	}
	if strings.TrimSpace(text) == "" {
		return &Summary{FileType: "text"}, nil
	}

	subType := detectSubType(in.Filename)

	summary := &Summary{
		Summary:      firstLine(text),
		FileType:     string(subType),
		TypeMetadata: map[string]string{},
	}

	switch subType {
	case subTypeJSON:
		applyJSONSchema(summary, text)
	case subTypeINI:
		applyINISections(summary, text)
	}

	parts := textChunkParts(text)
	if len(parts) > maxTextChunks {
		parts = parts[:maxTextChunks]
	}

	chunks := make([]ChunkDraft, 0, len(parts))
	for _, p := range parts {
		chunk := ChunkDraft{
			ChunkType: model.ChunkTypeParagraph,
			Text:      p,
		}
		e.applyToChunk(&chunk, p)
		chunks = append(chunks, chunk)
	}

	e.applyToSummary(summary, text)

	return summary, chunks
}

// textChunkParts implements the chunking preference order: double-
// newline paragraphs first, then lines, then fixed 500-char windows.
func textChunkParts(text string) []string {
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

	if strings.Contains(text, "\n") {
		var out []string
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				out = append(out, line)
			}
		}
		if len(out) > 0 {
			return out
		}
	}

	return slidingWindow(text, textFixedWindowSize, 0)
}

// applyJSONSchema extracts the top-level schema recorded for
// JSON text artifacts: object key names, or array length.
func applyJSONSchema(s *Summary, text string) {
	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return
	}
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		s.TypeMetadata["json_keys"] = strings.Join(keys, ",")
		s.Keywords = append(s.Keywords, keys...)
	case []interface{}:
		s.TypeMetadata["json_array_length"] = fmt.Sprintf("%d", len(val))
	}
}

// applyINISections extracts the section names recorded for
// INI text artifacts.
func applyINISections(s *Summary, text string) {
	matches := iniSectionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return
	}
	sections := make([]string, 0, len(matches))
	for _, m := range matches {
		sections = append(sections, strings.TrimSpace(m[1]))
	}
	s.TypeMetadata["ini_sections"] = strings.Join(sections, ",")
	s.Keywords = append(s.Keywords, sections...)
}
