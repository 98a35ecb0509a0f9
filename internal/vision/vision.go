// Package vision implements image captioning and OCR: it
// calls an external Vision Provider and OCR Engine and folds their
// output into a caption embedding via the Embedding Provider, degrading
// gracefully when either collaborator is unavailable.
package vision

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/custodia-labs/docsearch/internal/provider"
)

// captionPrompt is the fixed prompt sent to the Vision Provider.
const captionPrompt = "CAPTION: <one sentence>. TAGS: <3-5 comma-separated>"

// maxEmbedInput caps the caption+OCR text fed to the embedder, matching
// the Embedding Client's truncation limit.
const maxEmbedInput = 8000

// Options selects which passes ProcessImage runs.
type Options struct {
	OCR     bool
	Caption bool
}

// Result is everything ProcessImage can produce for one image.
type Result struct {
	Caption          string
	Tags             []string
	OCRText          string
	CaptionEmbedding []float32
}

// EmbedFunc embeds text into a vector; callers pass
// internal/embedclient.Client.Embed (or an equivalent) to avoid a direct
// package dependency on the embedding client.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// ProcessImage runs captioning and OCR over imageBytes and, if either
// produced text, computes a caption embedding from their concatenation.
// It never returns an error for a missing/unavailable collaborator —
// the corresponding result fields are simply left empty
// (VisionUnavailable/OCRUnavailable).
func ProcessImage(ctx context.Context, imageBytes []byte, opts Options, vis provider.VisionProvider, ocr provider.OCREngine, embed EmbedFunc) (*Result, error) {
	res := &Result{}

	if opts.Caption && vis != nil && vis.Available(ctx) {
		raw, err := vis.Caption(ctx, imageBytes, captionPrompt)
		if err != nil {
			slog.Warn("vision caption failed", "error", err)
		} else {
			res.Caption, res.Tags = parseCaptionResponse(raw)
		}
	}

	if opts.OCR && ocr != nil && ocr.Available(ctx) {
		text, err := ocr.Extract(ctx, imageBytes, "")
		if err != nil {
			slog.Warn("ocr extraction failed", "error", err)
		} else {
			text = strings.TrimSpace(text)
			if text != "" {
				res.OCRText = text
			}
		}
	}

	if embed != nil && (res.Caption != "" || res.OCRText != "") {
		combined := strings.Join(nonEmpty(res.Caption, res.OCRText), " ")
		if len([]rune(combined)) > maxEmbedInput {
			combined = string([]rune(combined)[:maxEmbedInput])
		}
		vec, err := embed(ctx, combined)
		if err != nil {
			slog.Warn("caption embedding failed", "error", err)
		} else {
			res.CaptionEmbedding = vec
		}
	}

	return res, nil
}

func nonEmpty(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseCaptionResponse splits a vision model response into a caption and
// tags. If both the "CAPTION:" and "TAGS:" markers are present, the tags
// are every non-empty comma-separated entry after "TAGS:", however many
// there are; otherwise the whole response is treated as the caption and
// up to 5 capitalized tokens are heuristically extracted as tags.
func parseCaptionResponse(raw string) (string, []string) {
	captionIdx := strings.Index(raw, "CAPTION:")
	tagsIdx := strings.Index(raw, "TAGS:")

	if captionIdx >= 0 && tagsIdx >= 0 {
		var caption, tagsPart string
		if captionIdx < tagsIdx {
			caption = raw[captionIdx+len("CAPTION:") : tagsIdx]
			tagsPart = raw[tagsIdx+len("TAGS:"):]
		} else {
			tagsPart = raw[tagsIdx+len("TAGS:") : captionIdx]
			caption = raw[captionIdx+len("CAPTION:"):]
		}
		return strings.TrimSpace(caption), splitTags(tagsPart)
	}

	caption := strings.TrimSpace(raw)
	return caption, heuristicTags(caption)
}

func splitTags(s string) []string {
	fields := strings.Split(s, ",")
	var out []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// heuristicTags extracts up to 5 capitalized tokens from text (fewer, or
// none, if the text has fewer) when the response carries no explicit
// TAGS marker.
func heuristicTags(text string) []string {
	var tags []string
	for _, w := range strings.Fields(text) {
		w = strings.Trim(w, ".,;:!?")
		if w == "" {
			continue
		}
		r := []rune(w)
		if unicode.IsUpper(r[0]) {
			tags = append(tags, w)
			if len(tags) == 5 {
				break
			}
		}
	}
	return tags
}
