// Package normalize implements the diacritic-insensitive text normalization
// shared by every component that touches searchable text: chunk ingestion,
// query analysis, and the suggestion index.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks is a transform.Transformer that drops Unicode combining marks
// (category Mn) after NFD decomposition, the standard Go recipe for
// diacritic folding.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize applies canonical decomposition, drops combining marks,
// recomposes, optionally lowercases, collapses runs of whitespace to a
// single space, and trims. It is pure, total, and idempotent:
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string, lowercase bool) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	if lowercase {
		folded = strings.ToLower(folded)
	}
	return collapseWhitespace(folded)
}

// NormalizeQuery normalizes free-text search queries: diacritic-folded and
// lowercased.
func NormalizeQuery(s string) string {
	return Normalize(s, true)
}

// NormalizeForEmbedding normalizes text the same way as Normalize but keeps
// case, since embedding models are typically case-sensitive.
func NormalizeForEmbedding(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	return collapseWhitespace(folded)
}

// CreateSearchableText drops empty parts, joins the rest with single
// spaces, and normalizes the result. This builds the Chunk.SearchableText
// field every chunk carries for diacritic-insensitive matching.
func CreateSearchableText(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			kept = append(kept, p)
		}
	}
	return Normalize(strings.Join(kept, " "), true)
}

// tokenSeparators is the closed set of characters Tokenize splits on, in
// addition to whitespace.
const tokenSeparators = "-_.,;:!?(){}[]<>/\"'"

// Tokenize normalizes s, then splits on whitespace and tokenSeparators,
// dropping tokens shorter than 2 characters.
func Tokenize(s string) []string {
	normalized := Normalize(s, true)
	tokens := strings.FieldsFunc(normalized, func(r rune) bool {
		if unicode.IsSpace(r) {
			return true
		}
		return strings.ContainsRune(tokenSeparators, r)
	})

	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if len([]rune(t)) >= 2 {
			out = append(out, t)
		}
	}
	return out
}

// collapseWhitespace reduces any run of whitespace to a single ASCII space
// and trims the result.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
				inSpace = true
			}
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
