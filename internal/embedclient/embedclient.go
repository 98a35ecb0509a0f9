// Package embedclient implements the Embedding Client:
// single-shot and batch text embedding with truncation, deterministic
// chunking, and whole-document embedding that transparently chunks large
// text. It wraps a provider.EmbeddingProvider (internal/embed's
// Ollama/static/MLX embedders all satisfy this interface unmodified).
package embedclient

import (
	"context"

	"github.com/custodia-labs/docsearch/internal/provider"
)

// maxInputChars is the truncation limit applied before every embed call.
const maxInputChars = 8000

// DefaultChunkOverlap is used by EmbedDocument's internal chunking pass
// when the caller has not configured a different overlap.
const DefaultChunkOverlap = 200

// Client wraps an underlying EmbeddingProvider.
type Client struct {
	provider     provider.EmbeddingProvider
	chunkOverlap int
}

// New wraps p as a Client. chunkOverlap configures the sliding window
// used by EmbedDocument when it must chunk large text; 0 selects
// DefaultChunkOverlap.
func New(p provider.EmbeddingProvider, chunkOverlap int) *Client {
	if chunkOverlap <= 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Client{provider: p, chunkOverlap: chunkOverlap}
}

// Dimensions returns the wrapped provider's declared embedding dimension.
func (c *Client) Dimensions() int { return c.provider.Dimensions() }

// ModelName returns the wrapped provider's model identifier.
func (c *Client) ModelName() string { return c.provider.ModelName() }

// Embed truncates text to maxInputChars and calls the provider. Empty
// input returns an empty (zero-length) vector without calling the
// provider — a vector's length is always 0 or the provider dimension,
// and zero-length means "missing", which is exactly right for empty
// text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return []float32{}, nil
	}
	return c.provider.Embed(ctx, truncate(text, maxInputChars))
}

// EmbedBatch embeds many texts, preserving input order. If the
// underlying provider supports batching it is called once with all
// (truncated) texts; on a whole-batch failure, and for providers that
// cannot batch, EmbedBatch falls back to sequential Embed calls so one
// bad item never drops its neighbors — a failed item's vector is empty
// but its index survives in the output slice.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if batcher, ok := c.provider.(provider.BatchEmbeddingProvider); ok {
		truncated := make([]string, len(texts))
		for i, t := range texts {
			truncated[i] = truncate(t, maxInputChars)
		}
		vecs, err := batcher.EmbedBatch(ctx, truncated)
		if err == nil && len(vecs) == len(texts) {
			return vecs, nil
		}
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := c.Embed(ctx, t)
		if err != nil {
			out[i] = []float32{}
			continue
		}
		out[i] = vec
	}
	return out, nil
}

// ChunkText deterministically slides a window of size runes with the
// given overlap across text, producing dense indices. A tail chunk
// shorter than 50 characters is dropped rather than emitted.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
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
		chunk := runes[start:end]
		if end == len(runes) && len(chunk) < 50 && len(chunks) > 0 {
			break
		}
		chunks = append(chunks, string(chunk))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// DocumentEmbedding is the result of EmbedDocument: the artifact-level
// vector plus, when the text was chunked, the per-chunk text/vector
// pairs.
type DocumentEmbedding struct {
	Vector []float32
	Chunks []ChunkEmbedding
}

// ChunkEmbedding pairs one chunk of a large document with its vector.
type ChunkEmbedding struct {
	Text   string
	Vector []float32
}

// EmbedDocument embeds text as a single unit when it fits within size
// (or chunking was not requested); otherwise it slides a window over
// text, embeds every window in one batch call, and reports the first
// window's vector as the document-level vector (first-chunk-as-
// document-vector; see DESIGN.md for the alternative considered).
func (c *Client) EmbedDocument(ctx context.Context, text string, chunkIfLarge bool, size int) (*DocumentEmbedding, error) {
	if len([]rune(text)) <= size || !chunkIfLarge {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		return &DocumentEmbedding{Vector: vec}, nil
	}

	texts := ChunkText(text, size, c.chunkOverlap)
	if len(texts) == 0 {
		return &DocumentEmbedding{Vector: []float32{}}, nil
	}

	vecs, err := c.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	chunks := make([]ChunkEmbedding, len(texts))
	for i, t := range texts {
		chunks[i] = ChunkEmbedding{Text: t, Vector: vecs[i]}
	}
	return &DocumentEmbedding{Vector: chunks[0].Vector, Chunks: chunks}, nil
}

// truncate returns the first maxChars runes of s.
func truncate(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	return string(r[:maxChars])
}
