package app

import (
	"context"

	"github.com/custodia-labs/docsearch/internal/errors"
	"github.com/custodia-labs/docsearch/internal/provider"
)

// circuitEmbedder wraps an EmbeddingProvider with a
// CircuitBreaker (internal/errors/circuit.go), tripping after repeated
// failures against a flaky embedding backend and failing fast instead
// of piling up slow timeouts. A tripped breaker degrades to an empty
// vector, which embedclient already treats as "missing" per the
// len(vec) ∈ {0, dim} invariant — never a fatal error.
type circuitEmbedder struct {
	inner provider.EmbeddingProvider
	cb    *errors.CircuitBreaker
}

func newCircuitEmbedder(inner provider.EmbeddingProvider, cb *errors.CircuitBreaker) *circuitEmbedder {
	return &circuitEmbedder{inner: inner, cb: cb}
}

func (c *circuitEmbedder) Dimensions() int   { return c.inner.Dimensions() }
func (c *circuitEmbedder) ModelName() string { return c.inner.ModelName() }

func (c *circuitEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return errors.CircuitExecuteWithResult(c.cb,
		func() ([]float32, error) { return c.inner.Embed(ctx, text) },
		func() ([]float32, error) { return []float32{}, nil },
	)
}

func (c *circuitEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	batcher, ok := c.inner.(provider.BatchEmbeddingProvider)
	if !ok {
		out := make([][]float32, len(texts))
		for i, t := range texts {
			v, err := c.Embed(ctx, t)
			if err != nil {
				v = []float32{}
			}
			out[i] = v
		}
		return out, nil
	}
	return errors.CircuitExecuteWithResult(c.cb,
		func() ([][]float32, error) { return batcher.EmbedBatch(ctx, texts) },
		func() ([][]float32, error) { return make([][]float32, len(texts)), nil },
	)
}

var _ provider.BatchEmbeddingProvider = (*circuitEmbedder)(nil)

// circuitVision wraps a VisionProvider with a CircuitBreaker so a
// flaky captioning backend degrades to VisionUnavailable instead of
// blocking ingestion.
type circuitVision struct {
	inner provider.VisionProvider
	cb    *errors.CircuitBreaker
}

func newCircuitVision(inner provider.VisionProvider, cb *errors.CircuitBreaker) *circuitVision {
	return &circuitVision{inner: inner, cb: cb}
}

func (c *circuitVision) Available(ctx context.Context) bool {
	return c.cb.Allow() && c.inner.Available(ctx)
}

func (c *circuitVision) Caption(ctx context.Context, imageBytes []byte, prompt string) (string, error) {
	return errors.CircuitExecuteWithResult(c.cb,
		func() (string, error) { return c.inner.Caption(ctx, imageBytes, prompt) },
		func() (string, error) { return "", provider.ErrUnavailable },
	)
}

var _ provider.VisionProvider = (*circuitVision)(nil)
