// Package encode computes the dense and sparse vector representations of
// spec.md §4.5: an L2-normalized dense embedding, a capped keyword
// term-frequency sparse vector, and a log-weighted citation-pattern sparse
// vector, plus derived entity flags.
package encode

import (
	"context"
	"fmt"
	"math"
)

// Embedder is the narrow external collaborator interface of spec §6.3:
// embed(texts) -> [][]float32 with fixed dimension D.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// DenseConfig controls batching (spec §4.5).
type DenseConfig struct {
	Dim       int
	BatchSize int // default 32
}

func (c DenseConfig) withDefaults() DenseConfig {
	if c.BatchSize == 0 {
		c.BatchSize = 32
	}
	return c
}

// Dense embeds texts in batches of cfg.BatchSize, L2-normalizes every
// resulting vector, and validates its dimensionality. A failed batch is
// retried one text at a time, matching the teacher's `embedChunks`
// fallback idiom; if a text also fails on its own, Dense returns an error.
func Dense(ctx context.Context, embedder Embedder, texts []string, cfg DenseConfig) ([][]float32, error) {
	cfg = cfg.withDefaults()
	out := make([][]float32, len(texts))

	for start := 0; start < len(texts); start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vecs, err := embedder.Embed(ctx, batch)
		if err != nil || len(vecs) != len(batch) {
			// Per-text fallback: texts that embed alone are kept; the
			// first text that fails alone fails the call.
			for i, text := range batch {
				v, ferr := embedder.Embed(ctx, []string{text})
				if ferr != nil || len(v) != 1 {
					return nil, fmt.Errorf("encode: embedding text %d: %w", start+i, firstErr(err, ferr))
				}
				out[start+i] = normalize(v[0])
			}
			continue
		}
		for i, v := range vecs {
			out[start+i] = normalize(v)
		}
	}

	if cfg.Dim > 0 {
		for i, v := range out {
			if len(v) != cfg.Dim {
				return nil, fmt.Errorf("encode: vector %d has dimension %d, want %d", i, len(v), cfg.Dim)
			}
		}
	}
	return out, nil
}

func firstErr(a, b error) error {
	if a != nil {
		return a
	}
	return b
}

// normalize returns the L2-normalized copy of v. The zero vector is
// returned unchanged to avoid division by zero.
func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
