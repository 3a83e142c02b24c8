package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
)

// Embedder turns text into vectors with the embeddings endpoint of the
// provider's API.
type Embedder struct {
	client openai.Client
	model  string
}

// Embedder returns an embedder sharing p's client and credentials.
func (p *Provider) Embedder(model string) *Embedder {
	return &Embedder{client: p.client, model: model}
}

// Name identifies the embedding backend.
func (e *Embedder) Name() string {
	return "openai:" + e.model
}

// Embed returns one vector per input text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}
	return out, nil
}
