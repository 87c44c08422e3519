package ollama

import (
	"context"
	"errors"
	"strings"

	"github.com/givance/webserver-sub009/pkg/ai"

	"github.com/ollama/ollama/api"
)

// HasEmbeddings reports whether an embedding model is configured.
func (c *Client) HasEmbeddings() bool {
	return c.embeddingModel != ""
}

// GenerateEmbedding creates a vector embedding for the given input text
// using the configured embedding model on Ollama.
func (c *Client) GenerateEmbedding(
	ctx context.Context,
	input []byte,
) ([]float32, error) {
	if !c.HasEmbeddings() {
		return nil, errors.New("ollama embedding model is not configured")
	}

	dim := c.embeddingDim
	if len(strings.TrimSpace(string(input))) == 0 {
		return make([]float32, dim), nil
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	res, err := c.Client.Embed(rCtx, &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: string(input),
	})
	if err != nil {
		return nil, err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens: res.PromptEvalCount,
		TotalTokens: res.PromptEvalCount,
		DurationMs:  res.TotalDuration.Milliseconds(),
	})

	if len(res.Embeddings) == 0 {
		return nil, errors.New("ollama returned no embedding")
	}
	vec := res.Embeddings[0]
	if dim <= 0 {
		dim = len(vec)
	}
	out := make([]float32, dim)
	copy(out, vec)
	return out, nil
}
