package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/givance/webserver-sub009/pkg/ai"

	"github.com/openai/openai-go/v3"
)

// GenerateEmbedding creates a vector embedding for the given input text
// using the configured embedding model. Vectors are truncated or zero padded
// to the configured dimension so they fit the todo embedding column.
func (c *Client) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	if !c.HasEmbeddings() {
		return nil, errors.New("openai embedding client is not configured")
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

	body := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{string(input)}},
		Model: c.embeddingModel,
	}

	start := time.Now()
	response, err := c.EmbeddingClient.Embeddings.New(rCtx, body)
	if err != nil {
		return nil, err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens: int(response.Usage.PromptTokens),
		TotalTokens: int(response.Usage.TotalTokens),
		DurationMs:  time.Since(start).Milliseconds(),
	})

	if len(response.Data) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(response.Data))
	}
	return fitDimension(response.Data[0].Embedding, dim), nil
}

func fitDimension(values []float64, dim int) []float32 {
	if dim <= 0 {
		dim = len(values)
	}
	out := make([]float32, dim)
	for i := 0; i < dim && i < len(values); i++ {
		out[i] = float32(values[i])
	}
	return out
}
