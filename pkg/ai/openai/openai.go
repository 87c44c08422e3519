package openai

import (
	"sync"
	"time"

	"github.com/givance/webserver-sub009/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// Client talks to an OpenAI compatible API. Chat and embeddings may point to
// different endpoints; the embedding client is nil when no key is configured.
//
// A Client should be created using NewClient.
type Client struct {
	chatModel      string
	embeddingModel string
	embeddingDim   int

	chatURL string
	timeout time.Duration

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewClientParams defines the configuration parameters for creating a new Client.
// ChatModel is the default for every request; callers override it per request
// with ai.WithModel.
type NewClientParams struct {
	ChatModel      string
	EmbeddingModel string
	EmbeddingDim   int

	ChatURL      string
	ChatKey      string
	EmbeddingURL string
	EmbeddingKey string

	MaxConcurrentRequests int64
	TimeoutMin            int
}

// NewClient creates a Client with separate OpenAI clients for chat and
// embeddings.
//
// Example:
//
//	client := openai.NewClient(openai.NewClientParams{
//		ChatModel:    "gpt-4o-mini",
//		ChatKey:      os.Getenv("AI_CHAT_KEY"),
//		EmbeddingModel: "text-embedding-3-small",
//		EmbeddingKey: os.Getenv("AI_EMBED_KEY"),
//	})
func NewClient(params NewClientParams) *Client {
	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 8
	}
	timeout := time.Duration(params.TimeoutMin) * time.Minute
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &Client{
		chatModel:      params.ChatModel,
		embeddingModel: params.EmbeddingModel,
		embeddingDim:   params.EmbeddingDim,

		chatURL: params.ChatURL,
		timeout: timeout,

		reqLock: semaphore.NewWeighted(maxReq),

		ChatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

// HasEmbeddings reports whether an embedding endpoint is configured.
func (c *Client) HasEmbeddings() bool {
	return c.EmbeddingClient != nil && c.embeddingModel != ""
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}

// ResetMetrics clears all accumulated token and timing metrics.
func (c *Client) ResetMetrics() {
	c.metricsLock.Lock()
	c.metrics = ai.ModelMetrics{}
	c.metricsLock.Unlock()
}

// GetMetrics returns the metrics accumulated since the last reset.
func (c *Client) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

func (c *Client) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	m.Requests = 1
	c.metrics.Add(m)
}
