package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/amit6537/agent-warren/internal/config"
)

// OpenAIClient implements Client against the OpenAI embeddings API, or any
// OpenAI-compatible endpoint via base_url.
type OpenAIClient struct {
	client *openai.Client
	model  string
	dims   int
}

// NewOpenAIClient creates an OpenAI embedding client from configuration.
func NewOpenAIClient(cfg *config.EmbeddingConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required (set %s)", cfg.APIKeyEnv)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		dims:   cfg.Dimensions,
	}, nil
}

// EmbedBatch generates embeddings for a batch of texts. Results are ordered
// by the provider's reported index, which matches input order.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Err: err}
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: sent %d texts, received %d vectors", ErrShapeMismatch, len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("%w: provider returned invalid index %d", ErrShapeMismatch, data.Index)
		}
		vectors[data.Index] = data.Embedding
	}

	return vectors, nil
}

// Dimensions returns the configured embedding dimension.
func (c *OpenAIClient) Dimensions() int {
	return c.dims
}
