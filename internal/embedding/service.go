package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/amit6537/agent-warren/internal/config"
)

// ErrShapeMismatch is returned when a provider answers a batch with a
// different number of vectors than texts sent. It is a validation error and
// must never be retried.
var ErrShapeMismatch = errors.New("embedding batch shape mismatch")

// ProviderError wraps a failure reported by the embedding provider,
// preserving the provider's diagnostic.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Client is the interface for embedding API clients.
type Client interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Service generates embeddings through a provider client, splitting large
// inputs into provider-sized batches while preserving input order.
type Service struct {
	client    Client
	batchSize int
}

// NewService creates an embedding service for the configured provider.
func NewService(cfg *config.EmbeddingConfig) (*Service, error) {
	var client Client
	var err error

	switch cfg.Provider {
	case "openai":
		client, err = NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	return NewServiceWithClient(client, cfg.BatchSize), nil
}

// NewServiceWithClient creates a service around an existing client.
func NewServiceWithClient(client Client, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Service{client: client, batchSize: batchSize}
}

// Embed generates an embedding for a single text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates one embedding per input text, in input order.
// Inputs larger than the provider batch size are split internally.
// Returned vectors are scaled to unit length.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := texts[start:end]
		vectors, err := s.client.EmbedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch %d-%d: %w", start, end, err)
		}

		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("%w: sent %d texts, received %d vectors", ErrShapeMismatch, len(batch), len(vectors))
		}

		// Providers do not guarantee unit-length vectors.
		for _, vector := range vectors {
			Normalize(vector)
		}

		results = append(results, vectors...)
	}

	return results, nil
}

// Dimensions returns the configured embedding dimension.
func (s *Service) Dimensions() int {
	return s.client.Dimensions()
}

// Similarity computes cosine similarity between two vectors. Mismatched
// lengths yield 0; callers that care about dimension agreement must check
// it before scoring.
func Similarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct float32
	var normA float32
	var normB float32

	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

// Normalize scales a vector to unit length in place.
func Normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
