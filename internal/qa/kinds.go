package qa

import (
	"context"
	"errors"
	"net"

	openai "github.com/sashabaranov/go-openai"

	"github.com/amit6537/agent-warren/internal/answer"
	"github.com/amit6537/agent-warren/internal/chunker"
	"github.com/amit6537/agent-warren/internal/embedding"
	"github.com/amit6537/agent-warren/internal/store"
)

// Kind is a stable classification of a pipeline error, used in logs and
// error responses.
type Kind string

const (
	KindInvalidConfig       Kind = "InvalidConfig"
	KindEmbeddingError      Kind = "EmbeddingError"
	KindShapeMismatch       Kind = "ShapeMismatch"
	KindDimensionMismatch   Kind = "DimensionMismatch"
	KindCollectionNotFound  Kind = "CollectionNotFound"
	KindGenerationError     Kind = "GenerationError"
	KindTimeout             Kind = "Timeout"
	KindProviderUnavailable Kind = "ProviderUnavailable"
	KindInvalidRequest      Kind = "InvalidRequest"
	KindInternal            Kind = "InternalError"
)

// ClassifyKind maps any pipeline error to its kind. Deadline expiry wins
// over whatever stage error it surfaced through.
func ClassifyKind(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTimeout
	case errors.Is(err, ErrEmptyQuestion):
		return KindInvalidRequest
	case errors.Is(err, chunker.ErrInvalidConfig):
		return KindInvalidConfig
	case errors.Is(err, embedding.ErrShapeMismatch):
		return KindShapeMismatch
	case errors.Is(err, store.ErrDimensionMismatch):
		return KindDimensionMismatch
	case errors.Is(err, store.ErrCollectionNotFound):
		return KindCollectionNotFound
	}

	if providerUnavailable(err) {
		return KindProviderUnavailable
	}

	var provErr *embedding.ProviderError
	if errors.As(err, &provErr) {
		return KindEmbeddingError
	}

	var genErr *answer.GenerationError
	if errors.As(err, &genErr) {
		return KindGenerationError
	}

	return KindInternal
}

// providerUnavailable reports whether the error indicates the provider
// itself is unreachable or overloaded rather than rejecting the request.
func providerUnavailable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
