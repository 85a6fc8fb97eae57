package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient returns deterministic vectors and records batch boundaries.
type fakeClient struct {
	dims       int
	batches    [][]string
	failAfter  int // fail on the Nth call (1-based), 0 = never
	shortBatch bool
}

func (f *fakeClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	if f.failAfter > 0 && len(f.batches) >= f.failAfter {
		return nil, &ProviderError{Provider: "fake", Err: errors.New("quota exceeded")}
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, f.dims)
		v[0] = float32(len(text))
		v[1] = 1
		vectors[i] = v
	}
	if f.shortBatch && len(vectors) > 0 {
		vectors = vectors[:len(vectors)-1]
	}
	return vectors, nil
}

func (f *fakeClient) Dimensions() int { return f.dims }

func TestEmbedBatchSplitsAndPreservesOrder(t *testing.T) {
	client := &fakeClient{dims: 4}
	svc := NewServiceWithClient(client, 3)

	texts := make([]string, 8)
	for i := range texts {
		texts[i] = fmt.Sprintf("%0*d", i+1, 0) // lengths 1..8
	}

	vectors, err := svc.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 8)

	// Split into batches of at most 3, order preserved.
	require.Len(t, client.batches, 3)
	assert.Len(t, client.batches[0], 3)
	assert.Len(t, client.batches[1], 3)
	assert.Len(t, client.batches[2], 2)

	// The fake encodes input length in the vector's direction, which
	// normalization preserves: v[0]/v[1] recovers it.
	for i, v := range vectors {
		assert.InDelta(t, float64(i+1), float64(v[0]/v[1]), 1e-4, "vector %d out of order", i)
	}
}

func TestEmbedBatchReturnsUnitVectors(t *testing.T) {
	svc := NewServiceWithClient(&fakeClient{dims: 4}, 10)

	vectors, err := svc.EmbedBatch(context.Background(), []string{"a", "longer input"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)

	for i, v := range vectors {
		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, norm, 1e-5, "vector %d is not unit length", i)
	}
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	svc := NewServiceWithClient(&fakeClient{dims: 4}, 3)
	vectors, err := svc.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEmbedBatchShapeMismatch(t *testing.T) {
	svc := NewServiceWithClient(&fakeClient{dims: 4, shortBatch: true}, 10)

	_, err := svc.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestEmbedBatchPropagatesProviderError(t *testing.T) {
	svc := NewServiceWithClient(&fakeClient{dims: 4, failAfter: 1}, 10)

	_, err := svc.EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)

	var provErr *ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, "fake", provErr.Provider)
	assert.Contains(t, provErr.Error(), "quota exceeded")
}

func TestEmbedRejectsEmptyText(t *testing.T) {
	svc := NewServiceWithClient(&fakeClient{dims: 4}, 3)
	_, err := svc.Embed(context.Background(), "")
	require.Error(t, err)
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float32
	}{
		{"identical vectors", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal vectors", []float32{1, 0, 0}, []float32{0, 1, 0}, 0.0},
		{"opposite vectors", []float32{1, 1, 1}, []float32{-1, -1, -1}, -1.0},
		{"mismatched lengths", []float32{1, 2}, []float32{1, 2, 3}, 0.0},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 2, 3}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Similarity(tt.a, tt.b), 0.001)
		})
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 0.6, v[0], 0.001)
	assert.InDelta(t, 0.8, v[1], 0.001)
	assert.InDelta(t, 1.0, Similarity(v, []float32{3, 4}), 0.001)

	zero := []float32{0, 0}
	Normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}
