package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amit6537/agent-warren/internal/chunker"
	"github.com/amit6537/agent-warren/internal/embedding"
	"github.com/amit6537/agent-warren/internal/store"
)

// Chunk, embed, upsert and retrieve one short document through the real
// write and read paths.
func TestSingleChunkDocumentRoundTrip(t *testing.T) {
	ctx := context.Background()
	text := "Berkshire Hathaway reported record operating earnings in 2023."

	ch, err := chunker.New(1024, 100)
	require.NoError(t, err)
	chunks := ch.Split(text)
	require.Len(t, chunks, 1)

	docVector := []float32{0.8, 0.2, 0.1}
	queryVector := []float32{0.79, 0.21, 0.1}
	embedder := embedding.NewServiceWithClient(&fixedClient{
		vectors: map[string][]float32{
			text: docVector,
			"What were the 2023 earnings?": queryVector,
		},
		fallback: []float32{0, 0, 1},
	}, 16)

	vectors, err := embedder.EmbedBatch(ctx, []string{chunks[0].Text})
	require.NoError(t, err)
	require.Len(t, vectors, 1)

	vs := newTestStore(t)
	require.NoError(t, vs.Upsert(ctx, "reports", []store.Entry{{
		ID:          fmt.Sprintf("letter:%d", chunks[0].Index),
		Vector:      vectors[0],
		DocID:       "letter",
		Source:      "letter.pdf",
		ChunkIndex:  chunks[0].Index,
		StartOffset: chunks[0].Start,
		EndOffset:   chunks[0].End,
		Content:     chunks[0].Text,
	}}))

	svc := NewService(vs, embedder, nil, "reports")
	bundle, err := svc.Retrieve(ctx, "What were the 2023 earnings?", Options{
		TopK:         5,
		VectorWeight: 1.0,
		PreviewChars: 600,
	})
	require.NoError(t, err)

	require.Len(t, bundle.Items, 1)
	assert.Equal(t, "letter.pdf", bundle.Items[0].Source)
	assert.Equal(t, text, bundle.Items[0].Snippet)
	assert.Greater(t, bundle.Items[0].Score, float32(0.99))
}
