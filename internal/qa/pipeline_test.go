package qa

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amit6537/agent-warren/internal/answer"
	"github.com/amit6537/agent-warren/internal/embedding"
	"github.com/amit6537/agent-warren/internal/retrieval"
	"github.com/amit6537/agent-warren/internal/store"
)

type unitClient struct{}

func (unitClient) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (unitClient) Dimensions() int { return 2 }

type fakeGenerator struct {
	calls  int
	answer string
	err    error
	block  bool
}

func (g *fakeGenerator) Generate(ctx context.Context, _ string, _ []retrieval.Item) (string, error) {
	g.calls++
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

func newTestRetriever(t *testing.T, seed bool) *retrieval.Service {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "warren.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	vs := store.NewVectorStore(db)
	if seed {
		require.NoError(t, vs.Upsert(context.Background(), "reports", []store.Entry{
			{ID: "r:0", Vector: []float32{1, 0}, DocID: "r", Source: "report.pdf",
				Content: "Operating earnings were a record."},
		}))
	}

	embedder := embedding.NewServiceWithClient(unitClient{}, 16)
	return retrieval.NewService(vs, embedder, nil, "reports")
}

func defaultOpts() retrieval.Options {
	return retrieval.Options{TopK: 3, VectorWeight: 1.0, PreviewChars: 600}
}

func TestAskHappyPath(t *testing.T) {
	gen := &fakeGenerator{answer: "Earnings were a record [1]."}
	p := New(newTestRetriever(t, true), gen, defaultOpts(), 0, nil)

	result, err := p.Ask(context.Background(), "What were earnings?")
	require.NoError(t, err)

	assert.Equal(t, StageCompleted, result.Stage)
	assert.Equal(t, "Earnings were a record [1].", result.Answer)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "report.pdf", result.Items[0].Source)
	assert.Equal(t, 1, gen.calls)
}

func TestAskEmptyQuestion(t *testing.T) {
	gen := &fakeGenerator{}
	p := New(newTestRetriever(t, true), gen, defaultOpts(), 0, nil)

	result, err := p.Ask(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyQuestion))
	assert.Equal(t, StageErrored, result.Stage)
	assert.Equal(t, StageReceived, result.FailedAt)
	assert.Equal(t, KindInvalidRequest, result.Kind)
	assert.Equal(t, 0, gen.calls)
}

func TestAskNoRelevantContext(t *testing.T) {
	gen := &fakeGenerator{answer: "should not be called"}
	opts := defaultOpts()
	opts.MinScore = 2.0 // above any cosine score
	p := New(newTestRetriever(t, true), gen, opts, 0, nil)

	result, err := p.Ask(context.Background(), "off topic")
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, result.Stage)
	assert.Equal(t, NoContextAnswer, result.Answer)
	assert.Empty(t, result.Items)
	assert.Equal(t, 0, gen.calls)
}

func TestAskCollectionNotFound(t *testing.T) {
	gen := &fakeGenerator{}
	p := New(newTestRetriever(t, false), gen, defaultOpts(), 0, nil)

	result, err := p.Ask(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrCollectionNotFound))
	assert.Equal(t, StageRetrieving, result.FailedAt)
	assert.Equal(t, KindCollectionNotFound, result.Kind)
}

func TestAskGenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: &answer.GenerationError{Attempts: 3, Err: errors.New("boom")}}
	p := New(newTestRetriever(t, true), gen, defaultOpts(), 0, nil)

	result, err := p.Ask(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, StageGenerating, result.FailedAt)
	assert.Equal(t, KindGenerationError, result.Kind)
}

func TestAskDeadlineAbortsGeneration(t *testing.T) {
	gen := &fakeGenerator{block: true}
	p := New(newTestRetriever(t, true), gen, defaultOpts(), 20*time.Millisecond, nil)

	result, err := p.Ask(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, StageGenerating, result.FailedAt)
	assert.Equal(t, KindTimeout, result.Kind)
}

func TestClassifyKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, Kind("")},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", &answer.GenerationError{Attempts: 1, Err: context.DeadlineExceeded}, KindTimeout},
		{"empty question", ErrEmptyQuestion, KindInvalidRequest},
		{"shape", embedding.ErrShapeMismatch, KindShapeMismatch},
		{"dimension", store.ErrDimensionMismatch, KindDimensionMismatch},
		{"collection", store.ErrCollectionNotFound, KindCollectionNotFound},
		{"provider", &embedding.ProviderError{Provider: "openai", Err: errors.New("bad request")}, KindEmbeddingError},
		{"generation", &answer.GenerationError{Attempts: 2, Err: errors.New("boom")}, KindGenerationError},
		{"unknown", errors.New("mystery"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyKind(tt.err))
		})
	}
}
