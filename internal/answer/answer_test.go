package answer

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amit6537/agent-warren/internal/retrieval"
)

type fakeChat struct {
	calls     int
	failUntil int
	content   string
	err       error
	lastReq   openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	f.lastReq = req
	if f.calls <= f.failUntil {
		return openai.ChatCompletionResponse{}, errors.New("transient upstream failure")
	}
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

type fakeStream struct {
	deltas []string
	pos    int
	err    error
}

func (f *fakeStream) Recv() (openai.ChatCompletionStreamResponse, error) {
	if f.pos >= len(f.deltas) {
		if f.err != nil {
			return openai.ChatCompletionStreamResponse{}, f.err
		}
		return openai.ChatCompletionStreamResponse{}, io.EOF
	}
	delta := f.deltas[f.pos]
	f.pos++
	return openai.ChatCompletionStreamResponse{
		Choices: []openai.ChatCompletionStreamChoice{
			{Delta: openai.ChatCompletionStreamChoiceDelta{Content: delta}},
		},
	}, nil
}

func (f *fakeStream) Close() error { return nil }

func contextItems() []retrieval.Item {
	return []retrieval.Item{
		{Source: "report.pdf", ChunkIndex: 0, Score: 0.92, Snippet: "Operating earnings were a record."},
		{Source: "report.pdf", ChunkIndex: 4, Score: 0.81, Snippet: "Float grew modestly."},
	}
}

func TestGenerateBlocking(t *testing.T) {
	chat := &fakeChat{content: "  Earnings were a record [1].  "}
	gen := NewWithClient(chat, "gpt-4o-mini", 0, 0)

	answer, err := gen.Generate(context.Background(), "What were earnings?", contextItems())
	require.NoError(t, err)
	assert.Equal(t, "Earnings were a record [1].", answer)
	assert.Equal(t, 1, chat.calls)

	// The prompt carries the numbered excerpts and the question.
	require.Len(t, chat.lastReq.Messages, 2)
	user := chat.lastReq.Messages[1].Content
	assert.Contains(t, user, "[1] report.pdf (chunk 0):")
	assert.Contains(t, user, "[2] report.pdf (chunk 4):")
	assert.Contains(t, user, "Question: What were earnings?")
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	chat := &fakeChat{failUntil: 2, content: "recovered answer"}
	gen := NewWithClient(chat, "gpt-4o-mini", 3, time.Millisecond)

	answer, err := gen.Generate(context.Background(), "q", contextItems())
	require.NoError(t, err)
	assert.Equal(t, "recovered answer", answer)
	assert.Equal(t, 3, chat.calls)
}

func TestGenerateExhaustsRetries(t *testing.T) {
	chat := &fakeChat{failUntil: 100}
	gen := NewWithClient(chat, "gpt-4o-mini", 2, time.Millisecond)

	_, err := gen.Generate(context.Background(), "q", contextItems())
	require.Error(t, err)

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, 3, genErr.Attempts)
	assert.Equal(t, 3, chat.calls)
}

func TestGenerateEmptyCompletionIsError(t *testing.T) {
	chat := &fakeChat{content: "   "}
	gen := NewWithClient(chat, "gpt-4o-mini", 0, 0)

	_, err := gen.Generate(context.Background(), "q", contextItems())
	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
}

func TestGenerateDoesNotRetryCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chat := &fakeChat{err: context.Canceled}
	gen := NewWithClient(chat, "gpt-4o-mini", 5, time.Millisecond)

	_, err := gen.Generate(ctx, "q", contextItems())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, chat.calls)
}

func TestGenerateStreaming(t *testing.T) {
	var seen []string
	stream := &fakeStream{deltas: []string{"Earnings ", "were ", "a record."}}
	gen := NewWithStream(func(_ context.Context, req openai.ChatCompletionRequest) (ChatStream, error) {
		assert.True(t, req.Stream)
		return stream, nil
	}, "gpt-4o-mini", 0, 0)
	gen.OnDelta = func(delta string) { seen = append(seen, delta) }

	answer, err := gen.Generate(context.Background(), "q", contextItems())
	require.NoError(t, err)
	assert.Equal(t, "Earnings were a record.", answer)
	assert.Equal(t, []string{"Earnings ", "were ", "a record."}, seen)
}

func TestGenerateStreamingFailure(t *testing.T) {
	gen := NewWithStream(func(context.Context, openai.ChatCompletionRequest) (ChatStream, error) {
		return &fakeStream{err: errors.New("connection reset")}, nil
	}, "gpt-4o-mini", 1, time.Millisecond)

	_, err := gen.Generate(context.Background(), "q", contextItems())
	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, 2, genErr.Attempts)
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, time.Duration(0), calculateBackoff(time.Second, 0))
	assert.Equal(t, time.Duration(0), calculateBackoff(0, 3))

	for attempt := 1; attempt <= 5; attempt++ {
		d := calculateBackoff(100*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 40*time.Second)
	}
}
