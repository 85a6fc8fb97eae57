package answer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/amit6537/agent-warren/internal/config"
	"github.com/amit6537/agent-warren/internal/retrieval"
)

// ChatClient is the blocking chat completion surface of the OpenAI client.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatStream yields completion deltas until io.EOF.
type ChatStream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// StreamOpener starts a streaming completion request.
type StreamOpener func(ctx context.Context, req openai.ChatCompletionRequest) (ChatStream, error)

// OpenAIGenerator generates answers via the OpenAI chat API with bounded
// retries. When a stream opener is set, deltas are consumed in arrival
// order and the concatenation is returned; OnDelta observes each piece.
type OpenAIGenerator struct {
	client     ChatClient
	openStream StreamOpener
	model      string
	maxRetries int
	retryDelay time.Duration

	// OnDelta, if set, receives each streamed content fragment.
	OnDelta func(string)
}

// New builds a generator from the shared OpenAI client and generation
// settings. Streaming mode is chosen at construction per configuration.
func New(client *openai.Client, cfg *config.GenerationConfig) *OpenAIGenerator {
	g := &OpenAIGenerator{
		client:     client,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay(),
	}
	if cfg.Streaming {
		g.openStream = func(ctx context.Context, req openai.ChatCompletionRequest) (ChatStream, error) {
			return client.CreateChatCompletionStream(ctx, req)
		}
	}
	return g
}

// NewWithClient builds a blocking generator over any ChatClient.
func NewWithClient(client ChatClient, model string, maxRetries int, retryDelay time.Duration) *OpenAIGenerator {
	return &OpenAIGenerator{
		client:     client,
		model:      model,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// NewWithStream builds a streaming generator over any stream opener.
func NewWithStream(open StreamOpener, model string, maxRetries int, retryDelay time.Duration) *OpenAIGenerator {
	return &OpenAIGenerator{
		openStream: open,
		model:      model,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// Generate produces an answer grounded in the retrieved items. Provider
// failures and empty completions are retried with exponential backoff;
// context cancellation aborts immediately and is returned unwrapped.
func (g *OpenAIGenerator) Generate(ctx context.Context, question string, items []retrieval.Item) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(question, items)},
		},
		Temperature: 0.2,
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(calculateBackoff(g.retryDelay, attempt)):
			}
		}
		attempts++

		var answer string
		var err error
		if g.openStream != nil {
			answer, err = g.generateStreaming(ctx, req)
		} else {
			answer, err = g.generateBlocking(ctx, req)
		}
		if err == nil {
			return answer, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		lastErr = err
	}

	return "", &GenerationError{Attempts: attempts, Err: lastErr}
}

func (g *OpenAIGenerator) generateBlocking(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", errors.New("empty completion returned")
	}
	return answer, nil
}

func (g *OpenAIGenerator) generateStreaming(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	req.Stream = true
	stream, err := g.openStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("open completion stream: %w", err)
	}
	defer stream.Close()

	var b strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read completion stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if g.OnDelta != nil {
			g.OnDelta(delta)
		}
		b.WriteString(delta)
	}

	answer := strings.TrimSpace(b.String())
	if answer == "" {
		return "", errors.New("empty completion stream")
	}
	return answer, nil
}
