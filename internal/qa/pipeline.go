// Package qa runs the per-request question answering pipeline: embed the
// question, retrieve context, generate a grounded answer. Each request
// moves through a fixed sequence of stages under one deadline.
package qa

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/amit6537/agent-warren/internal/answer"
	"github.com/amit6537/agent-warren/internal/retrieval"
)

// ErrEmptyQuestion is returned for blank questions before any stage runs.
var ErrEmptyQuestion = errors.New("question is empty")

// NoContextAnswer is returned when retrieval finds nothing relevant.
const NoContextAnswer = "No relevant information was found in the indexed documents."

// Stage identifies where a request is in the pipeline.
type Stage string

const (
	StageReceived   Stage = "received"
	StageEmbedding  Stage = "embedding"
	StageRetrieving Stage = "retrieving"
	StageGenerating Stage = "generating"
	StageCompleted  Stage = "completed"
	StageErrored    Stage = "errored"
)

// Result is the outcome of one request. On failure, Stage is StageErrored,
// FailedAt names the stage that failed and Kind classifies the error.
type Result struct {
	Question string
	Answer   string
	Items    []retrieval.Item
	Stage    Stage
	FailedAt Stage
	Kind     Kind
	Elapsed  time.Duration
}

// Pipeline wires retrieval and generation under a per-request deadline.
type Pipeline struct {
	retriever *retrieval.Service
	generator answer.Generator
	opts      retrieval.Options
	timeout   time.Duration
	logger    *log.Logger
}

// New creates a pipeline. A zero timeout disables the request deadline;
// a nil logger disables stage logging.
func New(retriever *retrieval.Service, generator answer.Generator, opts retrieval.Options, timeout time.Duration, logger *log.Logger) *Pipeline {
	return &Pipeline{
		retriever: retriever,
		generator: generator,
		opts:      opts,
		timeout:   timeout,
		logger:    logger,
	}
}

// Ask answers one question. The stages run strictly in order; any failure
// is terminal for the request and partial work is discarded.
func (p *Pipeline) Ask(ctx context.Context, question string) (*Result, error) {
	start := time.Now()
	result := &Result{Question: question, Stage: StageReceived}

	if strings.TrimSpace(question) == "" {
		return p.fail(result, StageReceived, start, ErrEmptyQuestion)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	result.Stage = StageEmbedding
	queryVector, err := p.retriever.EmbedQuestion(ctx, question)
	if err != nil {
		return p.fail(result, StageEmbedding, start, err)
	}

	result.Stage = StageRetrieving
	bundle, err := p.retriever.RetrieveVector(ctx, question, queryVector, p.opts)
	if err != nil {
		return p.fail(result, StageRetrieving, start, err)
	}
	result.Items = bundle.Items

	if len(bundle.Items) == 0 {
		result.Stage = StageCompleted
		result.Answer = NoContextAnswer
		result.Elapsed = time.Since(start)
		p.logf("question answered without context in %s", result.Elapsed)
		return result, nil
	}

	result.Stage = StageGenerating
	text, err := p.generator.Generate(ctx, question, bundle.Items)
	if err != nil {
		return p.fail(result, StageGenerating, start, err)
	}

	result.Stage = StageCompleted
	result.Answer = text
	result.Elapsed = time.Since(start)
	p.logf("question answered with %d context item(s) in %s", len(result.Items), result.Elapsed)
	return result, nil
}

func (p *Pipeline) fail(result *Result, at Stage, start time.Time, err error) (*Result, error) {
	result.FailedAt = at
	result.Stage = StageErrored
	result.Kind = ClassifyKind(err)
	result.Elapsed = time.Since(start)
	p.logf("request failed at stage %s (%s): %v", at, result.Kind, err)
	return result, fmt.Errorf("stage %s: %w", at, err)
}

func (p *Pipeline) logf(format string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
