// Package answer produces grounded answers from retrieved context using a
// chat completion model.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/amit6537/agent-warren/internal/retrieval"
)

// GenerationError reports that answer generation failed after all retries.
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("answer generation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Generator turns a question plus retrieved context into an answer.
type Generator interface {
	Generate(ctx context.Context, question string, items []retrieval.Item) (string, error)
}

const systemPrompt = `You are a careful assistant answering questions about a document collection.
Answer using ONLY the numbered context excerpts provided. Cite excerpts as [1], [2] where relevant.
If the context does not contain the answer, say so plainly instead of guessing.`

// buildUserPrompt renders the numbered context excerpts followed by the
// question. The excerpt numbering matches the citation format the system
// prompt asks the model to use.
func buildUserPrompt(question string, items []retrieval.Item) string {
	var b strings.Builder
	b.WriteString("Context excerpts:\n\n")
	for i, item := range items {
		fmt.Fprintf(&b, "[%d] %s (chunk %d):\n%s\n\n", i+1, item.Source, item.ChunkIndex, item.Snippet)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
