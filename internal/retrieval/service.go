// Package retrieval turns a question into a ranked context bundle by
// combining vector similarity with optional keyword search.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/amit6537/agent-warren/internal/embedding"
	"github.com/amit6537/agent-warren/internal/store"
	"github.com/amit6537/agent-warren/internal/textindex"
)

// Item is one retrieved chunk with its provenance and score.
type Item struct {
	Source     string  `json:"source"`
	DocID      string  `json:"doc_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
	Snippet    string  `json:"snippet"`
}

// Bundle is the ordered context handed to answer generation. An empty
// Items slice is a valid outcome: nothing relevant was found.
type Bundle struct {
	Question string `json:"question"`
	Items    []Item `json:"items"`
}

// Options configures one retrieval pass.
type Options struct {
	TopK          int
	MinScore      float32
	VectorWeight  float32
	KeywordWeight float32
	PreviewChars  int
}

// DefaultOptions returns vector-only retrieval with sensible limits.
func DefaultOptions() Options {
	return Options{
		TopK:         5,
		VectorWeight: 1.0,
		PreviewChars: 600,
	}
}

// Service retrieves context for questions from one collection.
type Service struct {
	vectorStore *store.VectorStore
	embedder    *embedding.Service
	textIndex   *textindex.Index // nil disables keyword blending
	collection  string
}

// NewService creates a retrieval service. textIndex may be nil, in which
// case retrieval is purely vector based regardless of keyword weight.
func NewService(vectorStore *store.VectorStore, embedder *embedding.Service, textIndex *textindex.Index, collection string) *Service {
	return &Service{
		vectorStore: vectorStore,
		embedder:    embedder,
		textIndex:   textIndex,
		collection:  collection,
	}
}

type scoredEntry struct {
	entry         store.Entry
	vectorScore   float32
	keywordScore  float32
	combinedScore float32
	order         int
}

// Retrieve embeds the question, searches the collection and returns the
// TopK results above MinScore. Store errors such as a missing collection
// or a dimension mismatch propagate to the caller unwrapped.
func (s *Service) Retrieve(ctx context.Context, question string, opts Options) (*Bundle, error) {
	queryVector, err := s.EmbedQuestion(ctx, question)
	if err != nil {
		return nil, err
	}
	return s.RetrieveVector(ctx, question, queryVector, opts)
}

// EmbedQuestion returns the question's embedding vector.
func (s *Service) EmbedQuestion(ctx context.Context, question string) ([]float32, error) {
	queryVector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	return queryVector, nil
}

// RetrieveVector searches the collection with an already-computed query
// vector.
func (s *Service) RetrieveVector(ctx context.Context, question string, queryVector []float32, opts Options) (*Bundle, error) {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}

	totalWeight := opts.VectorWeight + opts.KeywordWeight
	if totalWeight == 0 {
		opts.VectorWeight = 1.0
		totalWeight = 1.0
	}
	opts.VectorWeight /= totalWeight
	opts.KeywordWeight /= totalWeight

	// Over-fetch so keyword blending and the MinScore filter still leave
	// TopK candidates to choose from.
	fetchK := opts.TopK * 2
	vectorResults, err := s.vectorStore.Query(ctx, s.collection, queryVector, fetchK)
	if err != nil {
		return nil, err
	}

	candidates := make(map[string]*scoredEntry, len(vectorResults))
	for i, r := range vectorResults {
		candidates[r.Entry.ID] = &scoredEntry{
			entry:       r.Entry,
			vectorScore: r.Score,
			order:       i,
		}
	}

	if s.textIndex != nil && opts.KeywordWeight > 0 {
		if err := s.blendKeywordScores(ctx, question, fetchK, candidates); err != nil {
			return nil, err
		}
	}

	ranked := make([]*scoredEntry, 0, len(candidates))
	for _, c := range candidates {
		c.combinedScore = opts.VectorWeight*c.vectorScore + opts.KeywordWeight*c.keywordScore
		if c.combinedScore >= opts.MinScore {
			ranked = append(ranked, c)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].combinedScore != ranked[j].combinedScore {
			return ranked[i].combinedScore > ranked[j].combinedScore
		}
		return ranked[i].order < ranked[j].order
	})
	if len(ranked) > opts.TopK {
		ranked = ranked[:opts.TopK]
	}

	bundle := &Bundle{Question: question, Items: make([]Item, 0, len(ranked))}
	for _, c := range ranked {
		bundle.Items = append(bundle.Items, Item{
			Source:     c.entry.Source,
			DocID:      c.entry.DocID,
			ChunkIndex: c.entry.ChunkIndex,
			Score:      c.combinedScore,
			Snippet:    truncateSnippet(c.entry.Content, opts.PreviewChars),
		})
	}
	return bundle, nil
}

// blendKeywordScores folds normalized bleve scores into the candidate set,
// hydrating keyword-only hits from the vector store.
func (s *Service) blendKeywordScores(ctx context.Context, question string, limit int, candidates map[string]*scoredEntry) error {
	scores, err := s.textIndex.Search(question, limit)
	if err != nil {
		return fmt.Errorf("keyword search failed: %w", err)
	}
	if len(scores) == 0 {
		return nil
	}

	var maxScore float64
	for _, score := range scores {
		if score > maxScore {
			maxScore = score
		}
	}
	if maxScore == 0 {
		return nil
	}

	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nextOrder := len(candidates)
	for _, id := range ids {
		normalized := float32(scores[id] / maxScore)
		if c, ok := candidates[id]; ok {
			c.keywordScore = normalized
			continue
		}

		entry, err := s.vectorStore.Get(ctx, s.collection, id)
		if err != nil {
			return fmt.Errorf("failed to load entry %s: %w", id, err)
		}
		if entry == nil {
			continue // stale text index entry
		}
		candidates[id] = &scoredEntry{
			entry:        *entry,
			keywordScore: normalized,
			order:        nextOrder,
		}
		nextOrder++
	}
	return nil
}

// truncateSnippet cuts content to at most limit runes, marking the cut.
func truncateSnippet(content string, limit int) string {
	if limit <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}
