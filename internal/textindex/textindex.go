// Package textindex maintains a bleve full-text index over chunk content.
// It supplies the keyword half of hybrid retrieval; the vector index in
// internal/store remains the source of truth.
package textindex

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Doc is the indexed representation of one chunk.
type Doc struct {
	Content    string `json:"content"`
	DocID      string `json:"doc_id"`
	ChunkIndex int    `json:"chunk_index"`
}

// Index wraps a bleve index keyed by entry ID.
type Index struct {
	index bleve.Index
}

// Create resets and creates the text index directory.
func Create(dir string) (*Index, error) {
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("reset text index dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create text index dir: %w", err)
	}
	index, err := bleve.New(dir, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &Index{index: index}, nil
}

// Open opens an existing text index.
func Open(dir string) (*Index, error) {
	index, err := bleve.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}
	return &Index{index: index}, nil
}

// OpenOrCreate opens the index at dir, creating it when absent.
func OpenOrCreate(dir string) (*Index, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return Create(dir)
	}
	return Open(dir)
}

// IndexBatch indexes a set of chunk documents keyed by entry ID.
func (i *Index) IndexBatch(docs map[string]Doc) error {
	batch := i.index.NewBatch()
	for id, doc := range docs {
		if err := batch.Index(id, doc); err != nil {
			return fmt.Errorf("index doc %s: %w", id, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("apply index batch: %w", err)
	}
	return nil
}

// DeleteBatch removes documents by entry ID. Unknown IDs are a no-op.
func (i *Index) DeleteBatch(ids []string) error {
	batch := i.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("apply delete batch: %w", err)
	}
	return nil
}

// Search runs a match query over chunk content and returns entry IDs with
// their bleve scores, best first.
func (i *Index) Search(query string, limit int) (map[string]float64, error) {
	if limit <= 0 {
		limit = 10
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequestOptions(matchQuery, limit, 0, false)
	result, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}

	scores := make(map[string]float64, len(result.Hits))
	for _, hit := range result.Hits {
		scores[hit.ID] = hit.Score
	}
	return scores, nil
}

// Close closes the underlying bleve index.
func (i *Index) Close() error {
	return i.index.Close()
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.DefaultField = "content"

	docMapping := bleve.NewDocumentMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Store = false
	contentField.Index = true
	docMapping.AddFieldMappingsAt("content", contentField)

	docIDField := bleve.NewTextFieldMapping()
	docIDField.Store = true
	docIDField.Index = true
	docIDField.Analyzer = "keyword"
	docMapping.AddFieldMappingsAt("doc_id", docIDField)

	chunkField := bleve.NewNumericFieldMapping()
	chunkField.Store = true
	chunkField.Index = false
	docMapping.AddFieldMappingsAt("chunk_index", chunkField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}
