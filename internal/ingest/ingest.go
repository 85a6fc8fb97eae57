// Package ingest runs batch document ingestion: enumerate sources, extract
// and chunk text, embed the chunks and persist them. Each document is
// ingested all-or-nothing; one failed document never aborts the batch.
package ingest

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/amit6537/agent-warren/internal/chunker"
	"github.com/amit6537/agent-warren/internal/document"
	"github.com/amit6537/agent-warren/internal/embedding"
	"github.com/amit6537/agent-warren/internal/store"
	"github.com/amit6537/agent-warren/internal/textindex"
)

// Failure records one document that could not be ingested.
type Failure struct {
	Path string
	Err  error
}

// Report summarizes one ingestion run.
type Report struct {
	JobID     string
	Started   time.Time
	Elapsed   time.Duration
	Documents int
	Succeeded int
	Failed    int
	Chunks    int
	Failures  []Failure
}

// Job ingests a directory of documents into one collection.
type Job struct {
	chunker    *chunker.Chunker
	embedder   *embedding.Service
	store      *store.VectorStore
	textIndex  *textindex.Index // nil disables keyword indexing
	collection string
	progress   ProgressReporter
	logger     *log.Logger
}

// NewJob creates an ingestion job. progress and logger may be nil.
func NewJob(ch *chunker.Chunker, embedder *embedding.Service, vs *store.VectorStore, ti *textindex.Index, collection string, progress ProgressReporter, logger *log.Logger) *Job {
	return &Job{
		chunker:    ch,
		embedder:   embedder,
		store:      vs,
		textIndex:  ti,
		collection: collection,
		progress:   progress,
		logger:     logger,
	}
}

// Run ingests every supported document under docsDir, skipping paths that
// match the exclude globs. Document failures are collected in the report;
// only context cancellation and an unreadable directory abort the run.
func (j *Job) Run(ctx context.Context, docsDir string, exclude []string) (*Report, error) {
	report := &Report{
		JobID:   uuid.NewString(),
		Started: time.Now(),
	}

	paths, err := document.List(docsDir, exclude)
	if err != nil {
		return nil, fmt.Errorf("list documents in %s: %w", docsDir, err)
	}
	report.Documents = len(paths)

	if j.progress != nil {
		j.progress.Start(len(paths))
		defer j.progress.Finish()
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunks, err := j.ingestOne(ctx, docsDir, path)
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, Failure{Path: path, Err: err})
			j.logf("failed to ingest %s: %v", path, err)
		} else {
			report.Succeeded++
			report.Chunks += chunks
		}
		if j.progress != nil {
			j.progress.Increment()
		}
	}

	report.Elapsed = time.Since(report.Started)
	j.logf("ingestion job %s: %d/%d document(s), %d chunk(s), %d failure(s) in %s",
		report.JobID, report.Succeeded, report.Documents, report.Chunks, report.Failed, report.Elapsed)
	return report, nil
}

// ingestOne processes a single document. The replace runs in one store
// transaction, so a failure leaves the document's previous entries intact
// and a success leaves exactly the new ones: chunks a prior ingestion
// produced beyond the current chunk count are removed.
func (j *Job) ingestOne(ctx context.Context, docsDir, path string) (int, error) {
	doc, err := document.Extract(path)
	if err != nil {
		return 0, err
	}

	oldIDs, err := j.store.IDsByDoc(ctx, j.collection, doc.ID)
	if err != nil {
		return 0, err
	}

	chunks := j.chunker.Split(doc.Text)

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	var vectors [][]float32
	if len(chunks) > 0 {
		vectors, err = j.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed %d chunk(s): %w", len(chunks), err)
		}
	}

	source := sourceLabel(docsDir, path)
	entries := make([]store.Entry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = store.Entry{
			ID:          fmt.Sprintf("%s:%d", doc.ID, chunk.Index),
			Vector:      vectors[i],
			DocID:       doc.ID,
			Source:      source,
			ChunkIndex:  chunk.Index,
			StartOffset: chunk.Start,
			EndOffset:   chunk.End,
			Content:     chunk.Text,
		}
	}

	if err := j.store.ReplaceDoc(ctx, j.collection, doc.ID, entries); err != nil {
		return 0, err
	}

	if j.textIndex != nil {
		if err := j.reindexText(entries, oldIDs, path); err != nil {
			return 0, err
		}
	}

	return len(chunks), nil
}

// reindexText mirrors a document's replacement into the keyword index:
// new chunks are indexed, IDs from a prior ingestion that no longer exist
// are deleted.
func (j *Job) reindexText(entries []store.Entry, oldIDs []string, path string) error {
	docs := make(map[string]textindex.Doc, len(entries))
	for _, entry := range entries {
		docs[entry.ID] = textindex.Doc{
			Content:    entry.Content,
			DocID:      entry.DocID,
			ChunkIndex: entry.ChunkIndex,
		}
	}

	var stale []string
	for _, id := range oldIDs {
		if _, ok := docs[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := j.textIndex.DeleteBatch(stale); err != nil {
			return fmt.Errorf("remove stale chunks for %s: %w", path, err)
		}
	}

	if len(docs) == 0 {
		return nil
	}
	if err := j.textIndex.IndexBatch(docs); err != nil {
		return fmt.Errorf("index chunks for %s: %w", path, err)
	}
	return nil
}

// sourceLabel is the human-readable citation for a document.
func sourceLabel(docsDir, path string) string {
	if rel, err := filepath.Rel(docsDir, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.Base(path)
}

func (j *Job) logf(format string, args ...interface{}) {
	if j.logger != nil {
		j.logger.Printf(format, args...)
	}
}
