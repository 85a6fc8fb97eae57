package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/amit6537/agent-warren/internal/embedding"
)

// ErrCollectionNotFound is returned when a query targets a collection that
// does not exist or holds no entries.
var ErrCollectionNotFound = errors.New("collection not found")

// ErrDimensionMismatch is returned when a vector's length disagrees with
// the collection's established dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Entry is one persisted (vector, chunk metadata, document reference)
// tuple. Entries are keyed by ID within a collection.
type Entry struct {
	ID          string
	Vector      []float32
	DocID       string
	Source      string
	ChunkIndex  int
	StartOffset int
	EndOffset   int
	Content     string
}

// ScoredEntry is a query result with its cosine similarity score.
type ScoredEntry struct {
	Entry Entry
	Score float32
}

// VectorStore provides durable storage and similarity search over index
// entries, partitioned by named collection.
//
// Reads may run concurrently; writes to the same collection are serialized
// by a per-collection mutex so concurrent ingestion cannot lose updates.
// Search is an exact brute-force scan: O(n·d) per query, which is the right
// tradeoff for document sets in the thousands of chunks; an approximate
// index would trade recall for latency this workload does not need.
type VectorStore struct {
	db *DB

	mu        sync.Mutex
	collLocks map[string]*sync.Mutex
}

// NewVectorStore creates a new vector store
func NewVectorStore(db *DB) *VectorStore {
	return &VectorStore{
		db:        db,
		collLocks: make(map[string]*sync.Mutex),
	}
}

// collectionLock returns the write lock for a collection.
func (v *VectorStore) collectionLock(collection string) *sync.Mutex {
	v.mu.Lock()
	defer v.mu.Unlock()

	lock, ok := v.collLocks[collection]
	if !ok {
		lock = &sync.Mutex{}
		v.collLocks[collection] = lock
	}
	return lock
}

// Upsert inserts or replaces entries by ID in a single transaction. The
// collection's dimension is established by the first write; any vector
// disagreeing with it fails the whole batch with ErrDimensionMismatch.
// Re-upserting identical entries yields identical stored state.
func (v *VectorStore) Upsert(ctx context.Context, collection string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	lock := v.collectionLock(collection)
	lock.Lock()
	defer lock.Unlock()

	tx, err := v.db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := v.insertEntries(ctx, tx, collection, entries); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

// ReplaceDoc replaces a document's entries in a single transaction:
// entries whose IDs are no longer produced by the document are deleted,
// the rest are upserted. Surviving IDs keep their seq, so re-ingesting an
// unchanged document leaves query ordering untouched. An empty entries
// slice removes the document entirely.
func (v *VectorStore) ReplaceDoc(ctx context.Context, collection, docID string, entries []Entry) error {
	lock := v.collectionLock(collection)
	lock.Lock()
	defer lock.Unlock()

	tx, err := v.db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := "DELETE FROM entries WHERE collection = ? AND doc_id = ?"
	args := make([]interface{}, 0, len(entries)+2)
	args = append(args, collection, docID)
	if len(entries) > 0 {
		query += " AND id NOT IN (?" + repeatPlaceholder(len(entries)-1) + ")"
		for _, entry := range entries {
			args = append(args, entry.ID)
		}
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete stale entries for document %s: %w", docID, err)
	}

	if len(entries) > 0 {
		if err := v.insertEntries(ctx, tx, collection, entries); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

// insertEntries upserts entries inside an open transaction.
func (v *VectorStore) insertEntries(ctx context.Context, tx *sql.Tx, collection string, entries []Entry) error {
	now := time.Now().UTC().Format(time.RFC3339)

	dimension, err := v.ensureCollection(ctx, tx, collection, entries[0].Vector, now)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if len(entry.Vector) != dimension {
			return fmt.Errorf("%w: entry %s has dimension %d, collection %s expects %d",
				ErrDimensionMismatch, entry.ID, len(entry.Vector), collection, dimension)
		}
	}

	var nextSeq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM entries WHERE collection = ?", collection,
	).Scan(&nextSeq); err != nil {
		return fmt.Errorf("failed to determine next sequence: %w", err)
	}

	// seq is assigned on first insert and kept on replace, so re-upserts
	// preserve insertion order for tie-breaking.
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (collection, id, seq, vector, dimension, doc_id, source, chunk_index, start_offset, end_offset, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			doc_id = excluded.doc_id,
			source = excluded.source,
			chunk_index = excluded.chunk_index,
			start_offset = excluded.start_offset,
			end_offset = excluded.end_offset,
			content = excluded.content
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		blob := vectorToBlob(entry.Vector)
		if _, err := stmt.ExecContext(ctx,
			collection, entry.ID, nextSeq, blob, dimension,
			entry.DocID, entry.Source, entry.ChunkIndex, entry.StartOffset, entry.EndOffset, entry.Content, now,
		); err != nil {
			return fmt.Errorf("failed to upsert entry %s: %w", entry.ID, err)
		}
		nextSeq++
	}

	return nil
}

// ensureCollection returns the collection's established dimension, creating
// the collection from the first vector if it does not exist yet.
func (v *VectorStore) ensureCollection(ctx context.Context, tx *sql.Tx, collection string, first []float32, now string) (int, error) {
	var dimension int
	err := tx.QueryRowContext(ctx,
		"SELECT dimension FROM collections WHERE name = ?", collection,
	).Scan(&dimension)

	if err == sql.ErrNoRows {
		if len(first) == 0 {
			return 0, fmt.Errorf("%w: cannot establish collection %s from an empty vector", ErrDimensionMismatch, collection)
		}
		dimension = len(first)
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO collections (name, dimension, created_at) VALUES (?, ?, ?)",
			collection, dimension, now,
		); err != nil {
			return 0, fmt.Errorf("failed to create collection %s: %w", collection, err)
		}
		return dimension, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up collection %s: %w", collection, err)
	}
	return dimension, nil
}

// Query returns the k entries with highest cosine similarity to the given
// vector, descending by score, ties broken by insertion order (earlier
// wins). Fails with ErrCollectionNotFound when the collection holds no
// entries and ErrDimensionMismatch when the query vector's length disagrees
// with the collection's dimension.
func (v *VectorStore) Query(ctx context.Context, collection string, vector []float32, k int) ([]ScoredEntry, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	var dimension int
	err := v.db.sqlDB.QueryRowContext(ctx,
		"SELECT dimension FROM collections WHERE name = ?", collection,
	).Scan(&dimension)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up collection %s: %w", collection, err)
	}

	if len(vector) != dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, collection %s expects %d",
			ErrDimensionMismatch, len(vector), collection, dimension)
	}

	rows, err := v.db.sqlDB.QueryContext(ctx, `
		SELECT id, vector, doc_id, source, chunk_index, start_offset, end_offset, content
		FROM entries
		WHERE collection = ?
		ORDER BY seq ASC
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var results []ScoredEntry
	for rows.Next() {
		var entry Entry
		var blob []byte
		if err := rows.Scan(&entry.ID, &blob, &entry.DocID, &entry.Source, &entry.ChunkIndex,
			&entry.StartOffset, &entry.EndOffset, &entry.Content); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		stored, err := blobToVector(blob)
		if err != nil {
			continue // skip malformed vectors
		}
		entry.Vector = stored

		results = append(results, ScoredEntry{
			Entry: entry,
			Score: embedding.Similarity(vector, stored),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s has no entries", ErrCollectionNotFound, collection)
	}

	// Rows arrive in insertion order; a stable sort keeps that order for
	// equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}

// Get retrieves a single entry by ID. Returns (nil, nil) when absent.
func (v *VectorStore) Get(ctx context.Context, collection, id string) (*Entry, error) {
	var entry Entry
	var blob []byte

	err := v.db.sqlDB.QueryRowContext(ctx, `
		SELECT id, vector, doc_id, source, chunk_index, start_offset, end_offset, content
		FROM entries
		WHERE collection = ? AND id = ?
	`, collection, id).Scan(&entry.ID, &blob, &entry.DocID, &entry.Source, &entry.ChunkIndex,
		&entry.StartOffset, &entry.EndOffset, &entry.Content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry %s: %w", id, err)
	}

	vector, err := blobToVector(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode vector for entry %s: %w", id, err)
	}
	entry.Vector = vector

	return &entry, nil
}

// Delete removes entries by ID. Unknown IDs are a no-op.
func (v *VectorStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	lock := v.collectionLock(collection)
	lock.Lock()
	defer lock.Unlock()

	query := "DELETE FROM entries WHERE collection = ? AND id IN (?" +
		repeatPlaceholder(len(ids)-1) + ")"

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := v.db.sqlDB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}

	return nil
}

// IDsByDoc returns the IDs of all entries derived from a document, in
// insertion order. An unknown document yields an empty slice.
func (v *VectorStore) IDsByDoc(ctx context.Context, collection, docID string) ([]string, error) {
	rows, err := v.db.sqlDB.QueryContext(ctx,
		"SELECT id FROM entries WHERE collection = ? AND doc_id = ? ORDER BY seq ASC",
		collection, docID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries for document %s: %w", docID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return ids, nil
}

// Count returns the number of entries in a collection.
func (v *VectorStore) Count(ctx context.Context, collection string) (int, error) {
	var count int
	err := v.db.sqlDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entries WHERE collection = ?", collection,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

func repeatPlaceholder(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += ", ?"
	}
	return s
}

// vectorToBlob converts a float32 slice to a little-endian binary blob
func vectorToBlob(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:i*4+4], math.Float32bits(v))
	}
	return blob
}

// blobToVector converts a binary blob back to a float32 slice
func blobToVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob size %d is not a multiple of 4", len(blob))
	}

	vector := make([]float32, len(blob)/4)
	for i := 0; i < len(vector); i++ {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : i*4+4]))
	}

	return vector, nil
}
