package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "warren.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func entry(id, docID string, chunkIndex int, vector []float32, content string) Entry {
	return Entry{
		ID:         id,
		Vector:     vector,
		DocID:      docID,
		Source:     docID + ".pdf",
		ChunkIndex: chunkIndex,
		Content:    content,
	}
}

func TestUpsertThenQuerySelfMatch(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(openTestDB(t))

	target := []float32{0.1, 0.9, 0.2}
	require.NoError(t, vs.Upsert(ctx, "reports", []Entry{
		entry("doc:0", "doc", 0, []float32{0.9, 0.1, 0.1}, "other text"),
		entry("doc:1", "doc", 1, target, "record operating earnings"),
	}))

	results, err := vs.Query(ctx, "reports", target, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "doc:1", results[0].Entry.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	assert.Equal(t, "record operating earnings", results[0].Entry.Content)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestUpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(openTestDB(t))

	entries := []Entry{
		entry("a:0", "a", 0, []float32{1, 0}, "first"),
		entry("a:1", "a", 1, []float32{0, 1}, "second"),
	}

	require.NoError(t, vs.Upsert(ctx, "reports", entries))
	before, err := vs.Query(ctx, "reports", []float32{1, 0}, 10)
	require.NoError(t, err)

	require.NoError(t, vs.Upsert(ctx, "reports", entries))

	count, err := vs.Count(ctx, "reports")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	after, err := vs.Query(ctx, "reports", []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReplaceDocRemovesStaleEntries(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(openTestDB(t))

	require.NoError(t, vs.Upsert(ctx, "reports", []Entry{
		entry("a:0", "a", 0, []float32{1, 0}, "one"),
		entry("a:1", "a", 1, []float32{0, 1}, "two"),
		entry("a:2", "a", 2, []float32{1, 1}, "three"),
		entry("b:0", "b", 0, []float32{0.5, 0.5}, "other document"),
	}))

	// The document shrank from three chunks to two.
	require.NoError(t, vs.ReplaceDoc(ctx, "reports", "a", []Entry{
		entry("a:0", "a", 0, []float32{1, 0}, "one rewritten"),
		entry("a:1", "a", 1, []float32{0, 1}, "two rewritten"),
	}))

	count, err := vs.Count(ctx, "reports")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	gone, err := vs.Get(ctx, "reports", "a:2")
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := vs.Get(ctx, "reports", "a:0")
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Equal(t, "one rewritten", kept.Content)

	// Entries of other documents are untouched.
	other, err := vs.Get(ctx, "reports", "b:0")
	require.NoError(t, err)
	require.NotNil(t, other)
	assert.Equal(t, "other document", other.Content)
}

func TestReplaceDocKeepsSurvivorOrder(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(openTestDB(t))

	same := []float32{0.5, 0.5}
	require.NoError(t, vs.Upsert(ctx, "reports", []Entry{entry("a:0", "a", 0, same, "first inserted")}))
	require.NoError(t, vs.Upsert(ctx, "reports", []Entry{entry("b:0", "b", 0, same, "second inserted")}))

	// Re-replacing the first document must not reassign its position.
	require.NoError(t, vs.ReplaceDoc(ctx, "reports", "a", []Entry{entry("a:0", "a", 0, same, "first inserted")}))

	results, err := vs.Query(ctx, "reports", same, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a:0", results[0].Entry.ID)
	assert.Equal(t, "b:0", results[1].Entry.ID)
}

func TestReplaceDocEmptyRemovesDocument(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(openTestDB(t))

	require.NoError(t, vs.Upsert(ctx, "reports", []Entry{
		entry("a:0", "a", 0, []float32{1, 0}, "one"),
		entry("b:0", "b", 0, []float32{0, 1}, "keep"),
	}))

	require.NoError(t, vs.ReplaceDoc(ctx, "reports", "a", nil))

	ids, err := vs.IDsByDoc(ctx, "reports", "a")
	require.NoError(t, err)
	assert.Empty(t, ids)

	count, err := vs.Count(ctx, "reports")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIDsByDoc(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(openTestDB(t))

	require.NoError(t, vs.Upsert(ctx, "reports", []Entry{
		entry("a:0", "a", 0, []float32{1, 0}, "one"),
		entry("a:1", "a", 1, []float32{0, 1}, "two"),
		entry("b:0", "b", 0, []float32{1, 1}, "other"),
	}))

	ids, err := vs.IDsByDoc(ctx, "reports", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a:0", "a:1"}, ids)

	none, err := vs.IDsByDoc(ctx, "reports", "unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestQueryCollectionNotFound(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(openTestDB(t))

	_, err := vs.Query(ctx, "nonexistent", []float32{1, 0}, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCollectionNotFound))

	// A collection whose entries were all deleted also reports not found.
	require.NoError(t, vs.Upsert(ctx, "emptied", []Entry{entry("a:0", "a", 0, []float32{1, 0}, "x")}))
	require.NoError(t, vs.Delete(ctx, "emptied", []string{"a:0"}))

	_, err = vs.Query(ctx, "emptied", []float32{1, 0}, 5)
	assert.True(t, errors.Is(err, ErrCollectionNotFound))
}

func TestQueryFewerEntriesThanK(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(openTestDB(t))

	require.NoError(t, vs.Upsert(ctx, "reports", []Entry{
		entry("a:0", "a", 0, []float32{1, 0}, "only"),
		entry("a:1", "a", 1, []float32{0, 1}, "two"),
	}))

	results, err := vs.Query(ctx, "reports", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestUpsertDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(openTestDB(t))

	require.NoError(t, vs.Upsert(ctx, "reports", []Entry{entry("a:0", "a", 0, []float32{1, 0, 0}, "x")}))

	// Wrong-dimension vector must fail the whole batch, not truncate.
	err := vs.Upsert(ctx, "reports", []Entry{
		entry("b:0", "b", 0, []float32{1, 0, 0}, "ok"),
		entry("b:1", "b", 1, []float32{1, 0}, "short"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	// The failed batch must leave no partial entries.
	count, err := vs.Count(ctx, "reports")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestQueryDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(openTestDB(t))

	require.NoError(t, vs.Upsert(ctx, "reports", []Entry{entry("a:0", "a", 0, []float32{1, 0, 0}, "x")}))

	_, err := vs.Query(ctx, "reports", []float32{1, 0}, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestQueryTieBreakInsertionOrder(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(openTestDB(t))

	same := []float32{0.5, 0.5}
	require.NoError(t, vs.Upsert(ctx, "reports", []Entry{entry("first", "a", 0, same, "first inserted")}))
	require.NoError(t, vs.Upsert(ctx, "reports", []Entry{entry("second", "b", 0, same, "second inserted")}))

	results, err := vs.Query(ctx, "reports", same, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, results[0].Score, results[1].Score)
	assert.Equal(t, "first", results[0].Entry.ID)
	assert.Equal(t, "second", results[1].Entry.ID)
}

func TestDeleteUnknownIDsNoOp(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(openTestDB(t))

	require.NoError(t, vs.Upsert(ctx, "reports", []Entry{entry("a:0", "a", 0, []float32{1, 0}, "x")}))
	require.NoError(t, vs.Delete(ctx, "reports", []string{"a:0", "unknown", "also-unknown"}))

	count, err := vs.Count(ctx, "reports")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(openTestDB(t))

	want := entry("a:3", "a", 3, []float32{0.25, 0.75}, "snippet text")
	want.StartOffset = 10
	want.EndOffset = 22
	require.NoError(t, vs.Upsert(ctx, "reports", []Entry{want}))

	got, err := vs.Get(ctx, "reports", "a:3")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	missing, err := vs.Get(ctx, "reports", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpsertConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(openTestDB(t))

	done := make(chan error, 4)
	for w := 0; w < 4; w++ {
		go func(w int) {
			entries := make([]Entry, 10)
			for i := range entries {
				entries[i] = entry(
					string(rune('a'+w))+":"+string(rune('0'+i)),
					string(rune('a'+w)), i, []float32{float32(w), float32(i)}, "c")
			}
			done <- vs.Upsert(ctx, "reports", entries)
		}(w)
	}
	for w := 0; w < 4; w++ {
		require.NoError(t, <-done)
	}

	count, err := vs.Count(ctx, "reports")
	require.NoError(t, err)
	assert.Equal(t, 40, count)
}

func TestBlobRoundTrip(t *testing.T) {
	vec := []float32{0.1, -2.5, 3.75, 0}
	decoded, err := blobToVector(vectorToBlob(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, decoded)

	_, err = blobToVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
