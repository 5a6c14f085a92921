package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/agentvault/agentvault/internal/errors"
	"github.com/agentvault/agentvault/internal/index"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open("", index.NewSynchronizer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsert_CreateThenUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	outcome, err := s.Upsert(ctx, "chatgpt", "a.json", "First chat", "", "the quick brown fox")
	require.NoError(t, err)
	assert.Equal(t, Created, outcome)

	first, err := s.Get(ctx, "chatgpt", "a.json")
	require.NoError(t, err)

	// Identical content: pure no-op, ingested_at untouched.
	outcome, err = s.Upsert(ctx, "chatgpt", "a.json", "First chat", "", "the quick brown fox")
	require.NoError(t, err)
	assert.Equal(t, Unchanged, outcome)

	second, err := s.Get(ctx, "chatgpt", "a.json")
	require.NoError(t, err)
	assert.Equal(t, first.IngestedAt, second.IngestedAt)
	assert.Equal(t, first.ContentHash, second.ContentHash)
}

func TestUpsert_ChangedContentUpdatesInPlace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "chatgpt", "a.json", "Chat", "", "old words here")
	require.NoError(t, err)
	before, err := s.Get(ctx, "chatgpt", "a.json")
	require.NoError(t, err)

	outcome, err := s.Upsert(ctx, "chatgpt", "a.json", "Chat", "", "new words now")
	require.NoError(t, err)
	assert.Equal(t, Updated, outcome)

	after, err := s.Get(ctx, "chatgpt", "a.json")
	require.NoError(t, err)

	// Surrogate key survives, hash and content move.
	assert.Equal(t, before.ID, after.ID)
	assert.NotEqual(t, before.ContentHash, after.ContentHash)
	assert.Equal(t, "new words now", after.Content)
	assert.Equal(t, HashContent("new words now"), after.ContentHash)
}

func TestUpsert_UpdateReplacesPostings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "chatgpt", "a.json", "", "", "obsolete terminology")
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "chatgpt", "a.json", "", "", "fresh vocabulary")
	require.NoError(t, err)

	assert.Equal(t, 0, countPostings(t, s, "obsolete"))
	assert.Equal(t, 1, countPostings(t, s, "fresh"))
}

func TestUpsert_TitleIsIndexed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "perplexity", "note.md", "Quarterly Review", "", "body text")
	require.NoError(t, err)

	assert.Equal(t, 1, countPostings(t, s, "quarterly"))
	assert.Equal(t, 1, countPostings(t, s, "body"))
}

func TestUpsert_DistinctPathsSameContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "chatgpt", "a.json", "", "", "identical body")
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "chatgpt", "b.json", "", "", "identical body")
	require.NoError(t, err)

	a, err := s.Get(ctx, "chatgpt", "a.json")
	require.NoError(t, err)
	b, err := s.Get(ctx, "chatgpt", "b.json")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.ContentHash, b.ContentHash)
	assert.Equal(t, 2, countPostings(t, s, "identical"))
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "chatgpt", "missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet_OptionalCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "chatgpt", "a.json", "", "2024-05-01T10:00:00Z", "dated")
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "chatgpt", "b.json", "", "", "undated")
	require.NoError(t, err)

	a, err := s.Get(ctx, "chatgpt", "a.json")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T10:00:00Z", a.CreatedAt)

	b, err := s.Get(ctx, "chatgpt", "b.json")
	require.NoError(t, err)
	assert.Equal(t, "", b.CreatedAt)
}

func TestGet_CorruptTimestampReportsStoreCorrupt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "chatgpt", "a.json", "", "", "fine for now")
	require.NoError(t, err)

	_, err = s.DB().Exec(`UPDATE docs SET ingested_at = 'garbage' WHERE source = 'chatgpt' AND path = 'a.json'`)
	require.NoError(t, err)

	_, err = s.Get(ctx, "chatgpt", "a.json")
	require.Error(t, err)
	assert.Equal(t, verrors.ErrCodeStoreCorrupt, verrors.GetCode(err))
}

func TestDelete_RemovesDocumentAndPostings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "chatgpt", "a.json", "", "", "ephemeral content")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "chatgpt", "a.json"))

	_, err = s.Get(ctx, "chatgpt", "a.json")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, countPostings(t, s, "ephemeral"))

	var lengths int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM doc_lengths`).Scan(&lengths))
	assert.Equal(t, 0, lengths)
}

func TestDelete_NotFound(t *testing.T) {
	s := newTestStore(t)
	assert.ErrorIs(t, s.Delete(context.Background(), "chatgpt", "missing.json"), ErrNotFound)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "chatgpt", "a.json", "", "", "one two three")
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "chatgpt", "b.json", "", "", "four five")
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, st.DocumentCount)
	assert.Equal(t, 5, st.TermCount)
	assert.Equal(t, 5, st.TotalTokens)
	assert.InDelta(t, 2.5, st.AvgDocLength, 1e-9)
}

func TestHashContent_Deterministic(t *testing.T) {
	assert.Equal(t, HashContent("fox"), HashContent("fox"))
	assert.NotEqual(t, HashContent("fox"), HashContent("fox "))
	assert.Len(t, HashContent(""), 64)
}

func TestOpen_RequiresSynchronizer(t *testing.T) {
	_, err := Open("", nil)
	assert.Error(t, err)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := t.TempDir() + "/agentvault.db"

	s, err := Open(path, index.NewSynchronizer())
	require.NoError(t, err)
	_, err = s.Upsert(context.Background(), "chatgpt", "a.json", "", "", "durable words")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(path, index.NewSynchronizer())
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	doc, err := s2.Get(context.Background(), "chatgpt", "a.json")
	require.NoError(t, err)
	assert.Equal(t, "durable words", doc.Content)
	assert.Equal(t, 1, countPostings(t, s2, "durable"))
}

func countPostings(t *testing.T, s *SQLiteStore, term string) int {
	t.Helper()
	var n int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM postings WHERE term = ?`, term).Scan(&n))
	return n
}
