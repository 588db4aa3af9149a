package retriever

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devmate/internal/domain"
	"devmate/internal/embedding"
	"devmate/internal/vectorindex"
)

func newTestIndex() *vectorindex.Index {
	return vectorindex.NewInMemory(embedding.Func(embedding.NewLocalEngine()))
}

func TestRetrieveEmptyIndex(t *testing.T) {
	r := New(newTestIndex(), 8, 4000)
	chunks, err := r.Retrieve(context.Background(), "anything at all")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestRetrieveMergesBothSources(t *testing.T) {
	ix := newTestIndex()
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, vectorindex.Chunk{
		ID: "doc_1", Source: domain.SourceDocument,
		Text: "deployment runbook for the payment service", Title: "Runbook",
	}))
	require.NoError(t, ix.Upsert(ctx, vectorindex.Chunk{
		ID: "lrn_1", Source: domain.SourceLearning,
		Text: "payment service deployment retrospective notes", Title: "Retro",
	}))

	r := New(ix, 8, 4000)
	chunks, err := r.Retrieve(ctx, "payment service deployment")
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	sources := map[domain.ChunkSource]bool{}
	for _, c := range chunks {
		sources[c.Source] = true
	}
	assert.True(t, sources[domain.SourceDocument])
	assert.True(t, sources[domain.SourceLearning])

	// Sorted by descending score.
	assert.GreaterOrEqual(t, chunks[0].Score, chunks[1].Score)
}

func TestRetrieveDropsWeakHits(t *testing.T) {
	ix := newTestIndex()
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, vectorindex.Chunk{
		ID: "doc_1", Source: domain.SourceDocument,
		Text: "completely unrelated topic about cooking pasta recipes",
	}))

	r := New(ix, 8, 4000)
	chunks, err := r.Retrieve(ctx, "kubernetes ingress configuration yaml")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestBudgetPackingSkipsOverflow(t *testing.T) {
	ix := newTestIndex()
	ctx := context.Background()

	// Same text means identical scores; tie broken by updated_at then ID.
	big := strings.Repeat("deploy the service with care ", 10) // ~290 runes
	small := "deploy the service with care"

	require.NoError(t, ix.Upsert(ctx, vectorindex.Chunk{
		ID: "doc_big", Source: domain.SourceDocument, Text: big,
		UpdatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, ix.Upsert(ctx, vectorindex.Chunk{
		ID: "doc_small", Source: domain.SourceDocument, Text: small,
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	// Budget fits the small chunk only. The big one ranks first (newer) but
	// overflows, so it is skipped whole and the small one still gets packed.
	r := New(ix, 8, 100)
	chunks, err := r.Retrieve(ctx, "deploy the service with care")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "doc_small", chunks[0].ChunkID)
	assert.Equal(t, small, chunks[0].Text)
}

func TestTieBreakNewerFirst(t *testing.T) {
	ix := newTestIndex()
	ctx := context.Background()

	text := "identical chunk text for tie breaking"
	require.NoError(t, ix.Upsert(ctx, vectorindex.Chunk{
		ID: "doc_old", Source: domain.SourceDocument, Text: text,
		UpdatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, ix.Upsert(ctx, vectorindex.Chunk{
		ID: "doc_new", Source: domain.SourceDocument, Text: text,
		UpdatedAt: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}))

	r := New(ix, 8, 4000)
	chunks, err := r.Retrieve(ctx, "identical chunk text for tie breaking")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "doc_new", chunks[0].ChunkID)
	assert.Equal(t, "doc_old", chunks[1].ChunkID)
}
