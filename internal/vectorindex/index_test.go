package vectorindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devmate/internal/domain"
	"devmate/internal/embedding"
)

func newTestIndex() *Index {
	return NewInMemory(embedding.Func(embedding.NewLocalEngine()))
}

func TestSearchEmptyIndex(t *testing.T) {
	ix := newTestIndex()
	results, err := ix.Search(context.Background(), domain.SourceDocument, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestUpsertAndSearch(t *testing.T) {
	ix := newTestIndex()
	ctx := context.Background()

	chunks := []Chunk{
		{ID: "doc_1", Source: domain.SourceDocument, Text: "how to deploy the payment service to staging", Title: "Deploy guide", UpdatedAt: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)},
		{ID: "doc_2", Source: domain.SourceDocument, Text: "onboarding checklist for new hires", Title: "Onboarding", UpdatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range chunks {
		require.NoError(t, ix.Upsert(ctx, c))
	}

	results, err := ix.Search(ctx, domain.SourceDocument, "deploy payment service", 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "doc_1", results[0].ChunkID)
	assert.Equal(t, domain.SourceDocument, results[0].Source)
	assert.Equal(t, "Deploy guide", results[0].Title)
	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), results[0].UpdatedAt)
	assert.Greater(t, results[0].Score, float32(0))
}

func TestSourcesAreIsolated(t *testing.T) {
	ix := newTestIndex()
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, Chunk{ID: "lrn_1", Source: domain.SourceLearning, Text: "goroutine leak debugging tips"}))

	results, err := ix.Search(ctx, domain.SourceDocument, "goroutine leak", 3)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = ix.Search(ctx, domain.SourceLearning, "goroutine leak", 3)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestKClampedToCount(t *testing.T) {
	ix := newTestIndex()
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, Chunk{ID: "doc_1", Source: domain.SourceDocument, Text: "one lonely chunk"}))

	results, err := ix.Search(ctx, domain.SourceDocument, "chunk", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
