// Package retriever performs semantic search over indexed documents and
// learning resources and packs the hits into a bounded evidence set.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"devmate/internal/domain"
	"devmate/internal/vectorindex"
)

const (
	// minSimilarity drops hits too weak to be useful evidence.
	minSimilarity float32 = 0.25
	// scoreEpsilon is the band within which two scores count as tied.
	scoreEpsilon float32 = 1e-6
)

// Retriever searches both chunk sources and packs results into a rune budget.
type Retriever struct {
	index  *vectorindex.Index
	topK   int
	budget int
}

// New creates a retriever. budget is in runes of chunk text.
func New(index *vectorindex.Index, topK, budget int) *Retriever {
	return &Retriever{index: index, topK: topK, budget: budget}
}

// Retrieve searches document and learning collections concurrently, merges by
// descending score, and greedily packs chunks into the budget. A chunk that
// would overflow the remaining budget is skipped whole, never truncated.
// Score ties are broken by newer updated_at, then chunk ID.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]domain.RetrievedChunk, error) {
	var docHits, learnHits []domain.RetrievedChunk

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docHits, err = r.index.Search(gctx, domain.SourceDocument, query, r.topK)
		return err
	})
	g.Go(func() error {
		var err error
		learnHits, err = r.index.Search(gctx, domain.SourceLearning, query, r.topK)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("retriever: search: %w", err)
	}

	merged := make([]domain.RetrievedChunk, 0, len(docHits)+len(learnHits))
	for _, c := range append(docHits, learnHits...) {
		if c.Score >= minSimilarity {
			merged = append(merged, c)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		diff := a.Score - b.Score
		if diff > scoreEpsilon {
			return true
		}
		if diff < -scoreEpsilon {
			return false
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ChunkID < b.ChunkID
	})

	var packed []domain.RetrievedChunk
	remaining := r.budget
	for _, c := range merged {
		size := utf8.RuneCountInString(c.Text)
		if size > remaining {
			continue
		}
		packed = append(packed, c)
		remaining -= size
	}

	slog.Info("retrieval complete",
		"hits", len(merged), "packed", len(packed), "budget_left", remaining)
	return packed, nil
}
