// Package vectorindex wraps chromem-go for semantic retrieval over document
// and learning chunks.
package vectorindex

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"devmate/internal/domain"
)

// Metadata keys stored alongside each chunk.
const (
	metaTitle     = "title"
	metaUpdatedAt = "updated_at"
)

// Index wraps chromem-go with one collection per chunk source and disk
// persistence.
type Index struct {
	mu      sync.RWMutex
	db      *chromem.DB
	embedFn chromem.EmbeddingFunc
}

// Chunk is a unit of indexable text.
type Chunk struct {
	ID        string
	Source    domain.ChunkSource
	Text      string
	Title     string
	UpdatedAt time.Time
}

// NewPersistent creates (or opens) the persistent index at dataDir/vectorindex/.
func NewPersistent(dataDir string, embedFn chromem.EmbeddingFunc) (*Index, error) {
	dir := filepath.Join(dataDir, "vectorindex")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create vectorindex dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open vectorindex: %w", err)
	}
	return &Index{db: db, embedFn: embedFn}, nil
}

// NewInMemory creates a non-persistent index, used in tests.
func NewInMemory(embedFn chromem.EmbeddingFunc) *Index {
	return &Index{db: chromem.NewDB(), embedFn: embedFn}
}

func collectionName(source domain.ChunkSource) string {
	return fmt.Sprintf("%s_chunks", source)
}

// getOrCreateCollection returns (or creates) the per-source collection.
func (ix *Index) getOrCreateCollection(source domain.ChunkSource) *chromem.Collection {
	name := collectionName(source)
	col := ix.db.GetCollection(name, ix.embedFn)
	if col == nil {
		var err error
		col, err = ix.db.CreateCollection(name, nil, ix.embedFn)
		if err != nil {
			slog.Error("failed to create vector collection", "source", source, "err", err)
			return nil
		}
	}
	return col
}

// Upsert indexes (or re-indexes) a chunk.
func (ix *Index) Upsert(ctx context.Context, chunk Chunk) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	col := ix.getOrCreateCollection(chunk.Source)
	if col == nil {
		return fmt.Errorf("vectorindex: nil collection for source %s", chunk.Source)
	}

	doc := chromem.Document{
		ID:      chunk.ID,
		Content: chunk.Text,
		Metadata: map[string]string{
			metaTitle:     chunk.Title,
			metaUpdatedAt: chunk.UpdatedAt.UTC().Format(time.RFC3339),
		},
	}
	return col.AddDocument(ctx, doc)
}

// Search returns the top-k chunks from one source most similar to the query.
func (ix *Index) Search(ctx context.Context, source domain.ChunkSource, query string, k int) ([]domain.RetrievedChunk, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	col := ix.getOrCreateCollection(source)
	if col == nil {
		return nil, nil
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	var results []chromem.Result
	var err error

	// chromem-go sometimes throws "nResults must be <= number of documents"
	// despite Count checks. Step down k if it fails.
	for attemptK := k; attemptK > 0; attemptK-- {
		results, err = col.Query(ctx, query, attemptK, nil, nil)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.RetrievedChunk, 0, len(results))
	for _, r := range results {
		chunk := domain.RetrievedChunk{
			ChunkID: r.ID,
			Source:  source,
			Score:   r.Similarity,
			Text:    r.Content,
			Title:   r.Metadata[metaTitle],
		}
		if ts, err := time.Parse(time.RFC3339, r.Metadata[metaUpdatedAt]); err == nil {
			chunk.UpdatedAt = ts
		}
		out = append(out, chunk)
	}
	return out, nil
}
