// Package embedding turns text into vectors for the semantic retriever.
package embedding

import (
	"context"

	"github.com/philippgille/chromem-go"
)

// Engine produces embedding vectors for text.
type Engine interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embedding vectors for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of vectors this engine produces.
	Dimensions() int

	// Name identifies the engine for logging.
	Name() string
}

// Func adapts an Engine to the chromem-go embedding function signature.
func Func(e Engine) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return e.Embed(ctx, text)
	}
}
