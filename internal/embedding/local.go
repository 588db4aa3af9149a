package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const localDimensions = 128

// LocalEngine is a deterministic, dependency-free embedder. It hashes word
// unigrams and bigrams into a fixed-size vector and L2-normalizes it, so
// texts sharing vocabulary land near each other. Used for tests and offline
// runs; not a substitute for a real model.
type LocalEngine struct{}

var _ Engine = (*LocalEngine)(nil)

// NewLocalEngine creates a deterministic local embedder.
func NewLocalEngine() *LocalEngine {
	return &LocalEngine{}
}

// Embed returns a normalized hashed bag-of-words vector.
func (e *LocalEngine) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, localDimensions)
	tokens := tokenize(text)
	for i, tok := range tokens {
		addToken(vec, tok, 1.0)
		if i+1 < len(tokens) {
			addToken(vec, tok+" "+tokens[i+1], 0.5)
		}
	}
	normalize(vec)
	return vec, nil
}

// EmbedBatch embeds each text independently.
func (e *LocalEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}

// Dimensions returns the fixed local vector size.
func (e *LocalEngine) Dimensions() int { return localDimensions }

// Name identifies the engine for logging.
func (e *LocalEngine) Name() string { return "local" }

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func addToken(vec []float32, tok string, weight float32) {
	h := fnv.New32a()
	h.Write([]byte(tok))
	sum := h.Sum32()
	idx := int(sum % localDimensions)
	// Sign from a high bit keeps the vector from collapsing to all-positive.
	if sum&0x80000000 != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
