package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEngineDeterministic(t *testing.T) {
	e := NewLocalEngine()
	ctx := context.Background()

	a, err := e.Embed(ctx, "fix the login bug")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "fix the login bug")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, e.Dimensions())
}

func TestLocalEngineSimilarTextsCloser(t *testing.T) {
	e := NewLocalEngine()
	ctx := context.Background()

	query, err := e.Embed(ctx, "deploy the payment service")
	require.NoError(t, err)
	near, err := e.Embed(ctx, "how to deploy payment service to staging")
	require.NoError(t, err)
	far, err := e.Embed(ctx, "quarterly sales report spreadsheet")
	require.NoError(t, err)

	assert.Greater(t, cosine(query, near), cosine(query, far))
}

func TestLocalEngineNormalized(t *testing.T) {
	e := NewLocalEngine()
	vec, err := e.Embed(context.Background(), "some text here")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestOpenAIEngineBatchOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Return data out of order to exercise index-based placement.
		resp := embeddingResponse{}
		resp.Data = append(resp.Data, struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}{Index: 1, Embedding: []float32{0, 1}})
		resp.Data = append(resp.Data, struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}{Index: 0, Embedding: []float32{1, 0}})
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	e := NewOpenAIEngine(server.URL, "key", "test-model", 5*time.Second)
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vecs[0])
	assert.Equal(t, []float32{0, 1}, vecs[1])
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
