package composer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devmate/internal/domain"
	"devmate/internal/llm"
	"devmate/internal/nl2sql"
	"devmate/internal/tools"
)

type failingClient struct{}

func (failingClient) CreateChatCompletion(context.Context, *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	return nil, errors.New("llm down")
}

func TestComposeSQLEvidence(t *testing.T) {
	mock := llm.NewMockClient()
	mock.EnqueueContent("You have 3 open tickets.")

	c := New(mock, "test-model", 4)
	answer, fallback, err := c.Compose(context.Background(), domain.RouteStructuredQuery, "how many open tickets?", nil, Evidence{
		SQL: &nl2sql.Result{
			Query: "SELECT COUNT(*) FROM tickets WHERE LOWER(status) = 'open' AND assigned_to = :user_id",
			Data:  &domain.SQLResult{Columns: []string{"COUNT(*)"}, Rows: [][]string{{"3"}}},
		},
	})
	require.NoError(t, err)
	assert.False(t, fallback)
	assert.Equal(t, "You have 3 open tickets.", answer)

	// The prompt carried the rows as evidence.
	req := mock.Requests()[0]
	prompt := req.Messages[len(req.Messages)-1].Content
	assert.Contains(t, prompt, `"COUNT(*)":"3"`)
	assert.Contains(t, prompt, "### Question")
}

func TestComposeChunkEvidenceCarriesProvenance(t *testing.T) {
	mock := llm.NewMockClient()
	mock.EnqueueContent("Deploy with the runbook.")

	c := New(mock, "test-model", 4)
	_, _, err := c.Compose(context.Background(), domain.RouteKnowledgeRetrieval, "how do I deploy?", nil, Evidence{
		Chunks: []domain.RetrievedChunk{
			{ChunkID: "doc_1", Source: domain.SourceDocument, Score: 0.91, Title: "Deploy runbook", Text: "Run make deploy."},
		},
	})
	require.NoError(t, err)

	prompt := mock.Requests()[0].Messages[1].Content
	assert.Contains(t, prompt, "[1] Deploy runbook (document, score 0.91)")
	assert.Contains(t, prompt, "Run make deploy.")
}

func TestComposeEmptyEvidenceInstructsNoData(t *testing.T) {
	mock := llm.NewMockClient()
	mock.EnqueueContent("I couldn't find anything about that in the team docs.")

	c := New(mock, "test-model", 4)
	answer, fallback, err := c.Compose(context.Background(), domain.RouteKnowledgeRetrieval, "obscure question", nil, Evidence{})
	require.NoError(t, err)
	assert.False(t, fallback)
	assert.NotEmpty(t, answer)

	prompt := mock.Requests()[0].Messages[1].Content
	assert.Contains(t, prompt, "no matching data was found")
}

func TestComposeToolClarificationPassesThrough(t *testing.T) {
	mock := llm.NewMockClient()

	c := New(mock, "test-model", 4)
	answer, fallback, err := c.Compose(context.Background(), domain.RouteToolAction, "summarize the PR", nil, Evidence{
		Tool: &tools.Result{Tool: "pr_summary", Output: "Which pull request do you mean?", NeedsClarification: true},
	})
	require.NoError(t, err)
	assert.False(t, fallback)
	assert.Equal(t, "Which pull request do you mean?", answer)
	// No generation round-trip for a clarification.
	assert.Empty(t, mock.Requests())
}

func TestComposeGenerationFailureFallsBack(t *testing.T) {
	c := New(failingClient{}, "test-model", 4)
	answer, fallback, err := c.Compose(context.Background(), domain.RouteConversational, "hello", nil, Evidence{})
	require.NoError(t, err)
	assert.True(t, fallback)
	assert.Equal(t, FallbackAnswer, answer)
}

func TestComposeUnknownRouteIsError(t *testing.T) {
	c := New(llm.NewMockClient(), "test-model", 4)
	_, _, err := c.Compose(context.Background(), domain.Route("bogus"), "q", nil, Evidence{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestComposeHistoryWindowBounded(t *testing.T) {
	mock := llm.NewMockClient()
	mock.EnqueueContent("hi again")

	history := make([]domain.Message, 10)
	for i := range history {
		history[i] = domain.Message{Role: domain.RoleUser, Content: "old"}
	}

	c := New(mock, "test-model", 4)
	_, _, err := c.Compose(context.Background(), domain.RouteConversational, "hello", history, Evidence{})
	require.NoError(t, err)

	// system + 4 history + question
	assert.Len(t, mock.Requests()[0].Messages, 6)
}
