package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"devmate/internal/domain"
	"devmate/internal/llm"
)

type failingClient struct{}

func (failingClient) CreateChatCompletion(context.Context, *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	return nil, errors.New("connection refused")
}

func TestClassifyModelLabel(t *testing.T) {
	mock := llm.NewMockClient()
	mock.EnqueueContent("structured_query")

	c := New(mock, "test-model", 4)
	decision := c.Classify(context.Background(), "how many open tickets do I have?", nil)

	assert.Equal(t, domain.RouteStructuredQuery, decision.Route)
	assert.False(t, decision.Heuristic)
}

func TestClassifyTrimsDecoration(t *testing.T) {
	mock := llm.NewMockClient()
	mock.EnqueueContent(`  "Tool_Action".  `)

	c := New(mock, "test-model", 4)
	decision := c.Classify(context.Background(), "summarize PR 42", nil)

	assert.Equal(t, domain.RouteToolAction, decision.Route)
}

func TestClassifyUnknownLabelFallsBackConversational(t *testing.T) {
	mock := llm.NewMockClient()
	mock.EnqueueContent("database_query")

	c := New(mock, "test-model", 4)
	decision := c.Classify(context.Background(), "how many tickets?", nil)

	// Malformed output means conversational, not a retry.
	assert.Equal(t, domain.RouteConversational, decision.Route)
	assert.Len(t, mock.Requests(), 1)
}

func TestClassifyHistoryWindow(t *testing.T) {
	mock := llm.NewMockClient()
	mock.EnqueueContent("conversational")

	history := []domain.Message{
		{Role: domain.RoleUser, Content: "m1"},
		{Role: domain.RoleAssistant, Content: "m2"},
		{Role: domain.RoleUser, Content: "m3"},
		{Role: domain.RoleAssistant, Content: "m4"},
		{Role: domain.RoleUser, Content: "m5"},
		{Role: domain.RoleAssistant, Content: "m6"},
	}

	c := New(mock, "test-model", 4)
	c.Classify(context.Background(), "thanks!", history)

	req := mock.Requests()[0]
	// system + 4 history + query
	assert.Len(t, req.Messages, 6)
	assert.Equal(t, "m3", req.Messages[1].Content)
	assert.Equal(t, "m6", req.Messages[4].Content)
}

func TestHeuristicFallbackOnError(t *testing.T) {
	c := New(failingClient{}, "test-model", 4)

	cases := []struct {
		query string
		want  domain.Route
	}{
		{"how many open tickets are assigned to me?", domain.RouteStructuredQuery},
		{"how do I set up the local environment?", domain.RouteKnowledgeRetrieval},
		{"summarize the diff for PR 42", domain.RouteToolAction},
		{"good morning!", domain.RouteConversational},
	}
	for _, tc := range cases {
		decision := c.Classify(context.Background(), tc.query, nil)
		assert.Equal(t, tc.want, decision.Route, "query: %s", tc.query)
		assert.True(t, decision.Heuristic)
	}
}
