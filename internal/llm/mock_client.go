package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockClient is a mock implementation of Client for testing and offline runs.
// Responses can be scripted with Enqueue or computed by RespondFn; otherwise a
// canned response derived from the request is returned.
type MockClient struct {
	// RespondFn, when set, produces the response content for a request.
	RespondFn func(req *ChatCompletionRequest) string

	mu       sync.Mutex
	queued   []*ChatCompletionResponse
	requests []*ChatCompletionRequest
}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

var _ Client = (*MockClient)(nil)

// Enqueue schedules a raw response to be returned, in FIFO order, before any
// RespondFn or canned output.
func (m *MockClient) Enqueue(resp *ChatCompletionResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued = append(m.queued, resp)
}

// EnqueueContent schedules a plain text assistant reply.
func (m *MockClient) EnqueueContent(content string) {
	m.Enqueue(&ChatCompletionResponse{
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Choices: []Choice{{
			Message:      &ChatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
	})
}

// Requests returns a copy of every request seen so far.
func (m *MockClient) Requests() []*ChatCompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ChatCompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// CreateChatCompletion returns the next queued response, or a generated one.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	if len(m.queued) > 0 {
		resp := m.queued[0]
		m.queued = m.queued[1:]
		m.mu.Unlock()
		return resp, nil
	}
	m.mu.Unlock()

	content := m.generateMockResponse(req)
	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{{
			Index: 0,
			Message: &ChatMessage{
				Role:    "assistant",
				Content: content,
			},
			FinishReason: "stop",
		}},
		Usage: &Usage{
			PromptTokens:     m.estimateTokens(req),
			CompletionTokens: len(content) / 4,
			TotalTokens:      m.estimateTokens(req) + len(content)/4,
		},
	}, nil
}

// generateMockResponse generates a canned reply based on the request.
func (m *MockClient) generateMockResponse(req *ChatCompletionRequest) string {
	if m.RespondFn != nil {
		return m.RespondFn(req)
	}

	if len(req.Tools) > 0 {
		return fmt.Sprintf("[MOCK] I would call tool '%s' to help with this request.", req.Tools[0].Function.Name)
	}

	var lastUserMessage string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUserMessage = req.Messages[i].Content
			break
		}
	}

	if lastUserMessage == "" {
		return "[MOCK] This is a mock response from the LLM client."
	}

	return fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(lastUserMessage, 100))
}

// estimateTokens provides a rough token count estimate.
func (m *MockClient) estimateTokens(req *ChatCompletionRequest) int {
	total := 0
	for _, msg := range req.Messages {
		total += len(msg.Content) / 4
	}
	return total
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// SystemPromptContains reports whether a request's system message mentions the
// given substring. Handy in RespondFn implementations.
func SystemPromptContains(req *ChatCompletionRequest, sub string) bool {
	for _, msg := range req.Messages {
		if msg.Role == "system" && strings.Contains(msg.Content, sub) {
			return true
		}
	}
	return false
}
