// Package recommend suggests follow-up messages for a session.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"devmate/internal/domain"
	"devmate/internal/llm"
	"devmate/internal/store"
)

// DefaultNumMessages is how many recent messages feed the suggester.
const DefaultNumMessages = 5

// shortHistoryThreshold is the message count below which deterministic
// contextual suggestions are used instead of an LLM round-trip.
const shortHistoryThreshold = 4

const systemPrompt = "You are an expert at analyzing conversation patterns and suggesting the next message a user might want to send. " +
	"Based on the provided chat messages, suggest 2-3 specific follow-up questions or messages " +
	"that the user can click to auto-fill as their next message. " +
	"Make the suggestions conversational, natural, and directly related to continuing the conversation. " +
	"Write them as if the user is asking the question directly. " +
	"Format your response as a JSON array of strings."

// Engine generates 2-3 follow-up suggestions from recent session history.
type Engine struct {
	store  store.Store
	client llm.Client
	model  string
}

// New creates a recommendation engine.
func New(st store.Store, client llm.Client, model string) *Engine {
	return &Engine{store: st, client: client, model: model}
}

// Suggest returns follow-up suggestions for the session. An empty history
// yields an empty slice and no error; any non-empty history yields exactly
// 2-3 clean suggestion strings, whatever the model returns.
func (e *Engine) Suggest(ctx context.Context, sessionID string, numMessages int) ([]string, error) {
	if numMessages <= 0 {
		numMessages = DefaultNumMessages
	}

	messages, err := e.store.RecentMessages(ctx, sessionID, numMessages)
	if err != nil {
		return nil, fmt.Errorf("recommend: load messages: %w", err)
	}
	if len(messages) == 0 {
		return []string{}, nil
	}

	if len(messages) < shortHistoryThreshold {
		return contextualSuggestions(messages), nil
	}

	var transcript strings.Builder
	for _, msg := range messages {
		role := "User"
		if msg.Role == domain.RoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&transcript, "- %s: %s\n", role, msg.Content)
	}

	userPrompt := fmt.Sprintf(`Based on the following recent chat messages, suggest 2-3 follow-up messages the user might want to send next.
Write them as direct questions or statements the user can click to auto-fill.

Recent Messages:
%s
Please respond with a JSON array of 2-3 message suggestions that the user can click to send.`, transcript.String())

	temp := 0.3
	resp, err := e.client.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model:       e.model,
		Messages:    []llm.ChatMessage{{Role: "system", Content: systemPrompt}, {Role: "user", Content: userPrompt}},
		Temperature: &temp,
	})
	if err != nil {
		slog.Warn("recommendation generation failed, using fallback pool", "err", err)
		return fallbackPool[:3:3], nil
	}

	return normalize(resp.FirstContent()), nil
}

// contextualSuggestions picks a deterministic bucket for very short
// histories, keyed off the most recent user message.
func contextualSuggestions(messages []domain.Message) []string {
	var userMessage string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			userMessage = messages[i].Content
			break
		}
	}
	if userMessage == "" {
		return []string{
			"Can you tell me more about that?",
			"Do you have any examples I can look at?",
			"What are some alternatives to this approach?",
		}
	}

	lower := strings.ToLower(strings.TrimSpace(userMessage))

	// Match greetings on the leading token, not substrings: "hi" hides
	// inside "this".
	greetings := []string{"hi", "hello", "hey", "greetings", "good morning", "good afternoon", "good evening", "howdy", "what's up", "whats up", "sup"}
	firstWord := lower
	if fields := strings.Fields(lower); len(fields) > 0 {
		firstWord = strings.Trim(fields[0], "!,.?")
	}
	for _, g := range greetings {
		if firstWord == g || strings.HasPrefix(lower, g) {
			return greetingBucket
		}
	}
	if len(strings.TrimSpace(userMessage)) <= 10 {
		return greetingBucket
	}

	buckets := []struct {
		keywords    []string
		suggestions []string
	}{
		{[]string{"bug", "error", "issue", "problem", "debug", "fix", "broken"}, []string{
			"What debugging strategies would you recommend?",
			"How can I add better logging to troubleshoot this?",
			"What are the most common causes of this type of error?",
		}},
		{[]string{"code", "implement", "build", "create", "develop", "write", "program"}, []string{
			"What's the best way to structure this code?",
			"How should I write tests for this functionality?",
			"Are there any better approaches to implement this?",
		}},
		{[]string{"learn", "tutorial", "how to", "guide", "teach", "explain"}, []string{
			"Can you recommend some good learning resources for this?",
			"Where can I find tutorials or examples?",
			"What related topics should I learn next?",
		}},
		{[]string{"test", "testing", "unit test", "integration"}, []string{
			"What testing framework would you recommend?",
			"How do I write effective test cases for this?",
			"What's the best way to set up automated testing?",
		}},
		{[]string{"deploy", "deployment", "production", "server", "hosting"}, []string{
			"What's the best deployment strategy for this project?",
			"How should I configure the server for production?",
			"Can you help me set up a CI/CD pipeline?",
		}},
	}
	for _, b := range buckets {
		for _, kw := range b.keywords {
			if strings.Contains(lower, kw) {
				return b.suggestions
			}
		}
	}

	return []string{
		"Can you explain this in more detail?",
		"What would be the next steps for this?",
		"Are there any tools or best practices I should know about?",
	}
}

var greetingBucket = []string{
	"What project are you working on?",
	"I need help with debugging an issue.",
	"Can you recommend some learning resources?",
}
