// Package classifier routes each user query to one of the four handling
// strategies.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"devmate/internal/domain"
	"devmate/internal/llm"
)

const systemPrompt = `You are a query router for a developer-productivity assistant.
Classify the user's latest message into exactly one of these categories:

- structured_query: the answer lives in the team's ticket/PR/project database (counts, statuses, lists of tickets, who is assigned what).
- knowledge_retrieval: the answer lives in team documents or learning resources (how-to questions, process questions, "where is X documented").
- tool_action: the user wants an action on a specific artifact (summarize a pull request, show a diff, look up a specific ticket or learning resource).
- conversational: greetings, chit-chat, opinions, or anything that needs no data.

Use the conversation history to resolve references like "it" or "that one".
Respond with ONLY the category label, nothing else.`

// Classifier decides which route handles a query.
type Classifier struct {
	client        llm.Client
	model         string
	historyWindow int
}

// New creates a classifier.
func New(client llm.Client, model string, historyWindow int) *Classifier {
	return &Classifier{client: client, model: model, historyWindow: historyWindow}
}

// Classify returns a route decision for the query. The LLM gets the last
// historyWindow messages for anaphora; a malformed label falls back to
// conversational without a retry, and an LLM error falls back to keyword
// heuristics. Classify never fails the turn.
func (c *Classifier) Classify(ctx context.Context, query string, history []domain.Message) domain.RouteDecision {
	messages := []llm.ChatMessage{{Role: "system", Content: systemPrompt}}

	window := history
	if len(window) > c.historyWindow {
		window = window[len(window)-c.historyWindow:]
	}
	for _, msg := range window {
		messages = append(messages, llm.ChatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	messages = append(messages, llm.ChatMessage{Role: "user", Content: query})

	temp := 0.0
	maxTokens := 10
	resp, err := c.client.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		slog.Warn("classifier LLM call failed, using heuristics", "err", err)
		return heuristicRoute(query)
	}

	label := strings.ToLower(strings.TrimSpace(resp.FirstContent()))
	label = strings.Trim(label, `"'.`)
	route, ok := domain.ParseRoute(label)
	if !ok {
		slog.Warn("classifier returned unknown label", "label", label)
		return domain.RouteDecision{
			Route:     domain.RouteConversational,
			Rationale: fmt.Sprintf("unrecognized label %q", label),
		}
	}

	return domain.RouteDecision{Route: route, Rationale: "model label"}
}

// Keyword buckets for the deterministic fallback. Order matters: structured
// data words win over doc words, doc words over tool words.
var (
	structuredWords = []string{"ticket", "tickets", "how many", "count", "assigned", "open", "in progress", "done", "status", "sprint", "backlog"}
	retrievalWords  = []string{"how do i", "how to", "what is", "where is", "documentation", "docs", "guide", "process", "policy", "onboarding", "learn"}
	toolWords       = []string{"summarize", "summary", "diff", "pull request", "pr ", "pr#", "show me the changes", "review"}
)

// heuristicRoute decides the route with keyword matching when the model is
// unavailable.
func heuristicRoute(query string) domain.RouteDecision {
	q := " " + strings.ToLower(query) + " "

	match := func(words []string) string {
		for _, w := range words {
			if strings.Contains(q, w) {
				return w
			}
		}
		return ""
	}

	// Tool words are checked first: "summarize PR 42" mentions nothing about
	// tickets but a diff summary clearly wants the tool path.
	if w := match(toolWords); w != "" {
		return domain.RouteDecision{Route: domain.RouteToolAction, Rationale: "keyword " + w, Heuristic: true}
	}
	if w := match(structuredWords); w != "" {
		return domain.RouteDecision{Route: domain.RouteStructuredQuery, Rationale: "keyword " + w, Heuristic: true}
	}
	if w := match(retrievalWords); w != "" {
		return domain.RouteDecision{Route: domain.RouteKnowledgeRetrieval, Rationale: "keyword " + w, Heuristic: true}
	}
	return domain.RouteDecision{Route: domain.RouteConversational, Rationale: "no keyword match", Heuristic: true}
}
