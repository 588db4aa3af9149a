// Package tools implements the user-scoped artifact tools and their
// dispatcher.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/tools"

	"devmate/internal/llm"
	"devmate/internal/store"
)

// ─────────────────────────────────────────────────────────────────────────────
// ticket_lookup
// ─────────────────────────────────────────────────────────────────────────────

type ticketLookupTool struct {
	store  store.Store
	userID string
}

func newTicketLookupTool(st store.Store, userID string) tools.Tool {
	return &ticketLookupTool{store: st, userID: userID}
}

func (t *ticketLookupTool) Name() string { return "ticket_lookup" }
func (t *ticketLookupTool) Description() string {
	return "Look up the user's tickets. Input should be JSON string with optional keys `status` (Open|In Progress|Done) and `keyword` (string)."
}
func (t *ticketLookupTool) Call(ctx context.Context, input string) (string, error) {
	slog.Info("[TOOL CALL]", "tool", t.Name(), "input", input)
	var payload struct {
		Status  string `json:"status"`
		Keyword string `json:"keyword"`
	}
	if input != "" {
		if err := json.Unmarshal([]byte(input), &payload); err != nil {
			// Bare keyword input is common; treat it as the keyword.
			payload.Keyword = strings.TrimSpace(input)
		}
	}

	tickets, err := t.store.TicketsByUser(ctx, t.userID, payload.Status, payload.Keyword)
	if err != nil {
		return "", err
	}
	if len(tickets) == 0 {
		return "No matching tickets found.", nil
	}

	var sb strings.Builder
	for i, tk := range tickets {
		fmt.Fprintf(&sb, "[%d] %s: %s (%s", i+1, tk.ID, tk.Title, tk.Status)
		if tk.ProjectName != "" {
			fmt.Fprintf(&sb, ", project %s", tk.ProjectName)
		}
		sb.WriteString(")\n")
	}
	return sb.String(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// pr_diff
// ─────────────────────────────────────────────────────────────────────────────

type prDiffTool struct {
	store  store.Store
	userID string
}

func newPRDiffTool(st store.Store, userID string) tools.Tool {
	return &prDiffTool{store: st, userID: userID}
}

func (t *prDiffTool) Name() string { return "pr_diff" }
func (t *prDiffTool) Description() string {
	return "Fetch the code diffs for a pull request. Input should be the pull request id."
}
func (t *prDiffTool) Call(ctx context.Context, input string) (string, error) {
	slog.Info("[TOOL CALL]", "tool", t.Name(), "input", input)
	prID := strings.TrimSpace(input)
	if prID == "" {
		return "Error: a pull request id is required.", nil
	}

	diffs, err := t.store.DiffsForPR(ctx, prID, t.userID)
	if err != nil {
		return "", err
	}
	if len(diffs) == 0 {
		return "No diffs found for that pull request.", nil
	}
	return strings.Join(diffs, "\n\n"), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// pr_summary
// ─────────────────────────────────────────────────────────────────────────────

type prSummaryTool struct {
	store  store.Store
	client llm.Client
	model  string
	userID string
}

func newPRSummaryTool(st store.Store, client llm.Client, model, userID string) tools.Tool {
	return &prSummaryTool{store: st, client: client, model: model, userID: userID}
}

func (t *prSummaryTool) Name() string { return "pr_summary" }
func (t *prSummaryTool) Description() string {
	return "Summarize the changes in a pull request. Input should be the pull request id."
}
func (t *prSummaryTool) Call(ctx context.Context, input string) (string, error) {
	slog.Info("[TOOL CALL]", "tool", t.Name(), "input", input)
	prID := strings.TrimSpace(input)
	if prID == "" {
		return "Error: a pull request id is required.", nil
	}

	diffs, err := t.store.DiffsForPR(ctx, prID, t.userID)
	if err != nil {
		return "", err
	}
	if len(diffs) == 0 {
		return "No diffs found for that pull request.", nil
	}

	// All-or-nothing: a failed summarization fails the tool, it never
	// returns a partial result.
	resp, err := t.client.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model: t.model,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: "You are a senior engineer. Summarize the following git diff in a few sentences: what changed, where, and why it matters. Do not invent changes that are not in the diff."},
			{Role: "user", Content: strings.Join(diffs, "\n\n")},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize diff: %w", err)
	}
	summary := strings.TrimSpace(resp.FirstContent())
	if summary == "" {
		return "", fmt.Errorf("summarize diff: empty model output")
	}
	return summary, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// learning_search
// ─────────────────────────────────────────────────────────────────────────────

type learningSearchTool struct {
	store store.Store
}

func newLearningSearchTool(st store.Store) tools.Tool {
	return &learningSearchTool{store: st}
}

func (t *learningSearchTool) Name() string { return "learning_search" }
func (t *learningSearchTool) Description() string {
	return "Search the shared learning resources library. Input should be a search query."
}
func (t *learningSearchTool) Call(ctx context.Context, input string) (string, error) {
	slog.Info("[TOOL CALL]", "tool", t.Name(), "input", input)
	query := strings.TrimSpace(input)
	if query == "" {
		return "Error: a search query is required.", nil
	}

	learnings, err := t.store.SearchLearnings(ctx, query)
	if err != nil {
		return "", err
	}
	if len(learnings) == 0 {
		return "No learning resources found for that query.", nil
	}

	var sb strings.Builder
	for i, l := range learnings {
		fmt.Fprintf(&sb, "[%d] %s", i+1, l.Title)
		if l.URL != "" {
			fmt.Fprintf(&sb, " (%s)", l.URL)
		}
		if l.Summary != "" {
			fmt.Fprintf(&sb, "\n%s", l.Summary)
		}
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String()), nil
}
