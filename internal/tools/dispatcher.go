package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	langtools "github.com/tmc/langchaingo/tools"

	"devmate/internal/domain"
	"devmate/internal/llm"
	"devmate/internal/store"
)

const (
	retryBackoff = 500 * time.Millisecond
)

var (
	uuidPattern   = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)
	hashIDPattern = regexp.MustCompile(`#(\w+)`)
)

// Result is the outcome of a tool dispatch.
type Result struct {
	Tool   string
	Output string
	// NeedsClarification marks an output that asks the user for a missing
	// identifier instead of answering.
	NeedsClarification bool
}

// Dispatcher selects and runs one tool per turn.
type Dispatcher struct {
	store  store.Store
	client llm.Client
	model  string
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(st store.Store, client llm.Client, model string) *Dispatcher {
	return &Dispatcher{store: st, client: client, model: model}
}

// registry builds the per-user tool set.
func (d *Dispatcher) registry(userID string) map[string]langtools.Tool {
	return map[string]langtools.Tool{
		"ticket_lookup":   newTicketLookupTool(d.store, userID),
		"pr_diff":         newPRDiffTool(d.store, userID),
		"pr_summary":      newPRSummaryTool(d.store, d.client, d.model, userID),
		"learning_search": newLearningSearchTool(d.store),
	}
}

// toolDefinitions are the function schemas offered to the model.
func toolDefinitions() []llm.Tool {
	objectSchema := func(props map[string]interface{}, required []string) map[string]interface{} {
		s := map[string]interface{}{"type": "object", "properties": props}
		if len(required) > 0 {
			s["required"] = required
		}
		return s
	}
	return []llm.Tool{
		{Type: "function", Function: llm.ToolFunction{
			Name:        "ticket_lookup",
			Description: "Look up the user's tickets by status or keyword.",
			Parameters: objectSchema(map[string]interface{}{
				"status":  map[string]interface{}{"type": "string", "enum": []string{"Open", "In Progress", "Done"}},
				"keyword": map[string]interface{}{"type": "string"},
			}, nil),
		}},
		{Type: "function", Function: llm.ToolFunction{
			Name:        "pr_diff",
			Description: "Fetch the code diffs for a pull request by id.",
			Parameters: objectSchema(map[string]interface{}{
				"pr_id": map[string]interface{}{"type": "string"},
			}, []string{"pr_id"}),
		}},
		{Type: "function", Function: llm.ToolFunction{
			Name:        "pr_summary",
			Description: "Summarize the changes in a pull request by id.",
			Parameters: objectSchema(map[string]interface{}{
				"pr_id": map[string]interface{}{"type": "string"},
			}, []string{"pr_id"}),
		}},
		{Type: "function", Function: llm.ToolFunction{
			Name:        "learning_search",
			Description: "Search the shared learning resources library.",
			Parameters: objectSchema(map[string]interface{}{
				"query": map[string]interface{}{"type": "string"},
			}, []string{"query"}),
		}},
	}
}

// Dispatch picks a tool for the query and runs it. Selection prefers a model
// tool call; if the model errs or declines, keyword heuristics pick. Tools
// needing an identifier that cannot be found in the utterance or recent
// context return a clarification instead of failing.
func (d *Dispatcher) Dispatch(ctx context.Context, query, userID string, history []domain.Message) (*Result, error) {
	name, input := d.selectTool(ctx, query)

	if needsIdentifier(name) {
		id := extractIdentifier(input)
		if id == "" && input != "" && !strings.Contains(input, "{") {
			// The model handed back a bare id with no decoration.
			id = strings.TrimSpace(input)
		}
		if id == "" {
			id = extractIdentifier(query)
		}
		if id == "" {
			id = identifierFromHistory(history)
		}
		if id == "" {
			return &Result{
				Tool:               name,
				Output:             "Which pull request do you mean? Please give me its id (for example #123 or the full id).",
				NeedsClarification: true,
			}, nil
		}
		input = id
	}

	tool, ok := d.registry(userID)[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q: %w", name, domain.ErrValidation)
	}

	output, err := d.callWithRetry(ctx, tool, input)
	if err != nil {
		return nil, err
	}
	return &Result{Tool: name, Output: output}, nil
}

// selectTool asks the model to pick; on error or no tool call, falls back to
// keyword heuristics.
func (d *Dispatcher) selectTool(ctx context.Context, query string) (name, input string) {
	resp, err := d.client.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model: d.model,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: "Select the single best tool for the user's request and call it."},
			{Role: "user", Content: query},
		},
		Tools:      toolDefinitions(),
		ToolChoice: "auto",
	})
	if err == nil {
		if calls := resp.FirstToolCalls(); len(calls) > 0 {
			return calls[0].Function.Name, toolInput(calls[0].Function.Name, calls[0].Function.Arguments)
		}
	} else {
		slog.Warn("tool selection LLM call failed, using heuristics", "err", err)
	}
	return heuristicTool(query), ""
}

// toolInput shapes function-call arguments into the string input langchaingo
// tools take. Tools whose input is a bare id or query get single-value
// objects collapsed to the value; ticket_lookup keeps its JSON intact so the
// status/keyword keys survive.
func toolInput(name, arguments string) string {
	if !bareInputTool(name) {
		return strings.TrimSpace(arguments)
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(arguments), &m); err != nil {
		return strings.TrimSpace(arguments)
	}
	if len(m) == 1 {
		for _, v := range m {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return arguments
}

// bareInputTool reports whether the tool takes a single id or query string
// rather than a JSON object.
func bareInputTool(name string) bool {
	return name == "pr_diff" || name == "pr_summary" || name == "learning_search"
}

func heuristicTool(query string) string {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "summar"):
		return "pr_summary"
	case strings.Contains(q, "diff") || strings.Contains(q, "changes"):
		return "pr_diff"
	case strings.Contains(q, "learn") || strings.Contains(q, "course") || strings.Contains(q, "resource"):
		return "learning_search"
	default:
		return "ticket_lookup"
	}
}

func needsIdentifier(tool string) bool {
	return tool == "pr_diff" || tool == "pr_summary"
}

// extractIdentifier finds a uuid-shaped or #-prefixed token in text.
func extractIdentifier(text string) string {
	if m := uuidPattern.FindString(text); m != "" {
		return m
	}
	if m := hashIDPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// identifierFromHistory scans recent messages newest-first for an identifier.
func identifierFromHistory(history []domain.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if id := extractIdentifier(history[i].Content); id != "" {
			return id
		}
	}
	return ""
}

// callWithRetry runs the tool, retrying once after a backoff when the call
// times out.
func (d *Dispatcher) callWithRetry(ctx context.Context, tool langtools.Tool, input string) (string, error) {
	output, err := tool.Call(ctx, input)
	if err == nil {
		return output, nil
	}
	if !isTimeout(err) {
		return "", fmt.Errorf("tool %s: %w", tool.Name(), err)
	}

	slog.Warn("tool call timed out, retrying once", "tool", tool.Name())
	select {
	case <-time.After(retryBackoff):
	case <-ctx.Done():
		return "", fmt.Errorf("tool %s: %w", tool.Name(), domain.ErrUpstreamTimeout)
	}

	output, err = tool.Call(ctx, input)
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("tool %s: %w", tool.Name(), domain.ErrUpstreamTimeout)
		}
		return "", fmt.Errorf("tool %s: %w", tool.Name(), err)
	}
	return output, nil
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrUpstreamTimeout)
}
