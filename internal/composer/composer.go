// Package composer assembles the final assistant answer from the route's
// evidence.
package composer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"devmate/internal/domain"
	"devmate/internal/llm"
	"devmate/internal/nl2sql"
	"devmate/internal/tools"
)

// FallbackAnswer is persisted whenever generation itself fails. The turn
// still ends with a stored assistant message.
const FallbackAnswer = "Sorry, I ran into a problem answering that. Please try again in a moment."

// NoDataAnswer instructs the model how to handle empty evidence.
const noDataInstruction = "The evidence section is empty: no matching data was found. Say so explicitly and briefly; do not invent an answer."

// Evidence carries whatever the routed component produced for the turn.
type Evidence struct {
	SQL    *nl2sql.Result
	Chunks []domain.RetrievedChunk
	Tool   *tools.Result
}

// Composer turns route evidence into a grounded natural-language answer.
type Composer struct {
	client        llm.Client
	model         string
	historyWindow int
	now           func() time.Time
}

// New creates a composer.
func New(client llm.Client, model string, historyWindow int) *Composer {
	return &Composer{client: client, model: model, historyWindow: historyWindow, now: time.Now}
}

// Compose generates the answer for a routed turn. usedFallback reports that
// generation failed and the deterministic apology was substituted; the
// answer is always non-empty. An unknown route is a programming error.
func (c *Composer) Compose(ctx context.Context, route domain.Route, query string, history []domain.Message, ev Evidence) (answer string, usedFallback bool, err error) {
	// A clarification from the tool dispatcher is already the answer.
	if route == domain.RouteToolAction && ev.Tool != nil && ev.Tool.NeedsClarification {
		return ev.Tool.Output, false, nil
	}

	block, err := evidenceBlock(route, ev)
	if err != nil {
		return "", false, err
	}

	messages := []llm.ChatMessage{{Role: "system", Content: c.systemPrompt()}}
	window := history
	if len(window) > c.historyWindow {
		window = window[len(window)-c.historyWindow:]
	}
	for _, msg := range window {
		messages = append(messages, llm.ChatMessage{Role: string(msg.Role), Content: msg.Content})
	}

	var user strings.Builder
	if block != "" {
		user.WriteString("### Evidence\n")
		user.WriteString(block)
		user.WriteString("\n\n")
	} else if route != domain.RouteConversational {
		user.WriteString(noDataInstruction)
		user.WriteString("\n\n")
	}
	user.WriteString("### Question\n")
	user.WriteString(query)
	messages = append(messages, llm.ChatMessage{Role: "user", Content: user.String()})

	resp, llmErr := c.client.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if llmErr != nil {
		slog.Error("composition failed", "route", route, "err", llmErr)
		return FallbackAnswer, true, nil
	}

	text := strings.TrimSpace(resp.FirstContent())
	if text == "" {
		slog.Error("composition returned empty output", "route", route)
		return FallbackAnswer, true, nil
	}
	return text, false, nil
}

func (c *Composer) systemPrompt() string {
	return fmt.Sprintf(`You are Devmate, a developer-productivity assistant. Today's date is %s.

Answer the user's question using ONLY the evidence provided, when there is any.
Never invent tickets, pull requests, documents, or numbers that are not in the evidence.
If the evidence does not answer the question, say what is missing.
Be concise and direct.`, c.now().Format("2006-01-02"))
}

// evidenceBlock renders the route's evidence. The switch over routes is
// exhaustive; an unknown route means a caller bug.
func evidenceBlock(route domain.Route, ev Evidence) (string, error) {
	switch route {
	case domain.RouteStructuredQuery:
		if ev.SQL == nil || ev.SQL.Data == nil || len(ev.SQL.Data.Rows) == 0 {
			return "", nil
		}
		return sqlBlock(ev.SQL), nil

	case domain.RouteKnowledgeRetrieval:
		if len(ev.Chunks) == 0 {
			return "", nil
		}
		return chunkBlock(ev.Chunks), nil

	case domain.RouteToolAction:
		if ev.Tool == nil || ev.Tool.Output == "" {
			return "", nil
		}
		return fmt.Sprintf("Tool %s output:\n%s", ev.Tool.Tool, ev.Tool.Output), nil

	case domain.RouteConversational:
		return "", nil

	default:
		return "", fmt.Errorf("compose: unknown route %q: %w", route, domain.ErrValidation)
	}
}

// sqlBlock renders query rows as JSON objects keyed by column name.
func sqlBlock(res *nl2sql.Result) string {
	rows := make([]map[string]string, 0, len(res.Data.Rows))
	for _, row := range res.Data.Rows {
		obj := make(map[string]string, len(res.Data.Columns))
		for i, col := range res.Data.Columns {
			if i < len(row) {
				obj[col] = row[i]
			}
		}
		rows = append(rows, obj)
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("Query: %s\nRows (%d):\n%s", res.Query, len(rows), string(data))
}

// chunkBlock renders retrieved chunks with provenance headers.
func chunkBlock(chunks []domain.RetrievedChunk) string {
	var sb strings.Builder
	for i, c := range chunks {
		title := c.Title
		if title == "" {
			title = c.ChunkID
		}
		fmt.Fprintf(&sb, "[%d] %s (%s, score %.2f)\n%s\n\n", i+1, title, c.Source, c.Score, c.Text)
	}
	return strings.TrimSpace(sb.String())
}
