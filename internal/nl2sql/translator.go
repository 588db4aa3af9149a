package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"devmate/internal/config"
	"devmate/internal/domain"
	"devmate/internal/llm"
	"devmate/internal/store"
)

// Result carries the executed query and its rows for the composer.
type Result struct {
	Query string
	Data  *domain.SQLResult
}

// Translator converts a question to SQL, guards it, and executes it.
type Translator struct {
	client     llm.Client
	model      string
	guard      *Guard
	store      store.Store
	prompt     string
	rowLimit   int
	sqlTimeout time.Duration
}

// NewTranslator creates a translator over the declared schema.
func NewTranslator(client llm.Client, model string, guard *Guard, st store.Store, schema *config.Schema, rowLimit int, sqlTimeout time.Duration) *Translator {
	return &Translator{
		client:     client,
		model:      model,
		guard:      guard,
		store:      st,
		prompt:     buildSystemPrompt(schema),
		rowLimit:   rowLimit,
		sqlTimeout: sqlTimeout,
	}
}

// Translate generates SQL for the question, admits it through the guard, and
// executes it scoped to userID. An execution failure earns exactly one
// corrective regeneration with the error fed back; a guard rejection is
// terminal with no regeneration and no execution.
func (t *Translator) Translate(ctx context.Context, question, userID string) (*Result, error) {
	sqlText, err := t.generate(ctx, question, "")
	if err != nil {
		return nil, err
	}

	res, execErr := t.guardAndRun(ctx, sqlText, userID)
	if execErr == nil {
		return &Result{Query: sqlText, Data: res}, nil
	}
	if errors.Is(execErr, domain.ErrValidation) {
		return nil, execErr
	}

	// One corrective round: hand the model its own statement and the error.
	slog.Warn("SQL execution failed, regenerating once", "err", execErr)
	regenText, err := t.generate(ctx, question, fmt.Sprintf("The previous query failed.\nQuery: %s\nError: %s\nGenerate a corrected query.", sqlText, execErr))
	if err != nil {
		return nil, execErr
	}

	res, retryErr := t.guardAndRun(ctx, regenText, userID)
	if retryErr != nil {
		return nil, fmt.Errorf("corrected query also failed: %w", retryErr)
	}
	return &Result{Query: regenText, Data: res}, nil
}

func (t *Translator) generate(ctx context.Context, question, correction string) (string, error) {
	messages := []llm.ChatMessage{
		{Role: "system", Content: t.prompt},
		{Role: "user", Content: question},
	}
	if correction != "" {
		messages = append(messages, llm.ChatMessage{Role: "user", Content: correction})
	}

	temp := 0.0
	resp, err := t.client.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model:       t.model,
		Messages:    messages,
		Temperature: &temp,
	})
	if err != nil {
		return "", fmt.Errorf("nl2sql: generate: %w", err)
	}

	sqlText := stripFences(resp.FirstContent())
	if sqlText == "" {
		return "", fmt.Errorf("nl2sql: model returned empty statement: %w", domain.ErrValidation)
	}
	slog.Info("generated SQL", "query", sqlText)
	return sqlText, nil
}

func (t *Translator) guardAndRun(ctx context.Context, sqlText, userID string) (*domain.SQLResult, error) {
	if err := t.guard.Check(ctx, sqlText); err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, t.sqlTimeout)
	defer cancel()

	res, err := t.store.QueryReadOnly(execCtx, sqlText, userID, t.rowLimit)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query execution: %w", domain.ErrUpstreamTimeout)
		}
		return nil, fmt.Errorf("query execution: %w", err)
	}
	return res, nil
}
