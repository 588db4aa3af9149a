package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"devmate/internal/composer"
	"devmate/internal/domain"
	"devmate/internal/llm"
)

// Deterministic answers for failed routes. The turn still persists one of
// these so no user message is ever left unanswered.
const (
	unsafeQueryAnswer = "I couldn't turn that into a safe data query. Could you rephrase the question?"
	noDataAnswer      = "I couldn't answer that from the team's data. The query ran into repeated errors."
	unavailableAnswer = "That service is temporarily unavailable. Please try again in a moment."
	turnTimeoutAnswer = "Sorry, that took too long to process. Please try again."
)

// ProcessTurn runs one full conversational turn. The user message is
// persisted before any generation; the turn always ends with a persisted
// assistant message unless persistence itself fails.
func (s *Service) ProcessTurn(ctx context.Context, req domain.TurnRequest) (*domain.TurnResponse, error) {
	query := strings.TrimSpace(req.Query)
	if req.UserID == "" || query == "" {
		return nil, fmt.Errorf("user_id and query are required: %w", domain.ErrValidation)
	}

	session, created, err := s.resolveSession(ctx, req.UserID, req.SessionID, query)
	if err != nil {
		return nil, err
	}

	if !s.locks.TryAcquire(session.SessionID) {
		return nil, fmt.Errorf("session %s: %w", session.SessionID, domain.ErrTurnInFlight)
	}
	defer s.locks.Release(session.SessionID)

	// History is captured before the new user message so the window feeds
	// classification and composition without echoing the query twice.
	history, err := s.store.RecentMessages(ctx, session.SessionID, s.historyWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	userMsg := &domain.Message{
		MessageID: newMessageID(),
		SessionID: session.SessionID,
		Role:      domain.RoleUser,
		Content:   query,
		CreatedAt: time.Now(),
	}
	if err := s.store.AppendMessage(ctx, userMsg); err != nil {
		// Fatal: without the durable user message the turn must not proceed.
		return nil, fmt.Errorf("persist user message: %w", err)
	}
	logStatus(session.SessionID, domain.TurnStatusReceived)

	if created {
		go s.autoTitle(session.SessionID, query)
	}

	turnCtx, cancel := context.WithTimeout(ctx, s.turnTimeout)
	defer cancel()

	answer, trace := s.runRoutedTurn(turnCtx, session.SessionID, query, req.UserID, history)

	// Persistence survives a blown turn deadline.
	persistCtx := context.WithoutCancel(ctx)
	assistantMsg := &domain.Message{
		MessageID:  newMessageID(),
		SessionID:  session.SessionID,
		Role:       domain.RoleAssistant,
		Content:    answer,
		RouteTrace: trace,
		CreatedAt:  time.Now(),
	}
	if err := s.store.AppendMessage(persistCtx, assistantMsg); err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}
	logStatus(session.SessionID, domain.TurnStatusPersisted)
	if err := s.store.TouchSession(persistCtx, session.SessionID); err != nil {
		slog.Warn("failed to touch session", "session", session.SessionID, "err", err)
	}
	logStatus(session.SessionID, domain.TurnStatusDone)

	return &domain.TurnResponse{
		SessionID: session.SessionID,
		Response:  answer,
		Route:     trace.Route,
	}, nil
}

// runRoutedTurn classifies, gathers evidence, and composes. It never fails:
// every error downstream of the durable user message becomes a deterministic
// answer with the fallback flag set in the trace.
func (s *Service) runRoutedTurn(ctx context.Context, sessionID, query, userID string, history []domain.Message) (string, *domain.RouteTrace) {
	decision := s.classifier.Classify(ctx, query, history)
	trace := &domain.RouteTrace{Route: decision.Route}
	if decision.Rationale != "" {
		trace.Evidence = append(trace.Evidence, "classifier: "+decision.Rationale)
	}
	logStatus(sessionID, domain.TurnStatusClassified)

	logStatus(sessionID, domain.TurnStatusRouting)
	ev, routeErr := s.gatherEvidence(ctx, decision.Route, query, userID, history, trace)
	if routeErr != nil {
		logStatus(sessionID, domain.TurnStatusError)
		trace.Fallback = true
		return answerForError(routeErr), trace
	}

	answer, usedFallback, err := s.composer.Compose(ctx, decision.Route, query, history, ev)
	if err != nil {
		slog.Error("compose failed", "route", decision.Route, "err", err)
		logStatus(sessionID, domain.TurnStatusError)
		trace.Fallback = true
		return composer.FallbackAnswer, trace
	}
	logStatus(sessionID, domain.TurnStatusComposed)
	if usedFallback {
		trace.Fallback = true
	}
	return answer, trace
}

func logStatus(sessionID string, status domain.TurnStatus) {
	slog.Debug("turn status", "session", sessionID, "status", status)
}

// gatherEvidence runs the routed component. The switch is exhaustive over
// the route enum.
func (s *Service) gatherEvidence(ctx context.Context, route domain.Route, query, userID string, history []domain.Message, trace *domain.RouteTrace) (composer.Evidence, error) {
	var ev composer.Evidence

	switch route {
	case domain.RouteStructuredQuery:
		res, err := s.translator.Translate(ctx, query, userID)
		if err != nil {
			return ev, err
		}
		ev.SQL = res
		trace.Evidence = append(trace.Evidence, "sql: "+res.Query)

	case domain.RouteKnowledgeRetrieval:
		chunks, err := s.retriever.Retrieve(ctx, query)
		if err != nil {
			return ev, err
		}
		ev.Chunks = chunks
		for _, c := range chunks {
			trace.Evidence = append(trace.Evidence, fmt.Sprintf("chunk: %s (%s)", c.ChunkID, c.Source))
		}

	case domain.RouteToolAction:
		res, err := s.dispatcher.Dispatch(ctx, query, userID, history)
		if err != nil {
			return ev, err
		}
		ev.Tool = res
		trace.Evidence = append(trace.Evidence, "tool: "+res.Tool)

	case domain.RouteConversational:
		// No evidence by definition.

	default:
		return ev, fmt.Errorf("unknown route %q: %w", route, domain.ErrValidation)
	}

	return ev, nil
}

// answerForError maps a failed route to its deterministic answer.
func answerForError(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return unsafeQueryAnswer
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return unavailableAnswer
	case errors.Is(err, context.DeadlineExceeded):
		return turnTimeoutAnswer
	default:
		slog.Error("route failed", "err", err)
		return noDataAnswer
	}
}

// resolveSession loads the session or lazily creates one when no id was
// given. A session belonging to another user reads as not found.
func (s *Service) resolveSession(ctx context.Context, userID, sessionID, query string) (*domain.Session, bool, error) {
	if sessionID != "" {
		session, err := s.store.GetSession(ctx, sessionID)
		if err != nil {
			return nil, false, fmt.Errorf("load session: %w", err)
		}
		if session == nil || session.UserID != userID {
			return nil, false, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
		}
		return session, false, nil
	}

	now := time.Now()
	session := &domain.Session{
		SessionID:    newSessionID(),
		UserID:       userID,
		Title:        titleFromQuery(query),
		CreatedAt:    now,
		LastActiveAt: now,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, false, fmt.Errorf("create session: %w", err)
	}
	return session, true, nil
}

// autoTitle asks the model for a short session title in the background.
// Failures are silent; the provisional first-words title stays.
func (s *Service) autoTitle(sessionID, query string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model: s.model,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: "Generate a concise title (max 6 words) for a chat that starts with the following message. Respond with the title only, no quotes."},
			{Role: "user", Content: query},
		},
	})
	if err != nil {
		slog.Warn("auto-title generation failed", "session", sessionID, "err", err)
		return
	}
	title := strings.Trim(strings.TrimSpace(resp.FirstContent()), `"`)
	if title == "" {
		return
	}
	if err := s.store.RenameSession(ctx, sessionID, title); err != nil {
		slog.Warn("auto-title rename failed", "session", sessionID, "err", err)
	}
}
