package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"devmate/internal/domain"
)

// ListSessions returns the user's sessions, most recently active first.
func (s *Service) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required: %w", domain.ErrValidation)
	}
	return s.store.ListSessions(ctx, userID)
}

// RenameSession sets a new title on the session.
func (s *Service) RenameSession(ctx context.Context, sessionID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is required: %w", domain.ErrValidation)
	}
	return s.store.RenameSession(ctx, sessionID, title)
}

// DeleteSession removes the session and its messages. A session with a turn
// in flight cannot be deleted.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	if !s.locks.TryAcquire(sessionID) {
		return fmt.Errorf("session %s: %w", sessionID, domain.ErrTurnInFlight)
	}
	defer s.locks.Release(sessionID)

	return s.store.DeleteSession(ctx, sessionID)
}

// ListMessages returns the session transcript, oldest first.
func (s *Service) ListMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	return s.store.ListMessages(ctx, sessionID, limit)
}

// Recommend returns follow-up suggestions for the session. It is a pure read
// path: it never mutates history and runs regardless of in-flight turns.
func (s *Service) Recommend(ctx context.Context, sessionID string, numMessages int) (*domain.RecommendationResponse, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}

	start := time.Now()
	suggestions, err := s.recommender.Suggest(ctx, sessionID, numMessages)
	if err != nil {
		return nil, err
	}

	return &domain.RecommendationResponse{
		Suggestions:     suggestions,
		SessionID:       sessionID,
		Status:          "success",
		DurationSeconds: time.Since(start).Seconds(),
	}, nil
}
