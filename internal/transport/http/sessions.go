package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"devmate/internal/domain"
)

// ListSessions returns the user's sessions, most recently active first.
// GET /v1/users/:user_id/sessions
func (h *Handler) ListSessions(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Param("user_id")

	sessions, err := h.service.ListSessions(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		log.Printf("ERROR: failed to list sessions: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list sessions"})
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

// RenameSession updates a session's title.
// PATCH /v1/sessions/:session_id
func (h *Handler) RenameSession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	var req struct {
		Title string `json:"title"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if err := h.service.RenameSession(ctx, sessionID, req.Title); err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, domain.ErrNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		default:
			log.Printf("ERROR: failed to rename session: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to rename session"})
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "renamed"})
}

// DeleteSession removes a session and its messages.
// DELETE /v1/sessions/:session_id
func (h *Handler) DeleteSession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	if err := h.service.DeleteSession(ctx, sessionID); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		case errors.Is(err, domain.ErrTurnInFlight):
			return c.JSON(http.StatusConflict, map[string]string{"error": "a turn is in progress for this session"})
		default:
			log.Printf("ERROR: failed to delete session: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete session"})
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

// GetSessionMessages returns messages for a session, oldest first.
// GET /v1/sessions/:session_id/messages
func (h *Handler) GetSessionMessages(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = 50
	}

	messages, err := h.service.ListMessages(ctx, sessionID, limit+1)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		log.Printf("ERROR: failed to get messages: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get messages"})
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": messages,
		"has_more": hasMore,
	})
}
