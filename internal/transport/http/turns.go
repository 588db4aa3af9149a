package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"devmate/internal/domain"
)

// PostTurn processes one conversational turn.
// POST /v1/turns
func (h *Handler) PostTurn(c echo.Context) error {
	ctx := c.Request().Context()

	var req domain.TurnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resp, err := h.service.ProcessTurn(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, domain.ErrNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		case errors.Is(err, domain.ErrTurnInFlight):
			return c.JSON(http.StatusConflict, map[string]string{"error": "a turn is already in progress for this session"})
		default:
			log.Printf("ERROR: failed to process turn: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to process turn"})
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// PostRecommendations returns follow-up suggestions for a session.
// POST /v1/recommendations
func (h *Handler) PostRecommendations(c echo.Context) error {
	ctx := c.Request().Context()

	var req domain.RecommendationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "session_id is required"})
	}

	resp, err := h.service.Recommend(ctx, req.SessionID, req.NumMessages)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		log.Printf("ERROR: failed to generate recommendations: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to generate recommendations"})
	}

	return c.JSON(http.StatusOK, resp)
}
