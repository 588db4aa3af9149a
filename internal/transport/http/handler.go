// Package http provides the HTTP handlers for the assistant API.
package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"devmate/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/turns", h.PostTurn)
	e.POST("/v1/recommendations", h.PostRecommendations)

	e.GET("/v1/users/:user_id/sessions", h.ListSessions)
	e.PATCH("/v1/sessions/:session_id", h.RenameSession)
	e.DELETE("/v1/sessions/:session_id", h.DeleteSession)
	e.GET("/v1/sessions/:session_id/messages", h.GetSessionMessages)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
