package handlers

import (
	"net/http"

	"github.com/anonto42/migo/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// LikeHandler handles HTTP requests related to likes
type LikeHandler struct {
	engagement *services.EngagementService
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(engagement *services.EngagementService) *LikeHandler {
	return &LikeHandler{engagement: engagement}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/posts/:post_id/likes", h.LikePost)
	g.DELETE("/posts/:post_id/likes", h.UnlikePost)
	g.GET("/posts/:post_id/likes/status", h.GetUserLikeStatusForPost)
}

// LikePost handles liking a post
func (h *LikeHandler) LikePost(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	if err := h.engagement.LikePost(c.Request().Context(), userID, c.Param("post_id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// UnlikePost handles unliking a post
func (h *LikeHandler) UnlikePost(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	if err := h.engagement.UnlikePost(c.Request().Context(), userID, c.Param("post_id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *LikeHandler) GetUserLikeStatusForPost(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	liked, err := h.engagement.HasLiked(c.Request().Context(), userID, c.Param("post_id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]bool{"liked": liked})
}
