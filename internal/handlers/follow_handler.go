package handlers

import (
	"net/http"

	"github.com/anonto42/migo/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// FollowHandler handles follow/unfollow HTTP requests
type FollowHandler struct {
	follows *services.FollowService
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(follows *services.FollowService) *FollowHandler {
	return &FollowHandler{follows: follows}
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/users/:id/follow", h.FollowUser)
	g.DELETE("/users/:id/follow", h.UnfollowUser)
	g.GET("/users/:id/followers", h.GetFollowers)
	g.GET("/users/:id/following", h.GetFollowing)
	g.GET("/users/:id/follow-stats", h.GetFollowStats)
}

// FollowUser follows a user
func (h *FollowHandler) FollowUser(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	targetID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.follows.Follow(c.Request().Context(), userID, targetID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// UnfollowUser unfollows a user
func (h *FollowHandler) UnfollowUser(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	targetID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.follows.Unfollow(c.Request().Context(), userID, targetID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *FollowHandler) GetFollowers(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	users, err := h.follows.Followers(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, users)
}

func (h *FollowHandler) GetFollowing(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	users, err := h.follows.Following(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, users)
}

func (h *FollowHandler) GetFollowStats(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	stats, err := h.follows.Stats(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, stats)
}
