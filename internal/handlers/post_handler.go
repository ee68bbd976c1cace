package handlers

import (
	"net/http"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	engagement *services.EngagementService
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(engagement *services.EngagementService) *PostHandler {
	return &PostHandler{engagement: engagement}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts/:id", h.GetPost)
}

// CreatePost creates a new post authored by the caller
func (h *PostHandler) CreatePost(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	var req models.CreatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	post, err := h.engagement.CreatePost(c.Request().Context(), userID, req.Content, req.ImageURLs)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, post)
}

func (h *PostHandler) GetPost(c echo.Context) error {
	post, err := h.engagement.GetPost(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, post)
}
