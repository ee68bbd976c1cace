package handlers

import (
	"net/http"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// CommentHandler handles HTTP requests related to comments
type CommentHandler struct {
	engagement *services.EngagementService
	feed       *services.FeedService
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(engagement *services.EngagementService, feed *services.FeedService) *CommentHandler {
	return &CommentHandler{
		engagement: engagement,
		feed:       feed,
	}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.POST("/posts/:post_id/comments", h.CreateComment)
	g.GET("/posts/:post_id/comments", h.GetCommentsByPostID)
}

// CreateComment creates a new comment on a post
func (h *CommentHandler) CreateComment(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	var req models.CreateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	comment, err := h.engagement.CommentOnPost(c.Request().Context(), userID, c.Param("post_id"), req.Content)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, comment)
}

// GetCommentsByPostID pages a post's comments, newest first
func (h *CommentHandler) GetCommentsByPostID(c echo.Context) error {
	cursor, limit := pageParams(c)
	page, err := h.feed.CommentsPage(c.Request().Context(), c.Param("post_id"), cursor, limit)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, page)
}
