package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/pagination"
	"github.com/anonto42/migo/backend/internal/services"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// FeedHandler handles feed-related HTTP requests
type FeedHandler struct {
	feed       *services.FeedService
	engagement *services.EngagementService
	identity   *services.IdentityService
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(feed *services.FeedService, engagement *services.EngagementService, identity *services.IdentityService) *FeedHandler {
	return &FeedHandler{
		feed:       feed,
		engagement: engagement,
		identity:   identity,
	}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
	g.GET("/users/:id/posts", h.GetUserPosts)
}

// EnrichedPost is a post with author info and the viewer's like flag
type EnrichedPost struct {
	models.Post
	Author  *models.UserCompact `json:"author,omitempty"`
	IsLiked bool                `json:"is_liked"`
}

// GetFeed returns one keyset page of the global feed. Pass next_cursor back
// as ?cursor= to continue.
func (h *FeedHandler) GetFeed(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	cursor, limit := pageParams(c)

	page, err := h.feed.Page(c.Request().Context(), cursor, limit)
	if err != nil {
		return err
	}
	return h.respondPage(c, userID, page)
}

// GetUserPosts pages one author's posts
func (h *FeedHandler) GetUserPosts(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	author, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	cursor, limit := pageParams(c)

	page, err := h.feed.AuthorPage(c.Request().Context(), author, cursor, limit)
	if err != nil {
		return err
	}
	return h.respondPage(c, userID, page)
}

func (h *FeedHandler) respondPage(c echo.Context, viewer uuid.UUID, page *pagination.Page[models.Post]) error {
	posts, err := h.enrichPosts(c.Request().Context(), viewer, page.Items)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, pagination.Page[EnrichedPost]{
		Items:      posts,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

func (h *FeedHandler) enrichPosts(ctx context.Context, viewer uuid.UUID, posts []models.Post) ([]EnrichedPost, error) {
	seen := make(map[uuid.UUID]bool)
	var authorIDs []uuid.UUID
	for _, p := range posts {
		if id, err := uuid.Parse(p.UserID); err == nil && !seen[id] {
			seen[id] = true
			authorIDs = append(authorIDs, id)
		}
	}
	authors, err := h.identity.Compact(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	enriched := make([]EnrichedPost, len(posts))
	for i, p := range posts {
		enriched[i] = EnrichedPost{Post: p}
		if id, err := uuid.Parse(p.UserID); err == nil {
			if a, ok := authors[id]; ok {
				enriched[i].Author = &a
			}
		}
		liked, err := h.engagement.HasLiked(ctx, viewer, p.ID.Hex())
		if err != nil {
			return nil, err
		}
		enriched[i].IsLiked = liked
	}
	return enriched, nil
}
