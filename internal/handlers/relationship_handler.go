package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/services"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RelationshipHandler handles friend requests, friendships and blocks
type RelationshipHandler struct {
	relationships *services.RelationshipService
}

// NewRelationshipHandler creates a new RelationshipHandler
func NewRelationshipHandler(relationships *services.RelationshipService) *RelationshipHandler {
	return &RelationshipHandler{relationships: relationships}
}

// RegisterRelationshipRoutes registers relationship routes. :id is always the other user.
func (h *RelationshipHandler) RegisterRelationshipRoutes(g *echo.Group) {
	g.POST("/friends/request", h.SendFriendRequest)
	g.DELETE("/friends/request/:id", h.CancelFriendRequest)
	g.PUT("/friends/request/:id", h.RespondFriendRequest)
	g.GET("/friends", h.ListRelationships)
	g.GET("/friends/online", h.ListOnlineFriends)
	g.DELETE("/friends/:id", h.Unfriend)
	g.GET("/relationships/:id", h.GetStatus)
	g.POST("/blocks/:id", h.Block)
	g.DELETE("/blocks/:id", h.Unblock)
}

// SendFriendRequest requests friendship with the user named by "handle#TAG"
func (h *RelationshipHandler) SendFriendRequest(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	var req models.FriendRequestByHandle
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	rel, err := h.relationships.Request(c.Request().Context(), userID, req.Target)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, rel)
}

// RespondFriendRequest accepts or rejects a pending request from :id
func (h *RelationshipHandler) RespondFriendRequest(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	other, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req models.RespondFriendRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	rel, err := h.relationships.Respond(c.Request().Context(), userID, other, req.Decision)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, rel)
}

// CancelFriendRequest withdraws the caller's pending request to :id
func (h *RelationshipHandler) CancelFriendRequest(c echo.Context) error {
	return h.pairAction(c, h.relationships.CancelRequest)
}

// Unfriend removes an accepted friendship
func (h *RelationshipHandler) Unfriend(c echo.Context) error {
	return h.pairAction(c, h.relationships.Unfriend)
}

// Unblock lifts the caller's block on :id
func (h *RelationshipHandler) Unblock(c echo.Context) error {
	return h.pairAction(c, h.relationships.Unblock)
}

// Block blocks :id for the caller
func (h *RelationshipHandler) Block(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	other, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	rel, err := h.relationships.Block(c.Request().Context(), userID, other)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, rel)
}

// GetStatus reports the relationship status between the caller and :id
func (h *RelationshipHandler) GetStatus(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	other, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	status, err := h.relationships.Status(c.Request().Context(), userID, other)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]models.RelationshipStatus{"status": status})
}

// ListRelationships returns friends, inbound and outbound requests and blocks
func (h *RelationshipHandler) ListRelationships(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	list, err := h.relationships.ListRelationships(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, list)
}

// ListOnlineFriends returns the caller's friends whose presence is online
func (h *RelationshipHandler) ListOnlineFriends(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	friends, err := h.relationships.ListFriends(c.Request().Context(), userID, true)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, friends)
}

// pairAction runs an operation between the caller and :id that returns no body.
func (h *RelationshipHandler) pairAction(c echo.Context, op func(ctx context.Context, user, other uuid.UUID) error) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	other, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := op(c.Request().Context(), userID, other); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
