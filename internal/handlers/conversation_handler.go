package handlers

import (
	"net/http"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// ConversationHandler handles direct and group messaging
type ConversationHandler struct {
	conversations *services.ConversationService
}

func NewConversationHandler(conversations *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

// RegisterConversationRoutes registers messaging routes
func (h *ConversationHandler) RegisterConversationRoutes(g *echo.Group) {
	g.POST("/conversations/direct", h.OpenDirect)
	g.POST("/conversations/group", h.CreateGroup)
	g.GET("/conversations", h.ListConversations)
	g.GET("/conversations/:id/messages", h.ListMessages)
	g.POST("/conversations/:id/messages", h.PostMessage)
	g.PUT("/conversations/:id/read", h.MarkRead)
}

// OpenDirect returns the caller's direct conversation with user_id, creating it once.
func (h *ConversationHandler) OpenDirect(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	var req models.CreateDirectConversationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	conv, err := h.conversations.GetOrCreateDirect(c.Request().Context(), userID, req.UserID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, conv)
}

func (h *ConversationHandler) CreateGroup(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	var req models.CreateGroupConversationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	conv, err := h.conversations.CreateGroup(c.Request().Context(), userID, req.Title, req.Members)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, conv)
}

// ListConversations returns the caller's conversations with unread counts
func (h *ConversationHandler) ListConversations(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	list, err := h.conversations.ListConversations(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, list)
}

func (h *ConversationHandler) PostMessage(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	convID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req models.PostMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	msg, err := h.conversations.PostMessage(c.Request().Context(), convID, userID, req.Content)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, msg)
}

// ListMessages pages a conversation newest first using ?cursor= and ?limit=
func (h *ConversationHandler) ListMessages(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	convID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	cursor, limit := pageParams(c)

	page, err := h.conversations.ListMessages(c.Request().Context(), convID, userID, cursor, limit)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, page)
}

func (h *ConversationHandler) MarkRead(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	convID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.conversations.MarkRead(c.Request().Context(), convID, userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
