package handlers

import (
	"net/http"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/services"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notifications *services.NotificationService
	identity      *services.IdentityService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifications *services.NotificationService, identity *services.IdentityService) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		identity:      identity,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/read", h.MarkAsRead)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
	g.GET("/notifications/preferences", h.GetPreferences)
	g.PUT("/notifications/preferences", h.UpdatePreferences)
}

// EnrichedNotification is a view with its actors expanded to public identities
type EnrichedNotification struct {
	models.NotificationView
	LatestActorInfo *models.UserCompact  `json:"latest_actor_info,omitempty"`
	ActorInfo       []models.UserCompact `json:"actor_info"`
}

func (h *NotificationHandler) enrichNotifications(c echo.Context, views []models.NotificationView) ([]EnrichedNotification, error) {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, v := range views {
		for _, id := range append([]uuid.UUID{v.LatestActor}, v.Actors...) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	users, err := h.identity.Compact(c.Request().Context(), ids)
	if err != nil {
		return nil, err
	}

	enriched := make([]EnrichedNotification, len(views))
	for i, v := range views {
		enriched[i] = EnrichedNotification{NotificationView: v, ActorInfo: make([]models.UserCompact, 0, len(v.Actors))}
		if u, ok := users[v.LatestActor]; ok {
			enriched[i].LatestActorInfo = &u
		}
		for _, id := range v.Actors {
			if u, ok := users[id]; ok {
				enriched[i].ActorInfo = append(enriched[i].ActorInfo, u)
			}
		}
	}
	return enriched, nil
}

// GetNotifications returns the caller's aggregated notifications, newest first
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	views, err := h.notifications.ListForUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	enriched, err := h.enrichNotifications(c, views)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, enriched)
}

func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	count, err := h.notifications.UnreadCount(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]int64{"unread_count": count})
}

// GetPreferences returns the caller's per-type notification toggles
func (h *NotificationHandler) GetPreferences(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	prefs, err := h.notifications.Preferences(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, prefs)
}

// UpdatePreferences changes the toggles present in the body
func (h *NotificationHandler) UpdatePreferences(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	var req models.UpdateNotificationPreferencesRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	prefs, err := h.notifications.UpdatePreferences(c.Request().Context(), userID, req.Changes())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, prefs)
}

// MarkAsRead marks one view read. Grouped views are addressed by their
// "type:entity" id and mark every underlying event.
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	var req models.MarkNotificationReadRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.notifications.MarkRead(c.Request().Context(), userID, req.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	updated, err := h.notifications.MarkAllRead(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]int64{"updated": updated})
}
