package handlers

import (
	"net/http"
	"strconv"

	"github.com/anonto42/migo/backend/internal/middleware"
	"github.com/anonto42/migo/backend/internal/models"
	"github.com/anonto42/migo/backend/internal/services"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to identities
type UserHandler struct {
	identity *services.IdentityService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(identity *services.IdentityService) *UserHandler {
	return &UserHandler{identity: identity}
}

// RegisterProfileRoutes registers identity routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.POST("/profile", h.Provision)
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile/handle", h.UpdateHandle)
	g.PUT("/profile/presence", h.UpdatePresence)
	g.GET("/users/search", h.SearchUsers)
	g.GET("/users/resolve", h.ResolveUser)
	g.GET("/users/:id", h.GetUser)
}

// Provision creates the caller's identity. Under Firebase auth the account is
// linked by UID; under JWT the token subject becomes the identity id.
func (h *UserHandler) Provision(c echo.Context) error {
	var req models.ProvisionUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	params := services.ProvisionParams{Handle: req.Handle, Email: req.Email}
	if uid, ok := c.Get(middleware.FirebaseUIDKey).(string); ok {
		if _, provisioned := c.Get(middleware.UserIDKey).(uuid.UUID); provisioned {
			return echo.NewHTTPError(http.StatusConflict, "Identity already provisioned")
		}
		params.FirebaseUID = uid
	} else if id, ok := c.Get(middleware.UserIDKey).(uuid.UUID); ok {
		params.ID = id
	}
	if params.Email == "" {
		params.Email, _ = c.Get(middleware.EmailKey).(string)
	}

	user, err := h.identity.Provision(c.Request().Context(), params)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, user)
}

// GetProfile retrieves the authenticated user's identity
func (h *UserHandler) GetProfile(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	user, err := h.identity.GetByID(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, user)
}

// UpdateHandle changes the display handle; the tag never changes.
func (h *UserHandler) UpdateHandle(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	var req models.UpdateHandleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.identity.UpdateHandle(c.Request().Context(), userID, req.Handle)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, user)
}

// UpdatePresence sets the caller's presence, activity and optionally the custom status
func (h *UserHandler) UpdatePresence(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	var req models.UpdatePresenceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.identity.UpdatePresence(c.Request().Context(), userID, req.Presence, req.CurrentActivity, req.CustomStatus)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, user)
}

func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	user, err := h.identity.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, user.ToCompact())
}

// ResolveUser looks up an identity by "handle#TAG" or a bare tag.
func (h *UserHandler) ResolveUser(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Query 'q' is required")
	}
	user, err := h.identity.Resolve(c.Request().Context(), query)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, user.ToCompact())
}

// SearchUsers matches handles by substring and tags exactly
func (h *UserHandler) SearchUsers(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Search query 'q' is required")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	users, err := h.identity.Search(c.Request().Context(), query, limit)
	if err != nil {
		return err
	}
	out := make([]models.UserCompact, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToCompact())
	}
	return respond(c, http.StatusOK, out)
}
