package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/anonto42/migo/backend/internal/apperrors"
	"github.com/anonto42/migo/backend/internal/middleware"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrorBody is the error half of the response envelope.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, envelope{Success: true, Data: data})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err *apperrors.Error) int {
	switch err.Kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindSelfReference:
		return http.StatusBadRequest
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindInvalidState:
		if err.Reason == apperrors.ReasonBadCursor {
			return http.StatusBadRequest
		}
		return http.StatusUnprocessableEntity
	case apperrors.KindStorageFailure:
		if err.Retryable {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorHandler writes every error in the envelope format. Server-side
// failures are logged, reported to Sentry when a client is configured and
// returned to the caller without details.
func HTTPErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	log := logger.Named("http")
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := &ErrorBody{Kind: "internal", Message: http.StatusText(http.StatusInternalServerError)}

		var (
			appErr  *apperrors.Error
			httpErr *echo.HTTPError
		)
		switch {
		case errors.As(err, &appErr):
			status = statusFor(appErr)
			body = &ErrorBody{Kind: string(appErr.Kind), Reason: appErr.Reason, Message: appErr.Message}
		case errors.As(err, &httpErr):
			status = httpErr.Code
			body = &ErrorBody{Kind: "http", Message: http.StatusText(status)}
			if msg, ok := httpErr.Message.(string); ok {
				body.Message = msg
			}
		}

		if status >= http.StatusInternalServerError {
			log.Error("Request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Int("status", status),
				zap.Error(err))
			if hub := sentry.CurrentHub(); hub.Client() != nil {
				hub.WithScope(func(scope *sentry.Scope) {
					scope.SetTag("path", c.Path())
					scope.SetRequest(c.Request())
					hub.CaptureException(err)
				})
			}
			body.Message = http.StatusText(status)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, envelope{Success: false, Error: body})
		}
		if writeErr != nil {
			log.Warn("Failed to write error response", zap.Error(writeErr))
		}
	}
}

// getUserIDFromContext returns the identity set by the auth middleware.
func getUserIDFromContext(c echo.Context) (uuid.UUID, error) {
	id, ok := c.Get(middleware.UserIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "Identity not provisioned")
	}
	return id, nil
}

func parseUUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+name)
	}
	return id, nil
}

// bindAndValidate decodes the request body into req and runs the registered validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	return c.Validate(req)
}

// pageParams reads the keyset cursor and limit query parameters. A missing or
// malformed limit falls back to the default.
func pageParams(c echo.Context) (string, int) {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	return c.QueryParam("cursor"), limit
}
