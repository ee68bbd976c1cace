package middleware

import (
	"context"
	"errors"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/migo/backend/internal/apperrors"
	"github.com/anonto42/migo/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// TokenVerifier is the part of *auth.Client the middleware needs.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// IdentityByFirebaseUID maps a verified firebase account to its identity.
type IdentityByFirebaseUID interface {
	GetByFirebaseUID(ctx context.Context, uid string) (*models.User, error)
}

// FirebaseAuthMiddleware verifies Firebase ID tokens. The firebase UID is
// always stored; UserIDKey is only set once the account has provisioned an
// identity, so the provisioning route can run before that.
func FirebaseAuthMiddleware(verifier TokenVerifier, identities IdentityByFirebaseUID) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			idToken, err := bearerToken(c)
			if err != nil {
				return err
			}

			ctx := c.Request().Context()
			token, err := verifier.VerifyIDToken(ctx, idToken)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired ID token")
			}
			c.Set(FirebaseUIDKey, token.UID)
			if email, ok := token.Claims["email"].(string); ok {
				c.Set(EmailKey, email)
			}

			user, err := identities.GetByFirebaseUID(ctx, token.UID)
			switch {
			case err == nil:
				c.Set(UserIDKey, user.ID)
			case errors.Is(err, apperrors.ErrNotFound):
				// not provisioned yet
			default:
				return err
			}
			return next(c)
		}
	}
}
