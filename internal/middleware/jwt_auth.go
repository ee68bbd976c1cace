package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/anonto42/migo/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Context keys set by the auth middlewares.
const (
	UserIDKey      = "userID"
	FirebaseUIDKey = "firebaseUID"
	EmailKey       = "email"
)

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
	}
	return parts[1], nil
}

// JWTAuthMiddleware verifies HS256 tokens signed with secret. The user_id
// claim is the identity id and is stored in the context under UserIDKey.
func JWTAuthMiddleware(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := bearerToken(c)
			if err != nil {
				return err
			}

			claims := &models.JwtCustomClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return key, nil
			})
			if err != nil || !token.Valid {
				if errors.Is(err, jwt.ErrSignatureInvalid) {
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token signature")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			userID, err := uuid.Parse(claims.UserID)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Token subject is not a valid user id")
			}

			c.Set(UserIDKey, userID)
			c.Set(EmailKey, claims.Email)
			return next(c)
		}
	}
}
