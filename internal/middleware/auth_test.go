package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/migo/backend/internal/apperrors"
	"github.com/anonto42/migo/backend/internal/middleware"
	"github.com/anonto42/migo/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier map[string]string

func (f fakeVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	uid, ok := f[idToken]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &auth.Token{UID: uid, Claims: map[string]interface{}{"email": uid + "@example.com"}}, nil
}

type fakeIdentities map[string]uuid.UUID

func (f fakeIdentities) GetByFirebaseUID(_ context.Context, uid string) (*models.User, error) {
	id, ok := f[uid]
	if !ok {
		return nil, apperrors.NotFound("no identity for %s", uid)
	}
	return &models.User{ID: id}, nil
}

// run invokes mw with the given Authorization header and returns the
// handler's view of the context, or the middleware error.
func run(t *testing.T, mw echo.MiddlewareFunc, header string) (echo.Context, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	c := echo.New().NewContext(req, httptest.NewRecorder())

	var reached echo.Context
	err := mw(func(c echo.Context) error {
		reached = c
		return nil
	})(c)
	return reached, err
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	return he.Code
}

func TestJWTAuthMiddleware(t *testing.T) {
	t.Parallel()
	mw := middleware.JWTAuthMiddleware("secret")
	id := uuid.New()

	sign := func(key string, userID string, exp time.Time) string {
		claims := models.JwtCustomClaims{
			UserID:           userID,
			Email:            "a@example.com",
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
		}
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
		require.NoError(t, err)
		return s
	}

	c, err := run(t, mw, "Bearer "+sign("secret", id.String(), time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, id, c.Get(middleware.UserIDKey))
	assert.Equal(t, "a@example.com", c.Get(middleware.EmailKey))

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"wrong key", "Bearer " + sign("other", id.String(), time.Now().Add(time.Hour))},
		{"expired", "Bearer " + sign("secret", id.String(), time.Now().Add(-time.Hour))},
		{"subject not a uuid", "Bearer " + sign("secret", "42", time.Now().Add(time.Hour))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, mw, tt.header)
			assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
		})
	}
}

func TestFirebaseAuthMiddleware(t *testing.T) {
	t.Parallel()
	provisioned := uuid.New()
	mw := middleware.FirebaseAuthMiddleware(
		fakeVerifier{"tok-a": "uid-a", "tok-b": "uid-b"},
		fakeIdentities{"uid-a": provisioned},
	)

	c, err := run(t, mw, "Bearer tok-a")
	require.NoError(t, err)
	assert.Equal(t, "uid-a", c.Get(middleware.FirebaseUIDKey))
	assert.Equal(t, provisioned, c.Get(middleware.UserIDKey))

	c, err = run(t, mw, "Bearer tok-b")
	require.NoError(t, err, "unprovisioned accounts still authenticate")
	assert.Equal(t, "uid-b", c.Get(middleware.FirebaseUIDKey))
	assert.Nil(t, c.Get(middleware.UserIDKey))
	assert.Equal(t, "uid-b@example.com", c.Get(middleware.EmailKey))

	_, err = run(t, mw, "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}
