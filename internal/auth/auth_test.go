package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohans/nsforge/internal/database"
	"github.com/mohans/nsforge/internal/store"
)

func newService(t *testing.T) *Service {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open("sqlite", "file:"+name+"?mode=memory&cache=shared", slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return NewService(store.NewUserStore(db), "test-secret", time.Minute)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	u, err := s.Register(ctx, "Alice@Example.com", "hunter2", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.True(t, u.IsActive)
	assert.NotEqual(t, "hunter2", u.HashedPassword)

	_, err = s.Register(ctx, "alice@example.com", "other", "")
	assert.ErrorIs(t, err, ErrEmailTaken)
	_, err = s.Register(ctx, "not-an-email", "pw", "")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	token, err := s.Authenticate(ctx, "alice@example.com", "hunter2")
	require.NoError(t, err)
	sub, err := s.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, sub)

	_, err = s.Authenticate(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Authenticate(ctx, "bob@example.com", "hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestParseToken_Rejects(t *testing.T) {
	s := newService(t)

	expired := *s
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, err := expired.IssueToken("u1")
	require.NoError(t, err)
	_, err = s.ParseToken(old)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewService(nil, "other-secret", time.Minute)
	forged, err := other.IssueToken("u1")
	require.NoError(t, err)
	_, err = s.ParseToken(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.ParseToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	s := newService(t)
	u, err := s.Register(context.Background(), "carol@example.com", "pw", "")
	require.NoError(t, err)
	good, err := s.IssueToken(u.ID)
	require.NoError(t, err)
	ghost, err := s.IssueToken("no-such-user")
	require.NoError(t, err)

	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		return c.String(http.StatusOK, CurrentUser(c).Email)
	}, s.Middleware())

	cases := []struct {
		header string
		code   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer garbage", http.StatusForbidden},
		{"Bearer " + ghost, http.StatusNotFound},
		{"Bearer " + good, http.StatusOK},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if c.header != "" {
			req.Header.Set(echo.HeaderAuthorization, c.header)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, c.code, rec.Code, c.header)
		if c.code == http.StatusOK {
			assert.Equal(t, "carol@example.com", rec.Body.String())
		}
	}
}
