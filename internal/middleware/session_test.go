package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/thing-service/internal/view"
	"github.com/suteetoe/thing-service/pkg/jwtutil"
	pkgmw "github.com/suteetoe/thing-service/pkg/middleware"
)

func newSession() *Session {
	jwt := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "test-key", ExpirationHours: 1})
	return NewSession(jwt, "_thing_session", false)
}

func newEcho(s *Session) *echo.Echo {
	e := echo.New()
	e.Use(s.Middleware())
	e.GET("/whoami", func(c echo.Context) error {
		claims, ok := pkgmw.ClaimsFromContext(c)
		if !ok {
			return c.String(http.StatusOK, "anonymous")
		}
		return c.String(http.StatusOK, claims.Email)
	})
	e.GET("/private", func(c echo.Context) error {
		return c.String(http.StatusOK, "secret")
	}, RequireSession("/users/sign_in"))
	e.POST("/sign_in", func(c echo.Context) error {
		if err := s.SignIn(c, "ada@example.com", 1); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	})
	return e
}

func sessionCookie(t *testing.T, e *echo.Echo) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sign_in", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	for _, c := range rec.Result().Cookies() {
		if c.Name == "_thing_session" {
			assert.True(t, c.HttpOnly)
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestSession_SignedIn(t *testing.T) {
	e := newEcho(newSession())
	cookie := sessionCookie(t, e)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "ada@example.com", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSession_InvalidCookieIsCleared(t *testing.T) {
	e := newEcho(newSession())

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "_thing_session", Value: "garbage"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "anonymous", rec.Body.String())
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestRequireSession_RedirectsAnonymous(t *testing.T) {
	e := newEcho(newSession())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/users/sign_in", rec.Header().Get(echo.HeaderLocation))

	var flash *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == view.FlashCookie {
			flash = c
		}
	}
	require.NotNil(t, flash, "alert is carried to the sign-in page")

	// the sign-in page shows it
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/users/sign_in", nil), httptest.NewRecorder())
	c.Request().AddCookie(flash)
	assert.Equal(t, SignInRequiredMessage, view.ConsumeFlash(c).Alert)
}
