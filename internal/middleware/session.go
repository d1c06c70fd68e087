package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/thing-service/internal/view"
	"github.com/suteetoe/thing-service/pkg/jwtutil"
	"github.com/suteetoe/thing-service/pkg/logger"
	pkgmw "github.com/suteetoe/thing-service/pkg/middleware"
	"go.uber.org/zap"
)

// SignInRequiredMessage is shown when an anonymous visitor hits a protected page
const SignInRequiredMessage = "You need to sign in or sign up before continuing."

// Session reads and writes the signed-in user's token in a cookie
type Session struct {
	jwt        *jwtutil.JWTUtil
	cookieName string
	secure     bool
}

// NewSession creates a Session. secure marks the cookie HTTPS-only.
func NewSession(jwt *jwtutil.JWTUtil, cookieName string, secure bool) *Session {
	return &Session{jwt: jwt, cookieName: cookieName, secure: secure}
}

// Middleware loads the claims from a valid session cookie. Anonymous and
// invalid sessions pass through without claims.
func (s *Session) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(s.cookieName)
			if err != nil || cookie.Value == "" {
				return next(c)
			}

			log := logger.FromEcho(c)
			claims, err := s.jwt.ValidateToken(cookie.Value)
			if err != nil {
				log.Debug("Discarding invalid session", zap.Error(err))
				s.Clear(c)
				return next(c)
			}

			c.Set(pkgmw.ClaimsKey, claims)
			logger.With(c, zap.Uint("user_id", claims.UserID))
			return next(c)
		}
	}
}

// SignIn issues a token for the user and stores it in the session cookie
func (s *Session) SignIn(c echo.Context, email string, userID uint) error {
	token, err := s.jwt.GenerateToken(email, userID)
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(s.jwt.TTL()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear removes the session cookie
func (s *Session) Clear(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequireSession redirects anonymous visitors to signInPath with an alert
func RequireSession(signInPath string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := pkgmw.ClaimsFromContext(c); ok {
				return next(c)
			}

			logger.FromEcho(c).Info("Redirecting anonymous visitor to sign in",
				zap.String("path", c.Request().URL.Path))
			view.SetFlash(c, view.Flash{Alert: SignInRequiredMessage})
			return c.Redirect(http.StatusFound, signInPath)
		}
	}
}
