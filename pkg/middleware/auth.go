package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/thing-service/pkg/jwtutil"
	"github.com/suteetoe/thing-service/pkg/logger"
	"go.uber.org/zap"
)

// ClaimsKey is the echo context key holding *jwtutil.UserClaims
const ClaimsKey = "user"

var (
	errMissingAuthorization   = errors.New("missing authorization header")
	errMalformedAuthorization = errors.New("invalid authorization header format")
)

var unauthorizedMessages = map[error]string{
	errMissingAuthorization:   "Missing authorization header",
	errMalformedAuthorization: "Invalid authorization header format",
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingAuthorization
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" || strings.Contains(token, " ") {
		return "", errMalformedAuthorization
	}
	return token, nil
}

// JWTAuthMiddleware rejects requests without a valid bearer token with a JSON 401
func JWTAuthMiddleware(jwtUtil *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			token, err := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				log.Warn("Rejected API request", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": unauthorizedMessages[err]})
			}

			claims, err := jwtUtil.ValidateToken(token)
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid or expired token"})
			}

			c.Set(ClaimsKey, claims)
			logger.With(c, zap.Uint("user_id", claims.UserID)).
				Debug("Bearer token accepted", zap.String("email", claims.Email))
			return next(c)
		}
	}
}

// ClaimsFromContext returns the claims stored by JWTAuthMiddleware or the session middleware
func ClaimsFromContext(c echo.Context) (*jwtutil.UserClaims, bool) {
	claims, ok := c.Get(ClaimsKey).(*jwtutil.UserClaims)
	return claims, ok
}
