package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/suteetoe/thing-service/pkg/logger"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// RequestIDKey is the echo context key holding the request id
const RequestIDKey = "request_id"

const maxRequestIDLength = 128

// usableRequestID accepts short printable ASCII ids from upstream proxies
func usableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// RequestIDMiddleware reuses an incoming X-Request-ID or mints a uuid, echoes it
// back and tags the request logger with it
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(RequestIDHeader)
			if !usableRequestID(id) {
				id = uuid.NewString()
				req.Header.Set(RequestIDHeader, id)
			}

			c.Response().Header().Set(RequestIDHeader, id)
			c.Set(RequestIDKey, id)
			logger.Attach(c, logger.GetLogger().With(zap.String(RequestIDKey, id)))
			return next(c)
		}
	}
}
