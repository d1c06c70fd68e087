package logger

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type contextKey struct{}

// EchoKey is the echo context key the request-scoped logger is stored under
const EchoKey = "logger"

// FromContext returns the logger carried by ctx, or the global logger
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(contextKey{}).(*zap.Logger); ok {
		return l
	}
	return GetLogger()
}

// WithContext returns a copy of ctx carrying l
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromEcho returns the request logger, looking at the echo context first and
// the request context second
func FromEcho(c echo.Context) *zap.Logger {
	if l, ok := c.Get(EchoKey).(*zap.Logger); ok {
		return l
	}
	return FromContext(c.Request().Context())
}

// Attach makes l the request logger, for handlers and for code that only sees
// the request context (repositories)
func Attach(c echo.Context, l *zap.Logger) {
	c.Set(EchoKey, l)
	c.SetRequest(c.Request().WithContext(WithContext(c.Request().Context(), l)))
}

// With adds fields to the request logger for the rest of the request
func With(c echo.Context, fields ...zap.Field) *zap.Logger {
	l := FromEcho(c).With(fields...)
	Attach(c, l)
	return l
}
