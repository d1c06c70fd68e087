package server

import (
	"github.com/labstack/echo/v4"
)

// RouteInfo describes one registered route
type RouteInfo struct {
	Name   string
	Method string
	Path   string
	Action string
}

type routeAdder interface {
	Add(method, path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

func (s *Server) add(r routeAdder, method, path, name, action string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	route := r.Add(method, path, h, m...)
	route.Name = name
	s.routes = append(s.routes, RouteInfo{
		Name:   name,
		Method: method,
		Path:   route.Path,
		Action: action,
	})
}

// Routes lists the routes in registration order
func (s *Server) Routes() []RouteInfo {
	out := make([]RouteInfo, len(s.routes))
	copy(out, s.routes)
	return out
}
