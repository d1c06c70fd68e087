// Package server assembles the echo application: middleware, renderer and routes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/suteetoe/thing-service/internal/assets"
	"github.com/suteetoe/thing-service/internal/handler"
	"github.com/suteetoe/thing-service/internal/middleware"
	"github.com/suteetoe/thing-service/internal/repository"
	"github.com/suteetoe/thing-service/internal/view"
	"github.com/suteetoe/thing-service/pkg/config"
	"github.com/suteetoe/thing-service/pkg/jwtutil"
	"github.com/suteetoe/thing-service/pkg/logger"
	"github.com/suteetoe/thing-service/pkg/metrics"
	pkgmw "github.com/suteetoe/thing-service/pkg/middleware"
	"github.com/suteetoe/thing-service/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MethodParam is the form field that overrides the method of a POST
const MethodParam = "_method"

// Deps are the collaborators the server is built from
type Deps struct {
	Config  *config.Config
	DB      *gorm.DB
	Things  repository.ThingRepository
	Users   repository.UserRepository
	JWT     *jwtutil.JWTUtil
	Assets  *assets.Pipeline
	Metrics *prometheus.Metrics
	// Registry receives the HTTP collectors and is served at /metrics
	Registry *promclient.Registry
}

// Server is the configured echo application
type Server struct {
	echo   *echo.Echo
	config *config.Config
	routes []RouteInfo
}

// New builds the echo instance with every route registered
func New(deps Deps) (*Server, error) {
	cfg := deps.Config
	log := logger.GetLogger()

	pipeline := deps.Assets
	if pipeline == nil {
		p, err := assets.NewPipeline()
		if err != nil {
			return nil, err
		}
		pipeline = p
	}

	renderer, err := view.NewRenderer(pipeline)
	if err != nil {
		return nil, err
	}

	registry := deps.Registry
	if registry == nil {
		registry = promclient.NewRegistry()
	}
	httpMetrics := metrics.NewHTTPMetrics(cfg.ServiceName, registry)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.Validator = handler.NewRequestValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler

	// HTML forms send PATCH and DELETE as POST with _method
	e.Pre(echomw.MethodOverrideWithConfig(echomw.MethodOverrideConfig{
		Getter: func(c echo.Context) string {
			return strings.ToUpper(c.FormValue(MethodParam))
		},
	}))

	// Middleware
	session := middleware.NewSession(deps.JWT, cfg.Auth.CookieName, cfg.Server.Env == "production")
	e.Use(echomw.Recover())
	e.Use(pkgmw.RequestIDMiddleware())
	e.Use(logger.Middleware())
	e.Use(httpMetrics.Middleware())
	e.Use(session.Middleware())

	s := &Server{echo: e, config: cfg}

	things := handler.NewThingHandler(deps.Things)
	thingsAPI := handler.NewThingAPIHandler(deps.Things)
	sessions := handler.NewSessionHandler(deps.Users, session, deps.Metrics)
	auth := handler.NewAuthHandler(deps.Users, deps.JWT, deps.Metrics)
	health := handler.NewHealthHandler(deps.DB)

	// Writes need a signed-in user unless auth is switched off
	var htmlWrite, apiWrite []echo.MiddlewareFunc
	if cfg.Auth.Required {
		htmlWrite = append(htmlWrite, middleware.RequireSession("/users/sign_in"))
		apiWrite = append(apiWrite, pkgmw.JWTAuthMiddleware(deps.JWT))
	}
	bearer := pkgmw.JWTAuthMiddleware(deps.JWT)

	// Things
	s.add(e, http.MethodGet, "/", "root", "things#index", things.Index)
	s.add(e, http.MethodGet, "/things", "things", "things#index", things.Index)
	s.add(e, http.MethodPost, "/things", "", "things#create", things.Create, htmlWrite...)
	s.add(e, http.MethodGet, "/things/new", "new_thing", "things#new", things.New, htmlWrite...)
	s.add(e, http.MethodGet, "/things/:id/edit", "edit_thing", "things#edit", things.Edit, htmlWrite...)
	s.add(e, http.MethodGet, "/things/:id", "thing", "things#show", things.Show)
	s.add(e, http.MethodPatch, "/things/:id", "", "things#update", things.Update, htmlWrite...)
	s.add(e, http.MethodPut, "/things/:id", "", "things#update", things.Update, htmlWrite...)
	s.add(e, http.MethodDelete, "/things/:id", "", "things#destroy", things.Destroy, htmlWrite...)

	// Users
	s.add(e, http.MethodGet, "/users/sign_up", "new_user_registration", "registrations#new", sessions.NewRegistration)
	s.add(e, http.MethodPost, "/users/sign_up", "user_registration", "registrations#create", sessions.Register)
	s.add(e, http.MethodGet, "/users/sign_in", "new_user_session", "sessions#new", sessions.NewSession)
	s.add(e, http.MethodPost, "/users/sign_in", "user_session", "sessions#create", sessions.SignIn)
	s.add(e, http.MethodDelete, "/users/sign_out", "destroy_user_session", "sessions#destroy", sessions.SignOut)

	// JSON API
	api := e.Group(handler.APIPrefix)
	s.add(api, http.MethodGet, "/things", "api_things", "api/things#index", thingsAPI.List)
	s.add(api, http.MethodPost, "/things", "", "api/things#create", thingsAPI.Create, apiWrite...)
	s.add(api, http.MethodGet, "/things/:id", "api_thing", "api/things#show", thingsAPI.Get)
	s.add(api, http.MethodPatch, "/things/:id", "", "api/things#update", thingsAPI.Update, apiWrite...)
	s.add(api, http.MethodPut, "/things/:id", "", "api/things#update", thingsAPI.Update, apiWrite...)
	s.add(api, http.MethodDelete, "/things/:id", "", "api/things#destroy", thingsAPI.Delete, apiWrite...)
	s.add(api, http.MethodPost, "/auth/register", "api_auth_register", "api/auth#register", auth.Register)
	s.add(api, http.MethodPost, "/auth/login", "api_auth_login", "api/auth#login", auth.Login)
	s.add(api, http.MethodGet, "/auth/me", "api_auth_me", "api/auth#me", auth.Me, bearer)

	// Operations
	s.add(e, http.MethodGet, "/health", "health", "health#show", health.HealthCheck)
	s.add(e, http.MethodGet, "/metrics", "metrics", "metrics#show", echo.WrapHandler(metrics.Handler(registry)))
	s.add(e, http.MethodGet, assets.Prefix+"/*", "assets", "assets#show", pipeline.Handler())

	log.Info("Routes registered", zap.Int("count", len(s.routes)))
	return s, nil
}

// Echo exposes the underlying instance, mainly for tests
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	log := logger.GetLogger()
	addr := ":" + s.config.Server.Port

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server", zap.Duration("timeout", s.config.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
