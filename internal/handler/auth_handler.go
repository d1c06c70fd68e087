package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/thing-service/internal/model"
	"github.com/suteetoe/thing-service/internal/repository"
	"github.com/suteetoe/thing-service/pkg/jwtutil"
	"github.com/suteetoe/thing-service/pkg/logger"
	pkgmw "github.com/suteetoe/thing-service/pkg/middleware"
	"github.com/suteetoe/thing-service/prometheus"
	"go.uber.org/zap"
)

// RegisterRequest is the body of POST /api/auth/register
type RegisterRequest struct {
	Email                string  `json:"email"`
	Password             string  `json:"password"`
	PasswordConfirmation *string `json:"password_confirmation"`
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthHandler issues API tokens
type AuthHandler struct {
	users   repository.UserRepository
	jwt     *jwtutil.JWTUtil
	metrics *prometheus.Metrics
}

// NewAuthHandler creates the JSON account handler
func NewAuthHandler(users repository.UserRepository, jwt *jwtutil.JWTUtil, metrics *prometheus.Metrics) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwt, metrics: metrics}
}

// Register creates an account and returns a token for it
func (h *AuthHandler) Register(c echo.Context) error {
	log := logger.FromEcho(c)

	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse register request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	// API clients may skip the confirmation
	confirmation := req.Password
	if req.PasswordConfirmation != nil {
		confirmation = *req.PasswordConfirmation
	}

	user, err := model.NewUser(req.Email, req.Password, confirmation)
	if err == nil {
		err = h.users.Create(c.Request().Context(), user)
	}
	if err != nil {
		if verrs, ok := model.AsValidationErrors(err); ok {
			log.Info("Registration rejected", zap.Strings("errors", verrs.FullMessages()))
			return c.JSON(http.StatusUnprocessableEntity, validationBody(verrs))
		}
		log.Error("Failed to register user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	token, err := h.jwt.GenerateToken(user.Email, user.ID)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("User registered", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusCreated, echo.Map{
		"token": token,
		"user":  user,
	})
}

// Login exchanges credentials for a token
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromEcho(c)

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		h.metrics.RecordAuthAttempt("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		log.Warn("Login request incomplete", zap.Error(err))
		h.metrics.RecordAuthAttempt("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	user, err := h.users.FindByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Error("Failed to look up user", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
		}
		log.Warn("User not found", zap.String("email", model.NormalizeEmail(req.Email)))
		h.metrics.RecordAuthAttempt("user_not_found")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if !user.Authenticate(req.Password) {
		log.Warn("Invalid password", zap.Uint("user_id", user.ID))
		h.metrics.RecordAuthAttempt("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	token, err := h.jwt.GenerateToken(user.Email, user.ID)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	h.metrics.RecordAuthAttempt("success")
	log.Info("User logged in", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{
		"token":      token,
		"expires_in": int(h.jwt.TTL().Seconds()),
		"user":       user,
	})
}

// Me returns the account behind the bearer token
func (h *AuthHandler) Me(c echo.Context) error {
	log := logger.FromEcho(c)

	claims, ok := pkgmw.ClaimsFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	user, err := h.users.Find(c.Request().Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		log.Error("Failed to load user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load user"})
	}

	return c.JSON(http.StatusOK, echo.Map{"user": user})
}
