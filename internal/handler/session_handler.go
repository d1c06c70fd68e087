package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/thing-service/internal/middleware"
	"github.com/suteetoe/thing-service/internal/model"
	"github.com/suteetoe/thing-service/internal/repository"
	"github.com/suteetoe/thing-service/internal/view"
	"github.com/suteetoe/thing-service/pkg/logger"
	"github.com/suteetoe/thing-service/prometheus"
	"go.uber.org/zap"
)

const invalidCredentialsMessage = "Invalid Email or password."

// SessionHandler serves the sign up, sign in and sign out pages
type SessionHandler struct {
	users   repository.UserRepository
	session *middleware.Session
	metrics *prometheus.Metrics
}

// NewSessionHandler creates the handler for the account pages
func NewSessionHandler(users repository.UserRepository, session *middleware.Session, metrics *prometheus.Metrics) *SessionHandler {
	return &SessionHandler{users: users, session: session, metrics: metrics}
}

// NewRegistration displays the sign up form
func (h *SessionHandler) NewRegistration(c echo.Context) error {
	return c.Render(http.StatusOK, "users/sign_up", view.NewUserForm("", nil))
}

// Register creates an account and signs it in
func (h *SessionHandler) Register(c echo.Context) error {
	log := logger.FromEcho(c)

	email, _ := formValue(c, "user", "email")
	password, _ := formValue(c, "user", "password")
	confirmation, _ := formValue(c, "user", "password_confirmation")

	user, err := model.NewUser(email, password, confirmation)
	if err == nil {
		err = h.users.Create(c.Request().Context(), user)
	}
	if err != nil {
		if verrs, ok := model.AsValidationErrors(err); ok {
			log.Info("Sign up rejected", zap.Strings("errors", verrs.FullMessages()))
			return c.Render(http.StatusUnprocessableEntity, "users/sign_up", view.NewUserForm(email, verrs))
		}
		return renderServerError(c, err)
	}

	if err := h.session.SignIn(c, user.Email, user.ID); err != nil {
		return renderServerError(c, err)
	}

	log.Info("User signed up", zap.Uint("user_id", user.ID))
	view.SetFlash(c, view.Flash{Notice: "Welcome! You have signed up successfully."})
	return c.Redirect(http.StatusFound, "/")
}

// NewSession displays the sign in form
func (h *SessionHandler) NewSession(c echo.Context) error {
	return c.Render(http.StatusOK, "users/sign_in", view.NewUserForm("", nil))
}

// SignIn checks the credentials and starts a session
func (h *SessionHandler) SignIn(c echo.Context) error {
	log := logger.FromEcho(c)

	email, _ := formValue(c, "user", "email")
	password, _ := formValue(c, "user", "password")

	user, err := h.users.FindByEmail(c.Request().Context(), email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return renderServerError(c, err)
	}
	if user == nil || !user.Authenticate(password) {
		log.Warn("Sign in failed", zap.String("email", model.NormalizeEmail(email)))
		h.metrics.RecordAuthAttempt("invalid_credentials")
		view.FlashNow(c, view.Flash{Alert: invalidCredentialsMessage})
		return c.Render(http.StatusUnprocessableEntity, "users/sign_in", view.NewUserForm(email, nil))
	}

	if err := h.session.SignIn(c, user.Email, user.ID); err != nil {
		return renderServerError(c, err)
	}

	h.metrics.RecordAuthAttempt("success")
	log.Info("User signed in", zap.Uint("user_id", user.ID))
	view.SetFlash(c, view.Flash{Notice: "Signed in successfully."})
	return c.Redirect(http.StatusFound, "/")
}

// SignOut ends the session
func (h *SessionHandler) SignOut(c echo.Context) error {
	h.session.Clear(c)
	logger.FromEcho(c).Info("User signed out")
	view.SetFlash(c, view.Flash{Notice: "Signed out successfully."})
	return c.Redirect(http.StatusFound, "/")
}
