// Package handler holds the HTTP handlers of the HTML pages and the JSON API.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/suteetoe/thing-service/internal/model"
	"github.com/suteetoe/thing-service/internal/view"
	"github.com/suteetoe/thing-service/pkg/logger"
	"go.uber.org/zap"
)

// APIPrefix is where the JSON endpoints live
const APIPrefix = "/api"

// RequestValidator adapts validator/v10 to echo.Validator
type RequestValidator struct {
	validator *validator.Validate
}

// NewRequestValidator uses the same validator instance as the models
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validator: model.Validator()}
}

func (v *RequestValidator) Validate(i interface{}) error {
	return v.validator.Struct(i)
}

// parseID reads the :id path parameter. Anything but a positive integer is reported as not found.
func parseID(c echo.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// formValue returns the value of a form field posted as either "field" or
// "model[field]", and whether it was present at all.
func formValue(c echo.Context, modelName, field string) (string, bool) {
	params, err := c.FormParams()
	if err != nil {
		return "", false
	}
	for _, key := range []string{modelName + "[" + field + "]", field} {
		if values, ok := params[key]; ok && len(values) > 0 {
			return values[0], true
		}
	}
	return "", false
}

func thingAttributesFromForm(c echo.Context) model.ThingAttributes {
	var attrs model.ThingAttributes
	if name, ok := formValue(c, "thing", "name"); ok {
		attrs.Name = &name
	}
	if description, ok := formValue(c, "thing", "description"); ok {
		attrs.Description = &description
	}
	return attrs
}

func isAPIRequest(c echo.Context) bool {
	path := c.Request().URL.Path
	return path == APIPrefix || strings.HasPrefix(path, APIPrefix+"/")
}

func renderNotFound(c echo.Context) error {
	return c.Render(http.StatusNotFound, "errors/404", view.ErrorPage{Status: http.StatusNotFound})
}

func renderServerError(c echo.Context, err error) error {
	logger.FromEcho(c).Error("Request failed", zap.Error(err))
	return c.Render(http.StatusInternalServerError, "errors/500", view.ErrorPage{Status: http.StatusInternalServerError})
}

// HTTPErrorHandler renders errors that escape the handlers: HTML pages for the
// browser routes, JSON for the API.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}

	log := logger.FromEcho(c)
	if code >= http.StatusInternalServerError {
		log.Error("Unhandled error", zap.Error(err))
	}

	var renderErr error
	switch {
	case c.Request().Method == http.MethodHead:
		renderErr = c.NoContent(code)
	case isAPIRequest(c) || c.Echo().Renderer == nil:
		renderErr = c.JSON(code, echo.Map{"error": message})
	case code == http.StatusNotFound:
		renderErr = renderNotFound(c)
	case code >= http.StatusInternalServerError:
		renderErr = c.Render(code, "errors/500", view.ErrorPage{Status: code})
	default:
		renderErr = c.String(code, message)
	}
	if renderErr != nil {
		log.Error("Failed to render error response", zap.Error(renderErr))
	}
}
