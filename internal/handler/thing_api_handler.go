package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/thing-service/internal/model"
	"github.com/suteetoe/thing-service/internal/repository"
	"github.com/suteetoe/thing-service/pkg/logger"
	"go.uber.org/zap"
)

// ThingRequest is the JSON body of create and update. Attributes may be sent
// flat or wrapped in "thing".
type ThingRequest struct {
	Thing *model.ThingAttributes `json:"thing"`
	model.ThingAttributes
}

func (r ThingRequest) attributes() model.ThingAttributes {
	if r.Thing != nil {
		return *r.Thing
	}
	return r.ThingAttributes
}

// ThingAPIHandler serves the things resource as JSON
type ThingAPIHandler struct {
	things repository.ThingRepository
}

// NewThingAPIHandler creates the JSON things handler
func NewThingAPIHandler(things repository.ThingRepository) *ThingAPIHandler {
	return &ThingAPIHandler{things: things}
}

// List returns every thing
func (h *ThingAPIHandler) List(c echo.Context) error {
	log := logger.FromEcho(c)

	things, err := h.things.All(c.Request().Context())
	if err != nil {
		log.Error("Failed to list things", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve things"})
	}

	log.Info("Things retrieved successfully", zap.Int("count", len(things)))
	return c.JSON(http.StatusOK, things)
}

// Get returns one thing
func (h *ThingAPIHandler) Get(c echo.Context) error {
	log := logger.FromEcho(c)

	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Thing not found"})
	}

	thing, err := h.things.Find(c.Request().Context(), id)
	if err != nil {
		return h.failed(c, err)
	}

	log.Info("Thing retrieved successfully", zap.Uint("thing_id", id))
	return c.JSON(http.StatusOK, thing)
}

// Create saves a new thing
func (h *ThingAPIHandler) Create(c echo.Context) error {
	log := logger.FromEcho(c)

	var req ThingRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	thing := model.NewThing(req.attributes())
	if err := h.things.Create(c.Request().Context(), thing); err != nil {
		return h.failed(c, err)
	}

	log.Info("Thing created successfully",
		zap.Uint("thing_id", thing.ID),
		zap.String("name", thing.Name))
	return c.JSON(http.StatusCreated, thing)
}

// Update changes the attributes present in the body
func (h *ThingAPIHandler) Update(c echo.Context) error {
	log := logger.FromEcho(c)

	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Thing not found"})
	}

	var req ThingRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	thing, err := h.things.Update(c.Request().Context(), id, req.attributes())
	if err != nil {
		return h.failed(c, err)
	}

	log.Info("Thing updated successfully", zap.Uint("thing_id", id))
	return c.JSON(http.StatusOK, thing)
}

// Delete removes a thing
func (h *ThingAPIHandler) Delete(c echo.Context) error {
	log := logger.FromEcho(c)

	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Thing not found"})
	}

	if err := h.things.Delete(c.Request().Context(), id); err != nil {
		return h.failed(c, err)
	}

	log.Info("Thing deleted successfully", zap.Uint("thing_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Thing deleted successfully"})
}

func (h *ThingAPIHandler) failed(c echo.Context, err error) error {
	log := logger.FromEcho(c)

	if verrs, ok := model.AsValidationErrors(err); ok {
		log.Info("Thing rejected", zap.Strings("errors", verrs.FullMessages()))
		return c.JSON(http.StatusUnprocessableEntity, validationBody(verrs))
	}
	if errors.Is(err, repository.ErrNotFound) {
		log.Info("Thing not found", zap.String("thing_id", c.Param("id")))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Thing not found"})
	}

	log.Error("Thing request failed", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal server error"})
}

func validationBody(verrs *model.ValidationErrors) echo.Map {
	return echo.Map{
		"error":  "Validation failed",
		"errors": verrs.FullMessages(),
		"fields": verrs.Map(),
	}
}
