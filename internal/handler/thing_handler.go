package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/thing-service/internal/model"
	"github.com/suteetoe/thing-service/internal/repository"
	"github.com/suteetoe/thing-service/internal/view"
	"github.com/suteetoe/thing-service/pkg/logger"
	"go.uber.org/zap"
)

// ThingHandler serves the HTML pages of the things resource
type ThingHandler struct {
	things repository.ThingRepository
}

// NewThingHandler creates the HTML things handler
func NewThingHandler(things repository.ThingRepository) *ThingHandler {
	return &ThingHandler{things: things}
}

// Index lists every thing
func (h *ThingHandler) Index(c echo.Context) error {
	log := logger.FromEcho(c)

	things, err := h.things.All(c.Request().Context())
	if err != nil {
		return renderServerError(c, err)
	}

	log.Info("Things listed", zap.Int("count", len(things)))
	return c.Render(http.StatusOK, "things/index", view.ThingsIndex{Things: things})
}

// Show displays one thing
func (h *ThingHandler) Show(c echo.Context) error {
	thing, err := h.find(c)
	if err != nil {
		return h.findFailed(c, err)
	}
	return c.Render(http.StatusOK, "things/show", view.ThingPage{Thing: thing})
}

// New displays an empty form
func (h *ThingHandler) New(c echo.Context) error {
	return c.Render(http.StatusOK, "things/new", view.NewThingForm(&model.Thing{}, nil))
}

// Create saves a thing from the posted form and redirects to it
func (h *ThingHandler) Create(c echo.Context) error {
	log := logger.FromEcho(c)

	thing := model.NewThing(thingAttributesFromForm(c))
	log.Info("Thing creation request", zap.String("name", thing.Name))

	if err := h.things.Create(c.Request().Context(), thing); err != nil {
		if verrs, ok := model.AsValidationErrors(err); ok {
			log.Info("Thing rejected", zap.Strings("errors", verrs.FullMessages()))
			return c.Render(http.StatusUnprocessableEntity, "things/new", view.NewThingForm(thing, verrs))
		}
		return renderServerError(c, err)
	}

	log.Info("Thing created", zap.Uint("thing_id", thing.ID))
	view.SetFlash(c, view.Flash{Notice: "Thing was successfully created."})
	return c.Redirect(http.StatusFound, thingPath(thing.ID))
}

// Edit displays the form of an existing thing
func (h *ThingHandler) Edit(c echo.Context) error {
	thing, err := h.find(c)
	if err != nil {
		return h.findFailed(c, err)
	}
	return c.Render(http.StatusOK, "things/edit", view.NewThingForm(thing, nil))
}

// Update saves the posted form over an existing thing
func (h *ThingHandler) Update(c echo.Context) error {
	log := logger.FromEcho(c)

	id, ok := parseID(c)
	if !ok {
		return renderNotFound(c)
	}

	thing, err := h.things.Update(c.Request().Context(), id, thingAttributesFromForm(c))
	if err != nil {
		if verrs, ok := model.AsValidationErrors(err); ok {
			log.Info("Thing update rejected",
				zap.Uint("thing_id", id),
				zap.Strings("errors", verrs.FullMessages()))
			return c.Render(http.StatusUnprocessableEntity, "things/edit", view.NewThingForm(thing, verrs))
		}
		return h.findFailed(c, err)
	}

	log.Info("Thing updated", zap.Uint("thing_id", id))
	view.SetFlash(c, view.Flash{Notice: "Thing was successfully updated."})
	return c.Redirect(http.StatusFound, thingPath(id))
}

// Destroy deletes a thing and returns to the list
func (h *ThingHandler) Destroy(c echo.Context) error {
	log := logger.FromEcho(c)

	id, ok := parseID(c)
	if !ok {
		return renderNotFound(c)
	}

	if err := h.things.Delete(c.Request().Context(), id); err != nil {
		return h.findFailed(c, err)
	}

	log.Info("Thing deleted", zap.Uint("thing_id", id))
	view.SetFlash(c, view.Flash{Notice: "Thing was successfully destroyed."})
	return c.Redirect(http.StatusFound, "/things")
}

func (h *ThingHandler) find(c echo.Context) (*model.Thing, error) {
	id, ok := parseID(c)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return h.things.Find(c.Request().Context(), id)
}

func (h *ThingHandler) findFailed(c echo.Context, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		logger.FromEcho(c).Info("Thing not found", zap.String("thing_id", c.Param("id")))
		return renderNotFound(c)
	}
	return renderServerError(c, err)
}

func thingPath(id uint) string {
	return fmt.Sprintf("/things/%d", id)
}
