package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/thing-service/pkg/database"
	"github.com/suteetoe/thing-service/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HealthHandler reports liveness and, on request, database reachability
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler creates the health check handler
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthCheck handles the health check endpoint
func (h *HealthHandler) HealthCheck(c echo.Context) error {
	log := logger.FromEcho(c)
	log.Debug("Health check requested")

	response := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}

	// ?check=db also pings the database
	if c.QueryParam("check") == "db" {
		if err := database.Ping(h.db); err != nil {
			log.Error("Database ping error", zap.Error(err))
			response["status"] = "error"
			response["db_status"] = "error"
			response["db_error"] = "Failed to ping database"
			return c.JSON(http.StatusInternalServerError, response)
		}
		response["db_status"] = "ok"
	}

	return c.JSON(http.StatusOK, response)
}
