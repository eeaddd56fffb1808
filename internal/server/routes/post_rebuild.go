package routes

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/worklens/backend/internal/queue"
	"github.com/worklens/backend/internal/server/middleware"
	"github.com/worklens/backend/pkg/logger"
)

// RebuildGraphHandler queues a full graph rebuild for one tenant. The
// rebuild itself runs in the worker.
func RebuildGraphHandler(c echo.Context) error {
	type rebuildBody struct {
		TenantID string `json:"tenant_id" validate:"required"`
	}

	type rebuildResponse struct {
		Message string `json:"message"`
	}

	data := new(rebuildBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, rebuildResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, rebuildResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App

	msg, err := json.Marshal(queue.RebuildMsg{TenantID: data.TenantID})
	if err == nil {
		err = app.Publish(queue.RebuildQueue, msg)
	}
	if err != nil {
		logger.Error("Failed to queue rebuild", "tenant", data.TenantID, "err", err)
		return c.JSON(http.StatusInternalServerError, rebuildResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, rebuildResponse{
		Message: "Rebuild queued",
	})
}
