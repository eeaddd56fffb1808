package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/worklens/backend/internal/server/middleware"
	"github.com/worklens/backend/pkg/logger"
)

// ChatHandler answers one user question from the tenant's knowledge graph.
func ChatHandler(c echo.Context) error {
	type chatBody struct {
		TenantID string `json:"tenant_id" validate:"required"`
		Message  string `json:"message" validate:"required"`
	}

	type chatResponse struct {
		Message string `json:"message,omitempty"`
		Answer  string `json:"answer,omitempty"`
	}

	data := new(chatBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, chatResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, chatResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App

	answer, err := app.Graph.Answer(c.Request().Context(), data.TenantID, data.Message)
	if err != nil {
		logger.Error("Failed to answer question", "tenant", data.TenantID, "err", err)
		return c.JSON(http.StatusInternalServerError, chatResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, chatResponse{
		Answer: answer,
	})
}
