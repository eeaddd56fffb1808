package routes

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/worklens/backend/internal/queue"
	"github.com/worklens/backend/internal/server/middleware"
	"github.com/worklens/backend/pkg/common"
	"github.com/worklens/backend/pkg/logger"
)

// CreateDocumentHandler stores one source document and queues its graph
// update.
func CreateDocumentHandler(c echo.Context) error {
	type createDocumentBody struct {
		TenantID string `json:"tenant_id" validate:"required"`
		Title    string `json:"title" validate:"required"`
		Content  string `json:"content" validate:"required"`
		DocType  string `json:"doc_type" validate:"required,oneof=report procedure"`
		ID       string `json:"id"`
	}

	type createDocumentResponse struct {
		Message string `json:"message"`
		ID      string `json:"id,omitempty"`
	}

	data := new(createDocumentBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createDocumentResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createDocumentResponse{
			Message: "Invalid request body",
		})
	}

	if data.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			logger.Error("Failed to generate document id", "err", err)
			return c.JSON(http.StatusInternalServerError, createDocumentResponse{
				Message: "Internal server error",
			})
		}
		data.ID = id
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	err := app.Graph.SaveDocument(ctx, data.TenantID, data.DocType, common.SourceDocument{
		ID:      data.ID,
		Title:   data.Title,
		Content: data.Content,
	})
	if err != nil {
		logger.Error("Failed to save document", "tenant", data.TenantID, "err", err)
		return c.JSON(http.StatusInternalServerError, createDocumentResponse{
			Message: "Internal server error",
		})
	}

	msg, err := json.Marshal(queue.UpdateMsg{
		TenantID: data.TenantID,
		DocID:    data.ID,
		DocType:  data.DocType,
	})
	if err == nil {
		err = app.Publish(queue.UpdateQueue, msg)
	}
	if err != nil {
		logger.Error("Failed to queue graph update", "tenant", data.TenantID, "doc", data.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, createDocumentResponse{
			Message: "Document stored but graph update could not be queued",
			ID:      data.ID,
		})
	}

	return c.JSON(http.StatusCreated, createDocumentResponse{
		Message: "Document stored",
		ID:      data.ID,
	})
}
