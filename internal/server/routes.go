package server

import (
	"github.com/labstack/echo/v4"

	"github.com/worklens/backend/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Document routes
	apiRoutes.POST("/documents", routes.CreateDocumentHandler)

	// Graph routes
	apiRoutes.POST("/graph/rebuild", routes.RebuildGraphHandler)

	// Chat routes
	apiRoutes.POST("/chat", routes.ChatHandler)
}
