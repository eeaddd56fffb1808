package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/worklens/backend/pkg/graph"
	"github.com/worklens/backend/pkg/store"
)

// App bundles the shared dependencies of the request handlers. Publish
// abstracts the queue channel so handlers stay testable.
type App struct {
	Store   store.DocumentStore
	Graph   *graph.Service
	Publish func(queueName string, data []byte) error
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{c, app})
		}
	}
}
