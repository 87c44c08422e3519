package server

import (
	"github.com/givance/webserver-sub009/internal/server/middleware"
	"github.com/givance/webserver-sub009/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	orgRoutes := e.Group("/api/organizations/:org_id", middleware.UserMiddleware)

	// Analysis routes
	orgRoutes.POST("/analysis", routes.AnalyzeDonorsHandler, middleware.RequireUser)

	// Journey routes
	orgRoutes.GET("/journey", routes.GetJourneyHandler)
	orgRoutes.PUT("/journey", routes.PutJourneyHandler)
	orgRoutes.POST("/journey/generate", routes.GenerateJourneyHandler)
}
