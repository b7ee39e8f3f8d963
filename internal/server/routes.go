package server

import (
	"docgraph/internal/server/middleware"
	"docgraph/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Document routes
	apiRoutes.GET("/documents", routes.GetDocumentsHandler)
	apiRoutes.GET("/documents/:id", routes.GetDocumentHandler)
	apiRoutes.POST("/documents", routes.UploadDocumentsHandler, middleware.RequirePermission("document.create"))
	apiRoutes.DELETE("/documents/:id", routes.DeleteDocumentHandler, middleware.RequirePermission("document.delete"))
	apiRoutes.GET("/documents/:id/related", routes.GetRelatedDocumentsHandler)

	// Chat routes
	apiRoutes.POST("/chat", routes.ChatHandler, middleware.RequirePermission("chat.query"))
}
