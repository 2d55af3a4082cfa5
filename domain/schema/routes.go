package schema

import (
	"github.com/labstack/echo/v4"

	"github.com/emergent-company/erm/pkg/auth"
)

// RegisterRoutes registers the schema routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/schema")
	g.Use(authMiddleware.RequireIdentity())

	g.GET("", h.GetSchema)
	g.PUT("", h.UpsertSchema)
	g.PUT("/force", h.ForceUpsertSchema)
	g.GET("/json-schema", h.GetJSONSchema)
}
