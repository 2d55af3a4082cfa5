package graph

import (
	"github.com/labstack/echo/v4"

	"github.com/emergent-company/erm/pkg/auth"
)

// RegisterRoutes registers all graph routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/graph")
	g.Use(authMiddleware.RequireIdentity())

	entities := g.Group("/entities")
	entities.GET("", h.ListEntities)
	entities.POST("", h.CreateEntity)
	entities.POST("/bulk", h.BulkCreateEntities)
	entities.PATCH("/bulk", h.BulkUpdateEntities)
	entities.POST("/bulk-delete", h.BulkDeleteEntities)
	entities.GET("/:id", h.GetEntity)
	entities.PATCH("/:id", h.PatchEntity)
	entities.DELETE("/:id", h.DeleteEntity)
	entities.GET("/:id/neighbors", h.GetNeighbors)
	entities.GET("/:id/traverse", h.Traverse)

	edges := g.Group("/edges")
	edges.POST("", h.CreateEdge)
	edges.POST("/bulk", h.BulkCreateEdges)
	edges.GET("/:id", h.GetEdge)
	edges.PATCH("/:id", h.PatchEdge)
	edges.DELETE("/:id", h.DeleteEdge)

	g.GET("/paths", h.FindPaths)
}
