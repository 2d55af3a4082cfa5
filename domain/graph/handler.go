package graph

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/emergent-company/erm/domain/policy"
	"github.com/emergent-company/erm/domain/schema"
	"github.com/emergent-company/erm/pkg/apperror"
	"github.com/emergent-company/erm/pkg/auth"
)

// filterPrefix marks property filter query parameters: ?prop.name=Alice
const filterPrefix = "prop."

// Handler handles graph HTTP requests.
type Handler struct {
	svc *Service
}

// NewHandler creates a new graph handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func currentActor(c echo.Context) (policy.Actor, error) {
	id := auth.GetIdentity(c)
	if id == nil {
		return policy.Actor{}, apperror.ErrUnauthorized
	}
	return policy.ActorFromIdentity(id), nil
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	return nil
}

func intParam(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.NewBadRequest(name + " must be an integer")
	}
	return n, nil
}

// filterValue reads a filter literal: JSON scalars keep their type,
// anything else is a string.
func filterValue(raw string) schema.Value {
	var v schema.Value
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return schema.String(raw)
}

func data(c echo.Context, status int, v any) error {
	return c.JSON(status, map[string]any{"data": v})
}

// CreateEntity creates an entity.
// POST /api/graph/entities
func (h *Handler) CreateEntity(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req CreateEntityRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Type == "" {
		return apperror.ErrBadRequest.WithMessage("type is required")
	}

	e, err := h.svc.CreateEntity(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, e)
}

// ListEntities lists entities.
// GET /api/graph/entities?type=Person&prop.name=Alice&limit=50
func (h *Handler) ListEntities(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	limit, err := intParam(c, "limit", 0)
	if err != nil {
		return err
	}

	params := ListParams{Type: c.QueryParam("type"), Limit: limit, Filters: schema.Properties{}}
	for key, values := range c.QueryParams() {
		if !strings.HasPrefix(key, filterPrefix) || len(values) == 0 {
			continue
		}
		params.Filters[strings.TrimPrefix(key, filterPrefix)] = filterValue(values[0])
	}

	entities, err := h.svc.ListEntities(c.Request().Context(), actor, params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data": entities,
		"meta": map[string]any{"count": len(entities)},
	})
}

// GetEntity returns an entity.
// GET /api/graph/entities/:id
func (h *Handler) GetEntity(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	e, err := h.svc.GetEntity(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, e)
}

// PatchEntity merges properties into an entity.
// PATCH /api/graph/entities/:id
func (h *Handler) PatchEntity(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req PatchEntityRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	e, err := h.svc.UpdateEntity(c.Request().Context(), actor, c.Param("id"), req.Properties)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, e)
}

// DeleteEntity soft-deletes an entity.
// DELETE /api/graph/entities/:id
func (h *Handler) DeleteEntity(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteEntity(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// GetNeighbors returns directly connected entities.
// GET /api/graph/entities/:id/neighbors?edge_type=KNOWS&direction=out
func (h *Handler) GetNeighbors(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	sub, meta, err := h.svc.GetNeighbors(c.Request().Context(), actor, c.Param("id"),
		c.QueryParam("edge_type"), c.QueryParam("direction"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"data": sub, "meta": meta})
}

// Traverse runs a bounded traversal.
// GET /api/graph/entities/:id/traverse?depth=2&edge_type=KNOWS&direction=both
func (h *Handler) Traverse(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	depth, err := intParam(c, "depth", 1)
	if err != nil {
		return err
	}
	sub, meta, err := h.svc.Traverse(c.Request().Context(), actor, c.Param("id"), depth,
		c.QueryParam("edge_type"), c.QueryParam("direction"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"data": sub, "meta": meta})
}

// FindPaths returns simple paths between two entities.
// GET /api/graph/paths?source_id=..&target_id=..&max_depth=3
func (h *Handler) FindPaths(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	source, target := c.QueryParam("source_id"), c.QueryParam("target_id")
	if source == "" || target == "" {
		return apperror.ErrBadRequest.WithMessage("source_id and target_id are required")
	}
	maxDepth, err := intParam(c, "max_depth", 3)
	if err != nil {
		return err
	}

	paths, meta, err := h.svc.FindPaths(c.Request().Context(), actor, source, target, maxDepth,
		c.QueryParam("edge_type"), c.QueryParam("direction"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"data": paths, "meta": meta})
}

// CreateEdge creates an edge.
// POST /api/graph/edges
func (h *Handler) CreateEdge(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req CreateEdgeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Type == "" {
		return apperror.ErrBadRequest.WithMessage("type is required")
	}

	e, err := h.svc.CreateEdge(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, e)
}

// GetEdge returns an edge.
// GET /api/graph/edges/:id
func (h *Handler) GetEdge(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	e, err := h.svc.GetEdge(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, e)
}

// PatchEdge merges properties into an edge.
// PATCH /api/graph/edges/:id
func (h *Handler) PatchEdge(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req PatchEdgeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	e, err := h.svc.UpdateEdge(c.Request().Context(), actor, c.Param("id"), req.Properties)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, e)
}

// DeleteEdge soft-deletes an edge.
// DELETE /api/graph/edges/:id
func (h *Handler) DeleteEdge(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteEdge(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// BulkCreateEntities creates entities all-or-nothing.
// POST /api/graph/entities/bulk
func (h *Handler) BulkCreateEntities(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req BulkCreateEntitiesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.BulkCreateEntities(c.Request().Context(), actor, req.Items)
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, res)
}

// BulkUpdateEntities patches entities all-or-nothing.
// PATCH /api/graph/entities/bulk
func (h *Handler) BulkUpdateEntities(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req BulkUpdateEntitiesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.BulkUpdateEntities(c.Request().Context(), actor, req.Items)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, res)
}

// BulkDeleteEntities soft-deletes entities all-or-nothing.
// POST /api/graph/entities/bulk-delete
func (h *Handler) BulkDeleteEntities(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req BulkDeleteEntitiesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.BulkDeleteEntities(c.Request().Context(), actor, req.IDs)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, res)
}

// BulkCreateEdges creates edges all-or-nothing.
// POST /api/graph/edges/bulk
func (h *Handler) BulkCreateEdges(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req BulkCreateEdgesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.BulkCreateEdges(c.Request().Context(), actor, req.Items)
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, res)
}
