package schema

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/emergent-company/erm/domain/policy"
	"github.com/emergent-company/erm/pkg/apperror"
	"github.com/emergent-company/erm/pkg/auth"
)

// Handler handles HTTP requests for the workspace schema.
type Handler struct {
	svc *Service
}

// NewHandler creates a new schema handler.
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

// UpsertRequest is the checked upsert body. Version is required; an
// unchecked write goes through PUT /api/schema/force instead.
type UpsertRequest struct {
	EntityTypes []EntityType `json:"entity_types"`
	EdgeTypes   []EdgeType   `json:"edge_types"`
	Version     *int         `json:"version"`
}

// ForceUpsertRequest is the unchecked upsert body.
type ForceUpsertRequest struct {
	EntityTypes []EntityType `json:"entity_types"`
	EdgeTypes   []EdgeType   `json:"edge_types"`
}

// GetSchema returns the workspace schema.
// GET /api/schema
func (h *Handler) GetSchema(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	def, err := h.svc.Get(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"data": def})
}

// UpsertSchema performs the version-checked upsert.
// PUT /api/schema
func (h *Handler) UpsertSchema(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req UpsertRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	if req.Version == nil {
		return apperror.ErrBadRequest.WithMessage("version is required (0 to create); use PUT /api/schema/force for an unchecked write")
	}

	def, err := h.svc.Upsert(c.Request().Context(), actor, Input{
		EntityTypes: req.EntityTypes,
		EdgeTypes:   req.EdgeTypes,
	}, *req.Version)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"data": def})
}

// ForceUpsertSchema writes the schema without a version check.
// PUT /api/schema/force
func (h *Handler) ForceUpsertSchema(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req ForceUpsertRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	def, err := h.svc.ForceUpsert(c.Request().Context(), actor, Input{
		EntityTypes: req.EntityTypes,
		EdgeTypes:   req.EdgeTypes,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"data": def})
}

// GetJSONSchema exports every type as a JSON Schema document.
// GET /api/schema/json-schema
func (h *Handler) GetJSONSchema(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	out, err := h.svc.ExportJSONSchema(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"data": out})
}
