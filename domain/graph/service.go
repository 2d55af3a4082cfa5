package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/emergent-company/erm/domain/policy"
	"github.com/emergent-company/erm/domain/schema"
	"github.com/emergent-company/erm/pkg/apperror"
	"github.com/emergent-company/erm/pkg/logger"
	"github.com/emergent-company/erm/pkg/tracing"
)

// SchemaSource yields the current workspace schema and the checker that
// applies the deployment's strictness policy.
type SchemaSource interface {
	Load(ctx context.Context, workspaceID string) (*schema.Definition, error)
	Checker() schema.Checker
}

// Service orchestrates graph use cases: authorization, schema validation
// and sanitization happen here, before any statement reaches the store.
type Service struct {
	repo    *Repository
	schemas SchemaSource
	limits  policy.TraversalLimits
	conceal bool
	log     *slog.Logger
	now     func() time.Time
}

// NewService creates a new graph service. With conceal set, denials on a
// specific resource are reported as not_found.
func NewService(repo *Repository, schemas SchemaSource, limits policy.TraversalLimits, conceal bool, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		schemas: schemas,
		limits:  limits,
		conceal: conceal,
		log:     log.With(logger.Scope("graph.svc")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) authorize(actor policy.Actor, action policy.Action) error {
	if !actor.Can(action, "") {
		return apperror.NewForbidden(fmt.Sprintf("role %s may not %s", actor.Role, action))
	}
	return nil
}

// authorizeOn gates an action on an existing resource owned by owner.
func (s *Service) authorizeOn(actor policy.Actor, action policy.Action, kind, id, owner string) error {
	if actor.Can(action, owner) {
		return nil
	}
	if s.conceal {
		return apperror.NewNotFound(kind, id)
	}
	return apperror.NewForbidden(fmt.Sprintf("role %s may not %s %s '%s'", actor.Role, action, kind, id))
}

// checkEntity sanitizes the type name, then validates a copy of props
// against def. The returned properties are normalized.
func checkEntity(checker schema.Checker, def *schema.Definition, typeName string, props schema.Properties) (schema.Properties, error) {
	if _, err := policy.SanitizeIdentifier(typeName); err != nil {
		return nil, err
	}
	out := props.Clone()
	if err := checker.Check(def, typeName, out, schema.EntityKind); err != nil {
		return nil, err
	}
	return out, nil
}

func checkEdge(checker schema.Checker, def *schema.Definition, req CreateEdgeRequest) (schema.Properties, error) {
	if req.SourceID == "" || req.TargetID == "" {
		return nil, apperror.NewBadRequest("source_id and target_id are required")
	}
	if _, err := policy.SanitizeIdentifier(req.Type); err != nil {
		return nil, err
	}
	out := req.Properties.Clone()
	if err := checker.Check(def, req.Type, out, schema.EdgeKind); err != nil {
		return nil, err
	}
	if et, _ := def.EdgeType(req.Type); et.NoSelfLoops && req.SourceID == req.TargetID {
		return nil, apperror.ErrValidation.
			WithMessage(fmt.Sprintf("edge type %s does not allow self loops", req.Type)).
			WithDetails(map[string]any{"type": req.Type, "entity_id": req.SourceID})
	}
	return out, nil
}

func endpointError(req CreateEdgeRequest, live map[string]bool) error {
	if !live[req.SourceID] {
		return apperror.ErrSourceNotFound.
			WithMessage(fmt.Sprintf("source entity '%s' not found", req.SourceID)).
			WithDetails(map[string]any{"source_id": req.SourceID})
	}
	if !live[req.TargetID] {
		return apperror.ErrTargetNotFound.
			WithMessage(fmt.Sprintf("target entity '%s' not found", req.TargetID)).
			WithDetails(map[string]any{"target_id": req.TargetID})
	}
	return nil
}

func (s *Service) newEntity(actor policy.Actor, typeName string, props schema.Properties) *Entity {
	now := s.now()
	return &Entity{
		ID:          uuid.NewString(),
		WorkspaceID: actor.WorkspaceID,
		Type:        typeName,
		Properties:  props,
		CreatedBy:   actor.Subject,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *Service) newEdge(actor policy.Actor, req CreateEdgeRequest, props schema.Properties) *Edge {
	now := s.now()
	return &Edge{
		ID:          uuid.NewString(),
		WorkspaceID: actor.WorkspaceID,
		Type:        req.Type,
		SourceID:    req.SourceID,
		TargetID:    req.TargetID,
		Properties:  props,
		CreatedBy:   actor.Subject,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CreateEntity validates and stores a new entity.
func (s *Service) CreateEntity(ctx context.Context, actor policy.Actor, req CreateEntityRequest) (*Entity, error) {
	ctx, span := tracing.Start(ctx, "graph.create_entity",
		tracing.AttrWorkspaceID.String(actor.WorkspaceID),
		tracing.AttrEntityType.String(req.Type),
	)
	defer span.End()

	if err := s.authorize(actor, policy.ActionCreate); err != nil {
		return nil, err
	}
	def, err := s.schemas.Load(ctx, actor.WorkspaceID)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	props, err := checkEntity(s.schemas.Checker(), def, req.Type, req.Properties)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.InsertEntity(ctx, s.newEntity(actor, req.Type, props))
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	s.log.Debug("entity created",
		slog.String("workspace_id", actor.WorkspaceID),
		slog.String("entity_id", created.ID),
		slog.String("type", created.Type),
	)
	return created, nil
}

// GetEntity returns a live entity.
func (s *Service) GetEntity(ctx context.Context, actor policy.Actor, id string) (*Entity, error) {
	if err := s.authorize(actor, policy.ActionRead); err != nil {
		return nil, err
	}
	return s.repo.FindEntity(ctx, actor.WorkspaceID, id)
}

// ListEntities lists live entities, optionally of one type and matching
// scalar property filters.
func (s *Service) ListEntities(ctx context.Context, actor policy.Actor, params ListParams) ([]*Entity, error) {
	if err := s.authorize(actor, policy.ActionRead); err != nil {
		return nil, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	filters := make(map[string]any, len(params.Filters))
	for k, v := range params.Filters {
		native, ok := nativeScalar(v)
		if !ok {
			return nil, apperror.NewBadRequest(fmt.Sprintf("filter %s must be a scalar value", k))
		}
		filters[k] = native
	}

	return s.repo.FindEntities(ctx, ListQuery{
		WorkspaceID: actor.WorkspaceID,
		Type:        params.Type,
		Filters:     filters,
		Limit:       limit,
	})
}

// UpdateEntity merges patch into the stored properties and re-validates
// the merged set against the current schema.
func (s *Service) UpdateEntity(ctx context.Context, actor policy.Actor, id string, patch schema.Properties) (*Entity, error) {
	ctx, span := tracing.Start(ctx, "graph.update_entity", tracing.AttrWorkspaceID.String(actor.WorkspaceID))
	defer span.End()

	if err := s.authorize(actor, policy.ActionRead); err != nil {
		return nil, err
	}
	current, err := s.repo.FindEntity(ctx, actor.WorkspaceID, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOn(actor, policy.ActionUpdate, "entity", id, current.CreatedBy); err != nil {
		return nil, err
	}

	def, err := s.schemas.Load(ctx, actor.WorkspaceID)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	updated, err := s.mergedEntity(def, current, patch)
	if err != nil {
		return nil, err
	}
	out, err := s.repo.ReplaceEntity(ctx, updated)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	return out, nil
}

func (s *Service) mergedEntity(def *schema.Definition, current *Entity, patch schema.Properties) (*Entity, error) {
	props, err := checkEntity(s.schemas.Checker(), def, current.Type, current.Properties.Merge(patch))
	if err != nil {
		return nil, err
	}
	next := *current
	next.Properties = props
	next.UpdatedAt = s.now()
	return &next, nil
}

// DeleteEntity soft-deletes an entity together with its edges.
func (s *Service) DeleteEntity(ctx context.Context, actor policy.Actor, id string) error {
	if err := s.authorize(actor, policy.ActionRead); err != nil {
		return err
	}
	current, err := s.repo.FindEntity(ctx, actor.WorkspaceID, id)
	if err != nil {
		return err
	}
	if err := s.authorizeOn(actor, policy.ActionDelete, "entity", id, current.CreatedBy); err != nil {
		return err
	}
	if err := s.repo.TombstoneEntity(ctx, actor.WorkspaceID, id, s.now()); err != nil {
		return err
	}
	s.log.Info("entity deleted",
		slog.String("workspace_id", actor.WorkspaceID),
		slog.String("entity_id", id),
	)
	return nil
}

// CreateEdge validates the edge against the schema, checks that both
// endpoints are live entities of the workspace and stores it.
func (s *Service) CreateEdge(ctx context.Context, actor policy.Actor, req CreateEdgeRequest) (*Edge, error) {
	ctx, span := tracing.Start(ctx, "graph.create_edge",
		tracing.AttrWorkspaceID.String(actor.WorkspaceID),
		tracing.AttrEdgeType.String(req.Type),
	)
	defer span.End()

	if err := s.authorize(actor, policy.ActionCreate); err != nil {
		return nil, err
	}
	def, err := s.schemas.Load(ctx, actor.WorkspaceID)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	props, err := checkEdge(s.schemas.Checker(), def, req)
	if err != nil {
		return nil, err
	}

	live, err := s.repo.LiveEntityIDs(ctx, actor.WorkspaceID, []string{req.SourceID, req.TargetID})
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	if err := endpointError(req, live); err != nil {
		return nil, err
	}

	created, err := s.repo.InsertEdge(ctx, s.newEdge(actor, req, props))
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	return created, nil
}

// GetEdge returns a live edge.
func (s *Service) GetEdge(ctx context.Context, actor policy.Actor, id string) (*Edge, error) {
	if err := s.authorize(actor, policy.ActionRead); err != nil {
		return nil, err
	}
	return s.repo.FindEdge(ctx, actor.WorkspaceID, id)
}

// UpdateEdge merges patch into the edge properties and re-validates.
func (s *Service) UpdateEdge(ctx context.Context, actor policy.Actor, id string, patch schema.Properties) (*Edge, error) {
	if err := s.authorize(actor, policy.ActionRead); err != nil {
		return nil, err
	}
	current, err := s.repo.FindEdge(ctx, actor.WorkspaceID, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOn(actor, policy.ActionUpdate, "edge", id, current.CreatedBy); err != nil {
		return nil, err
	}

	def, err := s.schemas.Load(ctx, actor.WorkspaceID)
	if err != nil {
		return nil, err
	}
	props, err := checkEdge(s.schemas.Checker(), def, CreateEdgeRequest{
		Type:       current.Type,
		SourceID:   current.SourceID,
		TargetID:   current.TargetID,
		Properties: current.Properties.Merge(patch),
	})
	if err != nil {
		return nil, err
	}

	next := *current
	next.Properties = props
	next.UpdatedAt = s.now()
	return s.repo.ReplaceEdge(ctx, &next)
}

// DeleteEdge soft-deletes an edge.
func (s *Service) DeleteEdge(ctx context.Context, actor policy.Actor, id string) error {
	if err := s.authorize(actor, policy.ActionRead); err != nil {
		return err
	}
	current, err := s.repo.FindEdge(ctx, actor.WorkspaceID, id)
	if err != nil {
		return err
	}
	if err := s.authorizeOn(actor, policy.ActionDelete, "edge", id, current.CreatedBy); err != nil {
		return err
	}
	return s.repo.TombstoneEdge(ctx, actor.WorkspaceID, id, s.now())
}

// GetNeighbors returns the entities directly connected to id.
func (s *Service) GetNeighbors(ctx context.Context, actor policy.Actor, id, edgeType, direction string) (*Subgraph, *NeighborsMeta, error) {
	if err := s.authorize(actor, policy.ActionRead); err != nil {
		return nil, nil, err
	}
	q, err := s.limits.NormalizeNeighbors(edgeType, direction)
	if err != nil {
		return nil, nil, err
	}
	sub, err := s.repo.Neighbors(ctx, actor.WorkspaceID, id, q)
	if err != nil {
		return nil, nil, err
	}
	return sub, &NeighborsMeta{EntityID: id, EdgeType: q.EdgeType, Direction: string(q.Direction)}, nil
}

// Traverse runs a bounded breadth-first walk from startID.
func (s *Service) Traverse(ctx context.Context, actor policy.Actor, startID string, depth int, edgeType, direction string) (*Subgraph, *TraversalMeta, error) {
	ctx, span := tracing.Start(ctx, "graph.traverse", tracing.AttrWorkspaceID.String(actor.WorkspaceID))
	defer span.End()

	if err := s.authorize(actor, policy.ActionRead); err != nil {
		return nil, nil, err
	}
	q, err := s.limits.NormalizeTraversal(depth, edgeType, direction)
	if err != nil {
		return nil, nil, err
	}
	sub, err := s.repo.Traverse(ctx, actor.WorkspaceID, startID, q)
	if err != nil {
		return nil, nil, tracing.RecordError(span, err)
	}
	return sub, &TraversalMeta{
		StartID:   startID,
		Depth:     q.Depth,
		EdgeType:  q.EdgeType,
		Direction: string(q.Direction),
		NodeCount: len(sub.Nodes),
		EdgeCount: len(sub.Edges),
	}, nil
}

// FindPaths returns the simple paths between two entities.
func (s *Service) FindPaths(ctx context.Context, actor policy.Actor, sourceID, targetID string, maxDepth int, edgeType, direction string) ([]Path, *PathsMeta, error) {
	ctx, span := tracing.Start(ctx, "graph.find_paths", tracing.AttrWorkspaceID.String(actor.WorkspaceID))
	defer span.End()

	if err := s.authorize(actor, policy.ActionRead); err != nil {
		return nil, nil, err
	}
	q, err := s.limits.NormalizePaths(maxDepth, edgeType, direction)
	if err != nil {
		return nil, nil, err
	}
	paths, truncated, err := s.repo.FindPaths(ctx, actor.WorkspaceID, sourceID, targetID, q)
	if err != nil {
		return nil, nil, tracing.RecordError(span, err)
	}
	return paths, &PathsMeta{
		SourceID:  sourceID,
		TargetID:  targetID,
		MaxDepth:  q.MaxDepth,
		Count:     len(paths),
		Truncated: truncated,
	}, nil
}
