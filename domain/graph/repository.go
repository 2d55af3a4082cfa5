package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emergent-company/erm/domain/policy"
	"github.com/emergent-company/erm/internal/graphstore"
	"github.com/emergent-company/erm/pkg/apperror"
	"github.com/emergent-company/erm/pkg/logger"
)

// Repository issues graph statements through the store port and decodes
// the results. It performs no validation or authorization; Service does.
type Repository struct {
	port         graphstore.Port
	log          *slog.Logger
	maxOpenPaths int
}

// NewRepository creates a new graph repository.
func NewRepository(port graphstore.Port, log *slog.Logger) *Repository {
	return &Repository{
		port:         port,
		log:          log.With(logger.Scope("graph.repo")),
		maxOpenPaths: defaultMaxOpenPaths,
	}
}

func (r *Repository) exec(ctx context.Context, st graphstore.Statement) (*graphstore.Result, error) {
	return r.port.Execute(ctx, st.Query, st.Params)
}

func decodeEntity(rec graphstore.Record) (*Entity, error) {
	e, err := entityFromMap(mapField(rec, "n"))
	if err != nil {
		return nil, apperror.NewInternal("decode entity", err)
	}
	return e, nil
}

func decodeEdge(rec graphstore.Record) (*Edge, error) {
	e, err := edgeFromMap(mapField(rec, "r"))
	if err != nil {
		return nil, apperror.NewInternal("decode edge", err)
	}
	return e, nil
}

// InsertEntity stores a new entity.
func (r *Repository) InsertEntity(ctx context.Context, e *Entity) (*Entity, error) {
	st, err := createEntityStmt(e)
	if err != nil {
		return nil, err
	}
	res, err := r.exec(ctx, st)
	if err != nil {
		return nil, err
	}
	return decodeEntity(res.Single())
}

// FindEntity returns a live entity or not_found.
func (r *Repository) FindEntity(ctx context.Context, ws, id string) (*Entity, error) {
	res, err := r.exec(ctx, getEntityStmt(ws, id))
	if err != nil {
		return nil, err
	}
	rec := res.Single()
	if rec == nil {
		return nil, apperror.NewNotFound("entity", id)
	}
	return decodeEntity(rec)
}

// ReplaceEntity overwrites the stored entity with e.
func (r *Repository) ReplaceEntity(ctx context.Context, e *Entity) (*Entity, error) {
	st, err := updateEntityStmt(e)
	if err != nil {
		return nil, err
	}
	res, err := r.exec(ctx, st)
	if err != nil {
		return nil, err
	}
	rec := res.Single()
	if rec == nil {
		return nil, apperror.NewNotFound("entity", e.ID)
	}
	return decodeEntity(rec)
}

// TombstoneEntity soft-deletes the entity and its edges.
func (r *Repository) TombstoneEntity(ctx context.Context, ws, id string, now time.Time) error {
	res, err := r.exec(ctx, deleteEntityStmt(ws, id, now))
	if err != nil {
		return err
	}
	if res.Single() == nil {
		return apperror.NewNotFound("entity", id)
	}
	return nil
}

// FindEntities lists live entities matching q.
func (r *Repository) FindEntities(ctx context.Context, q ListQuery) ([]*Entity, error) {
	st, err := listEntitiesStmt(q)
	if err != nil {
		return nil, err
	}
	res, err := r.exec(ctx, st)
	if err != nil {
		return nil, err
	}
	out := make([]*Entity, 0, len(res.Records))
	for _, rec := range res.Records {
		e, err := decodeEntity(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// LiveEntityIDs reports which of ids name live entities in ws.
func (r *Repository) LiveEntityIDs(ctx context.Context, ws string, ids []string) (map[string]bool, error) {
	live := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return live, nil
	}
	res, err := r.exec(ctx, entitiesExistStmt(ws, ids))
	if err != nil {
		return nil, err
	}
	for _, rec := range res.Records {
		if id, ok := rec["id"].(string); ok {
			live[id] = true
		}
	}
	return live, nil
}

// InsertEdge stores a new edge. It fails with source_not_found when an
// endpoint disappeared after the caller checked it.
func (r *Repository) InsertEdge(ctx context.Context, e *Edge) (*Edge, error) {
	st, err := createEdgeStmt(e)
	if err != nil {
		return nil, err
	}
	res, err := r.exec(ctx, st)
	if err != nil {
		return nil, err
	}
	rec := res.Single()
	if rec == nil {
		return nil, apperror.ErrSourceNotFound.WithMessage("edge endpoints no longer exist")
	}
	return decodeEdge(rec)
}

// FindEdge returns a live edge or not_found.
func (r *Repository) FindEdge(ctx context.Context, ws, id string) (*Edge, error) {
	res, err := r.exec(ctx, getEdgeStmt(ws, id))
	if err != nil {
		return nil, err
	}
	rec := res.Single()
	if rec == nil {
		return nil, apperror.NewNotFound("edge", id)
	}
	return decodeEdge(rec)
}

// ReplaceEdge overwrites the stored edge with e.
func (r *Repository) ReplaceEdge(ctx context.Context, e *Edge) (*Edge, error) {
	st, err := updateEdgeStmt(e)
	if err != nil {
		return nil, err
	}
	res, err := r.exec(ctx, st)
	if err != nil {
		return nil, err
	}
	rec := res.Single()
	if rec == nil {
		return nil, apperror.NewNotFound("edge", e.ID)
	}
	return decodeEdge(rec)
}

// TombstoneEdge soft-deletes an edge.
func (r *Repository) TombstoneEdge(ctx context.Context, ws, id string, now time.Time) error {
	res, err := r.exec(ctx, deleteEdgeStmt(ws, id, now))
	if err != nil {
		return err
	}
	if res.Single() == nil {
		return apperror.NewNotFound("edge", id)
	}
	return nil
}

// Expand follows qualifying edges one hop from each anchor.
func (r *Repository) Expand(ctx context.Context, ws string, anchors []string, edgeType string, dir policy.Direction) ([]Hop, error) {
	if len(anchors) == 0 {
		return nil, nil
	}
	st, err := expandStmt(ws, anchors, edgeType, dir)
	if err != nil {
		return nil, err
	}
	res, err := r.exec(ctx, st)
	if err != nil {
		return nil, err
	}
	hops := make([]Hop, 0, len(res.Records))
	for _, rec := range res.Records {
		edge, err := decodeEdge(rec)
		if err != nil {
			return nil, err
		}
		node, err := entityFromMap(mapField(rec, "m"))
		if err != nil {
			return nil, apperror.NewInternal("decode entity", err)
		}
		anchor, _ := rec["anchor"].(string)
		hops = append(hops, Hop{Anchor: anchor, Edge: edge, Node: node})
	}
	return hops, nil
}

// ApplyBatch runs stmts as one all-or-nothing transaction.
func (r *Repository) ApplyBatch(ctx context.Context, stmts []graphstore.Statement) ([]*graphstore.Result, error) {
	res, err := r.port.ExecuteBatch(ctx, stmts)
	if err != nil {
		return nil, err
	}
	if len(res) != len(stmts) {
		return nil, apperror.NewInternal(fmt.Sprintf("batch returned %d results for %d statements", len(res), len(stmts)), nil)
	}
	r.log.Debug("graph batch applied", slog.Int("statements", len(stmts)))
	return res, nil
}
