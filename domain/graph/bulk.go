package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/emergent-company/erm/domain/policy"
	"github.com/emergent-company/erm/domain/schema"
	"github.com/emergent-company/erm/internal/graphstore"
	"github.com/emergent-company/erm/pkg/apperror"
	"github.com/emergent-company/erm/pkg/tracing"
)

// Bulk writes validate every item before touching the store. One rejected
// item rejects the whole request with the complete list of item errors and
// nothing is written. Accepted requests run as a single batch transaction.

func itemError(index int, id string, err error) BulkItemError {
	ie := BulkItemError{Index: index, ID: id, Code: apperror.CodeInternal, Message: err.Error()}
	if appErr, ok := apperror.As(err); ok {
		ie.Code = appErr.Code
		ie.Message = appErr.Message
		ie.Details = appErr.Details
	}
	return ie
}

func bulkRejected(errs []BulkItemError, total int) error {
	return apperror.ErrValidation.
		WithMessage(fmt.Sprintf("%d of %d items failed validation; nothing was written", len(errs), total)).
		WithDetails(map[string]any{"errors": errs})
}

func checkBulkSize(n int) error {
	if n == 0 {
		return apperror.NewBadRequest("items must not be empty")
	}
	if n > maxBulkItems {
		return apperror.NewBadRequest(fmt.Sprintf("at most %d items per request, got %d", maxBulkItems, n))
	}
	return nil
}

// batchItemError maps a MustMatch failure of statement i back to its item.
func batchItemError(err error, ids []string) error {
	appErr, ok := apperror.As(err)
	if !ok || !errors.Is(err, apperror.ErrNotFound) {
		return err
	}
	idx, ok := appErr.Details["index"].(int)
	if !ok || idx < 0 || idx >= len(ids) {
		return err
	}
	return bulkRejected([]BulkItemError{itemError(idx, ids[idx], apperror.NewNotFound("entity", ids[idx]))}, len(ids))
}

// BulkCreateEntities creates every item or none.
func (s *Service) BulkCreateEntities(ctx context.Context, actor policy.Actor, items []CreateEntityRequest) (*BulkEntitiesResult, error) {
	ctx, span := tracing.Start(ctx, "graph.bulk_create_entities", tracing.AttrWorkspaceID.String(actor.WorkspaceID))
	defer span.End()

	if err := s.authorize(actor, policy.ActionBulkWrite); err != nil {
		return nil, err
	}
	if err := checkBulkSize(len(items)); err != nil {
		return nil, err
	}
	def, err := s.schemas.Load(ctx, actor.WorkspaceID)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}

	checker := s.schemas.Checker()
	stmts := make([]graphstore.Statement, 0, len(items))
	var errs []BulkItemError
	for i, item := range items {
		st, err := s.bulkCreateStmt(checker, def, actor, item)
		if err != nil {
			errs = append(errs, itemError(i, "", err))
			continue
		}
		stmts = append(stmts, st)
	}
	if len(errs) > 0 {
		return nil, bulkRejected(errs, len(items))
	}

	results, err := s.repo.ApplyBatch(ctx, stmts)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	out := make([]*Entity, 0, len(results))
	for _, res := range results {
		e, err := decodeEntity(res.Single())
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	s.log.Info("bulk entities created",
		slog.String("workspace_id", actor.WorkspaceID),
		slog.Int("count", len(out)),
	)
	return &BulkEntitiesResult{Count: len(out), Items: out}, nil
}

// BulkUpdateEntities applies every patch or none. Each merged result is
// validated against the current schema.
func (s *Service) BulkUpdateEntities(ctx context.Context, actor policy.Actor, items []BulkPatchItem) (*BulkEntitiesResult, error) {
	ctx, span := tracing.Start(ctx, "graph.bulk_update_entities", tracing.AttrWorkspaceID.String(actor.WorkspaceID))
	defer span.End()

	if err := s.authorize(actor, policy.ActionBulkWrite); err != nil {
		return nil, err
	}
	if err := checkBulkSize(len(items)); err != nil {
		return nil, err
	}
	def, err := s.schemas.Load(ctx, actor.WorkspaceID)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}

	ids := make([]string, len(items))
	stmts := make([]graphstore.Statement, 0, len(items))
	seen := map[string]bool{}
	var errs []BulkItemError
	for i, item := range items {
		ids[i] = item.ID
		st, err := s.bulkUpdateStmt(ctx, actor, def, item, seen)
		if err != nil {
			if !isItemError(err) {
				return nil, tracing.RecordError(span, err)
			}
			errs = append(errs, itemError(i, item.ID, err))
			continue
		}
		stmts = append(stmts, st)
	}
	if len(errs) > 0 {
		return nil, bulkRejected(errs, len(items))
	}

	results, err := s.repo.ApplyBatch(ctx, stmts)
	if err != nil {
		return nil, tracing.RecordError(span, batchItemError(err, ids))
	}
	out := make([]*Entity, 0, len(results))
	for _, res := range results {
		e, err := decodeEntity(res.Single())
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return &BulkEntitiesResult{Count: len(out), Items: out}, nil
}

func (s *Service) bulkCreateStmt(checker schema.Checker, def *schema.Definition, actor policy.Actor, item CreateEntityRequest) (graphstore.Statement, error) {
	props, err := checkEntity(checker, def, item.Type, item.Properties)
	if err != nil {
		return graphstore.Statement{}, err
	}
	return createEntityStmt(s.newEntity(actor, item.Type, props))
}

func (s *Service) bulkUpdateStmt(ctx context.Context, actor policy.Actor, def *schema.Definition, item BulkPatchItem, seen map[string]bool) (graphstore.Statement, error) {
	if item.ID == "" {
		return graphstore.Statement{}, apperror.NewBadRequest("id is required")
	}
	if seen[item.ID] {
		return graphstore.Statement{}, apperror.NewBadRequest(fmt.Sprintf("entity '%s' appears more than once", item.ID))
	}
	seen[item.ID] = true

	current, err := s.repo.FindEntity(ctx, actor.WorkspaceID, item.ID)
	if err != nil {
		return graphstore.Statement{}, err
	}
	if err := s.authorizeOn(actor, policy.ActionUpdate, "entity", item.ID, current.CreatedBy); err != nil {
		return graphstore.Statement{}, err
	}
	next, err := s.mergedEntity(def, current, item.Properties)
	if err != nil {
		return graphstore.Statement{}, err
	}
	return updateEntityStmt(next)
}

// BulkDeleteEntities soft-deletes every entity or none.
func (s *Service) BulkDeleteEntities(ctx context.Context, actor policy.Actor, ids []string) (*BulkDeleteResult, error) {
	ctx, span := tracing.Start(ctx, "graph.bulk_delete_entities", tracing.AttrWorkspaceID.String(actor.WorkspaceID))
	defer span.End()

	if err := s.authorize(actor, policy.ActionBulkWrite); err != nil {
		return nil, err
	}
	if err := checkBulkSize(len(ids)); err != nil {
		return nil, err
	}

	now := s.now()
	stmts := make([]graphstore.Statement, 0, len(ids))
	seen := map[string]bool{}
	var errs []BulkItemError
	for i, id := range ids {
		err := s.checkDeletable(ctx, actor, id, seen)
		if err != nil {
			if !isItemError(err) {
				return nil, tracing.RecordError(span, err)
			}
			errs = append(errs, itemError(i, id, err))
			continue
		}
		stmts = append(stmts, deleteEntityStmt(actor.WorkspaceID, id, now))
	}
	if len(errs) > 0 {
		return nil, bulkRejected(errs, len(ids))
	}

	if _, err := s.repo.ApplyBatch(ctx, stmts); err != nil {
		return nil, tracing.RecordError(span, batchItemError(err, ids))
	}
	s.log.Info("bulk entities deleted",
		slog.String("workspace_id", actor.WorkspaceID),
		slog.Int("count", len(ids)),
	)
	return &BulkDeleteResult{Count: len(ids), IDs: ids}, nil
}

func (s *Service) checkDeletable(ctx context.Context, actor policy.Actor, id string, seen map[string]bool) error {
	if id == "" {
		return apperror.NewBadRequest("id is required")
	}
	if seen[id] {
		return apperror.NewBadRequest(fmt.Sprintf("entity '%s' appears more than once", id))
	}
	seen[id] = true
	current, err := s.repo.FindEntity(ctx, actor.WorkspaceID, id)
	if err != nil {
		return err
	}
	return s.authorizeOn(actor, policy.ActionDelete, "entity", id, current.CreatedBy)
}

// BulkCreateEdges creates every edge or none. Endpoints are checked with a
// single lookup for the whole request.
func (s *Service) BulkCreateEdges(ctx context.Context, actor policy.Actor, items []CreateEdgeRequest) (*BulkEdgesResult, error) {
	ctx, span := tracing.Start(ctx, "graph.bulk_create_edges", tracing.AttrWorkspaceID.String(actor.WorkspaceID))
	defer span.End()

	if err := s.authorize(actor, policy.ActionBulkWrite); err != nil {
		return nil, err
	}
	if err := checkBulkSize(len(items)); err != nil {
		return nil, err
	}
	def, err := s.schemas.Load(ctx, actor.WorkspaceID)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}

	checker := s.schemas.Checker()
	props := make([]schema.Properties, len(items))
	var errs []BulkItemError
	var endpoints []string
	seenEndpoint := map[string]bool{}
	for i, item := range items {
		p, err := checkEdge(checker, def, item)
		if err != nil {
			errs = append(errs, itemError(i, "", err))
			continue
		}
		props[i] = p
		for _, id := range []string{item.SourceID, item.TargetID} {
			if !seenEndpoint[id] {
				seenEndpoint[id] = true
				endpoints = append(endpoints, id)
			}
		}
	}

	live, err := s.repo.LiveEntityIDs(ctx, actor.WorkspaceID, endpoints)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}

	stmts := make([]graphstore.Statement, 0, len(items))
	for i, item := range items {
		if props[i] == nil {
			continue
		}
		if err := endpointError(item, live); err != nil {
			errs = append(errs, itemError(i, "", err))
			continue
		}
		st, err := createEdgeStmt(s.newEdge(actor, item, props[i]))
		if err != nil {
			errs = append(errs, itemError(i, "", err))
			continue
		}
		stmts = append(stmts, st)
	}
	if len(errs) > 0 {
		sort.SliceStable(errs, func(i, j int) bool { return errs[i].Index < errs[j].Index })
		return nil, bulkRejected(errs, len(items))
	}

	results, err := s.repo.ApplyBatch(ctx, stmts)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	out := make([]*Edge, 0, len(results))
	for _, res := range results {
		e, err := decodeEdge(res.Single())
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	s.log.Info("bulk edges created",
		slog.String("workspace_id", actor.WorkspaceID),
		slog.Int("count", len(out)),
	)
	return &BulkEdgesResult{Count: len(out), Items: out}, nil
}

// isItemError reports whether err describes the item rather than the store.
func isItemError(err error) bool {
	appErr, ok := apperror.As(err)
	if !ok {
		return false
	}
	switch appErr.Code {
	case apperror.CodeGraphUnavailable, apperror.CodeNotConfigured, apperror.CodeInternal, apperror.CodeDatabase:
		return false
	}
	return true
}
