package schema

import (
	"context"
	"errors"
	"log/slog"

	"github.com/emergent-company/erm/domain/policy"
	"github.com/emergent-company/erm/pkg/apperror"
	"github.com/emergent-company/erm/pkg/logger"
	"github.com/emergent-company/erm/pkg/tracing"
)

// Service handles schema use cases.
type Service struct {
	store  Store
	log    *slog.Logger
	strict StrictPolicy
}

// NewService creates a new schema service. strict may be nil.
func NewService(store Store, log *slog.Logger, strict StrictPolicy) *Service {
	return &Service{
		store:  store,
		log:    log.With(logger.Scope("schema.svc")),
		strict: strict,
	}
}

// Checker returns the payload validator configured with this service's
// strictness policy.
func (s *Service) Checker() Checker {
	return Checker{Strict: s.strict}
}

func authorize(actor policy.Actor, action policy.Action) error {
	if !actor.Can(action, "") {
		return apperror.NewForbidden("role " + string(actor.Role) + " may not " + string(action))
	}
	return nil
}

// Get returns the actor's workspace schema.
func (s *Service) Get(ctx context.Context, actor policy.Actor) (*Definition, error) {
	if err := authorize(actor, policy.ActionRead); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, actor.WorkspaceID)
}

// Load returns the current schema for workspaceID, or an empty definition
// when none was ever stored. Callers are expected to have authorized already.
func (s *Service) Load(ctx context.Context, workspaceID string) (*Definition, error) {
	def, err := s.store.Get(ctx, workspaceID)
	if errors.Is(err, apperror.ErrNotFound) {
		return &Definition{WorkspaceID: workspaceID}, nil
	}
	return def, err
}

// Upsert is the checked path. expectedVersion must equal the stored version,
// or 0 when the workspace has no schema yet.
func (s *Service) Upsert(ctx context.Context, actor policy.Actor, in Input, expectedVersion int) (*Definition, error) {
	ctx, span := tracing.Start(ctx, "schema.upsert", tracing.AttrWorkspaceID.String(actor.WorkspaceID))
	defer span.End()

	if err := authorize(actor, policy.ActionManageSchema); err != nil {
		return nil, err
	}
	if expectedVersion < 0 {
		upsertsTotal.WithLabelValues("checked", "invalid").Inc()
		return nil, apperror.NewBadRequest("version must not be negative")
	}
	if err := in.Validate(); err != nil {
		upsertsTotal.WithLabelValues("checked", "invalid").Inc()
		return nil, err
	}

	def, err := s.store.Upsert(ctx, actor.WorkspaceID, in, expectedVersion)
	switch {
	case errors.Is(err, apperror.ErrStale):
		upsertsTotal.WithLabelValues("checked", "stale").Inc()
		s.log.Info("schema upsert rejected as stale",
			slog.String("workspace_id", actor.WorkspaceID),
			slog.Int("expected_version", expectedVersion),
		)
		return nil, err
	case err != nil:
		upsertsTotal.WithLabelValues("checked", "error").Inc()
		return nil, tracing.RecordError(span, err)
	}

	upsertsTotal.WithLabelValues("checked", "ok").Inc()
	s.log.Info("schema updated",
		slog.String("workspace_id", actor.WorkspaceID),
		slog.Int("version", def.Version),
	)
	return def, nil
}

// ForceUpsert bypasses the version check. It exists for bootstrap and
// seeding flows and always bumps the version by one.
func (s *Service) ForceUpsert(ctx context.Context, actor policy.Actor, in Input) (*Definition, error) {
	if err := authorize(actor, policy.ActionManageSchema); err != nil {
		return nil, err
	}
	return s.Seed(ctx, actor.WorkspaceID, in)
}

// Seed force-upserts without an actor. Only operator tooling calls it.
func (s *Service) Seed(ctx context.Context, workspaceID string, in Input) (*Definition, error) {
	ctx, span := tracing.Start(ctx, "schema.force_upsert", tracing.AttrWorkspaceID.String(workspaceID))
	defer span.End()

	if err := in.Validate(); err != nil {
		upsertsTotal.WithLabelValues("forced", "invalid").Inc()
		return nil, err
	}
	def, err := s.store.ForceUpsert(ctx, workspaceID, in)
	if err != nil {
		upsertsTotal.WithLabelValues("forced", "error").Inc()
		return nil, tracing.RecordError(span, err)
	}
	upsertsTotal.WithLabelValues("forced", "ok").Inc()
	return def, nil
}

// ExportJSONSchema renders the workspace schema as JSON Schema documents.
func (s *Service) ExportJSONSchema(ctx context.Context, actor policy.Actor) (*JSONSchemaExport, error) {
	def, err := s.Get(ctx, actor)
	if err != nil {
		return nil, err
	}
	return def.JSONSchema(s.strict), nil
}
