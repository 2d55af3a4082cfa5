package schema

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/emergent-company/erm/pkg/apperror"
	"github.com/emergent-company/erm/pkg/logger"
	"github.com/emergent-company/erm/pkg/pgutils"
)

// Store persists one versioned Definition per workspace.
//
// Upsert is the checked path: it only succeeds when expectedVersion equals
// the stored version (0 when no record exists yet) and fails with stale
// otherwise. ForceUpsert skips the comparison and always bumps the version.
type Store interface {
	Get(ctx context.Context, workspaceID string) (*Definition, error)
	Upsert(ctx context.Context, workspaceID string, in Input, expectedVersion int) (*Definition, error)
	ForceUpsert(ctx context.Context, workspaceID string, in Input) (*Definition, error)
}

// Repository is the Postgres Store.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new schema repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("schema.repo")),
	}
}

var _ Store = (*Repository)(nil)

func checkWorkspaceID(workspaceID string) error {
	if _, err := uuid.Parse(workspaceID); err != nil {
		return apperror.NewBadRequest(fmt.Sprintf("workspace id %q is not a UUID", workspaceID))
	}
	return nil
}

// Get returns the workspace's current schema.
func (r *Repository) Get(ctx context.Context, workspaceID string) (*Definition, error) {
	if err := checkWorkspaceID(workspaceID); err != nil {
		return nil, err
	}

	def := new(Definition)
	err := r.db.NewSelect().
		Model(def).
		Where("workspace_id = ?", workspaceID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("schema", workspaceID)
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return def, nil
}

func encodeTypes(in Input) (string, string, error) {
	entityTypes := in.EntityTypes
	if entityTypes == nil {
		entityTypes = []EntityType{}
	}
	edgeTypes := in.EdgeTypes
	if edgeTypes == nil {
		edgeTypes = []EdgeType{}
	}
	ent, err := json.Marshal(entityTypes)
	if err != nil {
		return "", "", fmt.Errorf("encode entity types: %w", err)
	}
	edge, err := json.Marshal(edgeTypes)
	if err != nil {
		return "", "", fmt.Errorf("encode edge types: %w", err)
	}
	return string(ent), string(edge), nil
}

// Upsert creates the record (expectedVersion 0) or swaps it when the stored
// version still equals expectedVersion.
func (r *Repository) Upsert(ctx context.Context, workspaceID string, in Input, expectedVersion int) (*Definition, error) {
	if err := checkWorkspaceID(workspaceID); err != nil {
		return nil, err
	}
	ent, edge, err := encodeTypes(in)
	if err != nil {
		return nil, apperror.NewInternal("encode schema", err)
	}

	def := new(Definition)
	if expectedVersion == 0 {
		err = r.db.NewRaw(`
			INSERT INTO kb.workspace_schemas (id, workspace_id, entity_types, edge_types, version, created_at, updated_at)
			VALUES (?, ?, ?::jsonb, ?::jsonb, 1, now(), now())
			RETURNING *`,
			uuid.NewString(), workspaceID, ent, edge,
		).Scan(ctx, def)
		if pgutils.IsUniqueViolation(err) {
			r.log.Info("checked create lost to an existing schema", slog.String("workspace_id", workspaceID))
			return nil, staleError(workspaceID, expectedVersion)
		}
	} else {
		err = r.db.NewRaw(`
			UPDATE kb.workspace_schemas
			SET entity_types = ?::jsonb, edge_types = ?::jsonb, version = version + 1, updated_at = now()
			WHERE workspace_id = ? AND version = ?
			RETURNING *`,
			ent, edge, workspaceID, expectedVersion,
		).Scan(ctx, def)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, staleError(workspaceID, expectedVersion)
		}
	}
	if pgutils.IsSerializationFailure(err) {
		return nil, staleError(workspaceID, expectedVersion)
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return def, nil
}

// ForceUpsert writes the schema unconditionally, creating it at version 1 or
// incrementing the stored version by one.
func (r *Repository) ForceUpsert(ctx context.Context, workspaceID string, in Input) (*Definition, error) {
	if err := checkWorkspaceID(workspaceID); err != nil {
		return nil, err
	}
	ent, edge, err := encodeTypes(in)
	if err != nil {
		return nil, apperror.NewInternal("encode schema", err)
	}

	def := new(Definition)
	err = r.db.NewRaw(`
		INSERT INTO kb.workspace_schemas AS ws (id, workspace_id, entity_types, edge_types, version, created_at, updated_at)
		VALUES (?, ?, ?::jsonb, ?::jsonb, 1, now(), now())
		ON CONFLICT (workspace_id) DO UPDATE
		SET entity_types = EXCLUDED.entity_types,
		    edge_types = EXCLUDED.edge_types,
		    version = ws.version + 1,
		    updated_at = now()
		RETURNING *`,
		uuid.NewString(), workspaceID, ent, edge,
	).Scan(ctx, def)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	r.log.Warn("schema force-upserted",
		slog.String("workspace_id", workspaceID),
		slog.Int("version", def.Version),
	)
	return def, nil
}

func staleError(workspaceID string, expected int) error {
	return apperror.ErrStale.
		WithMessage(fmt.Sprintf("schema for workspace %s is no longer at version %d; reload and retry", workspaceID, expected)).
		WithDetails(map[string]any{"expected_version": expected})
}
