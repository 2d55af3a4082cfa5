package schema

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emergent-company/erm/pkg/apperror"
)

// MemoryStore is an in-process Store with the same version semantics as
// Repository. It backs tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Definition
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: map[string]*Definition{},
		now:     time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(_ context.Context, workspaceID string) (*Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.records[workspaceID]
	if !ok {
		return nil, apperror.NewNotFound("schema", workspaceID)
	}
	return cloneDefinition(def), nil
}

func (s *MemoryStore) Upsert(_ context.Context, workspaceID string, in Input, expectedVersion int) (*Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[workspaceID]
	currentVersion := 0
	if ok {
		currentVersion = current.Version
	}
	if currentVersion != expectedVersion {
		return nil, staleError(workspaceID, expectedVersion)
	}
	return s.write(workspaceID, in, current), nil
}

func (s *MemoryStore) ForceUpsert(_ context.Context, workspaceID string, in Input) (*Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(workspaceID, in, s.records[workspaceID]), nil
}

// write must be called with mu held.
func (s *MemoryStore) write(workspaceID string, in Input, current *Definition) *Definition {
	now := s.now().UTC()
	next := &Definition{
		WorkspaceID: workspaceID,
		EntityTypes: in.EntityTypes,
		EdgeTypes:   in.EdgeTypes,
		UpdatedAt:   now,
	}
	if current == nil {
		next.ID = uuid.NewString()
		next.Version = 1
		next.CreatedAt = now
	} else {
		next.ID = current.ID
		next.Version = current.Version + 1
		next.CreatedAt = current.CreatedAt
	}
	s.records[workspaceID] = cloneDefinition(next)
	return next
}

// cloneDefinition deep-copies through JSON so callers can't mutate stored state.
func cloneDefinition(d *Definition) *Definition {
	raw, err := json.Marshal(d)
	if err != nil {
		panic(err)
	}
	out := new(Definition)
	if err := json.Unmarshal(raw, out); err != nil {
		panic(err)
	}
	return out
}
