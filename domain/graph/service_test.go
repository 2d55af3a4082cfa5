package graph

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/erm/domain/policy"
	"github.com/emergent-company/erm/domain/schema"
	"github.com/emergent-company/erm/internal/graphstore"
	"github.com/emergent-company/erm/internal/graphstore/memstore"
	"github.com/emergent-company/erm/pkg/apperror"
)

const testWorkspace = "ws-1"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSchema() schema.Input {
	return schema.Input{
		EntityTypes: []schema.EntityType{
			{Name: "Person", Properties: []schema.PropertyDefinition{
				{Name: "name", Type: schema.TypeString, Required: true},
				{Name: "age", Type: schema.TypeInteger},
			}},
			{Name: "Company", Properties: []schema.PropertyDefinition{
				{Name: "name", Type: schema.TypeString, Required: true},
			}},
		},
		EdgeTypes: []schema.EdgeType{
			{Name: "KNOWS", Properties: []schema.PropertyDefinition{
				{Name: "since", Type: schema.TypeInteger},
			}},
			{Name: "WORKS_AT"},
			{Name: "MANAGES", NoSelfLoops: true},
		},
	}
}

type testEnv struct {
	svc   *Service
	store *memstore.Store
}

func newTestEnv(t *testing.T, limits policy.TraversalLimits, conceal bool) *testEnv {
	t.Helper()

	log := discardLogger()
	schemas := schema.NewService(schema.NewMemoryStore(), log, nil)
	_, err := schemas.Seed(context.Background(), testWorkspace, testSchema())
	require.NoError(t, err)

	store := memstore.New()
	return &testEnv{
		svc:   NewService(NewRepository(store, log), schemas, limits, conceal, log),
		store: store,
	}
}

func newEnv(t *testing.T) *testEnv {
	return newTestEnv(t, policy.DefaultTraversalLimits, false)
}

func actorAs(role policy.Role, subject string) policy.Actor {
	return policy.Actor{WorkspaceID: testWorkspace, Role: role, Subject: subject}
}

var owner = actorAs(policy.RoleOwner, "user-owner")

func (e *testEnv) person(t *testing.T, name string) *Entity {
	t.Helper()
	p, err := e.svc.CreateEntity(context.Background(), owner, CreateEntityRequest{
		Type:       "Person",
		Properties: schema.Properties{"name": schema.String(name)},
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) edge(t *testing.T, typ string, src, dst *Entity) *Edge {
	t.Helper()
	edge, err := e.svc.CreateEdge(context.Background(), owner, CreateEdgeRequest{
		Type: typ, SourceID: src.ID, TargetID: dst.ID,
	})
	require.NoError(t, err)
	return edge
}

func str(v schema.Value) string {
	s, _ := v.Str()
	return s
}

func nodeIDs(sub *Subgraph) map[string]int {
	out := map[string]int{}
	for _, n := range sub.Nodes {
		out[n.ID] = n.Depth
	}
	return out
}

func pathIDs(p Path) []string {
	ids := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		ids[i] = n.ID
	}
	return ids
}

func TestService_CreateEntityRoundTrip(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	created, err := env.svc.CreateEntity(ctx, owner, CreateEntityRequest{
		Type: "Person",
		Properties: schema.Properties{
			"name":     schema.String("Alice"),
			"age":      schema.Int(30),
			"nickname": schema.String("Al"),
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, testWorkspace, created.WorkspaceID)
	assert.Equal(t, "user-owner", created.CreatedBy)
	assert.Nil(t, created.DeletedAt)

	got, err := env.svc.GetEntity(ctx, owner, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Person", got.Type)
	assert.True(t, got.Properties.Equal(created.Properties))

	age, ok := got.Properties["age"].Int()
	require.True(t, ok, "integer property must stay an integer")
	assert.Equal(t, int64(30), age)
}

func TestService_CreateEntityUnknownTypeWritesNothing(t *testing.T) {
	env := newEnv(t)

	_, err := env.svc.CreateEntity(context.Background(), owner, CreateEntityRequest{
		Type:       "Spaceship",
		Properties: schema.Properties{"name": schema.String("Enterprise")},
	})
	assert.ErrorIs(t, err, apperror.ErrUnknownType)
	assert.Zero(t, env.store.Writes())
	assert.Zero(t, env.store.NodeCount())
}

func TestService_CreateEntityMissingRequiredField(t *testing.T) {
	env := newEnv(t)

	_, err := env.svc.CreateEntity(context.Background(), owner, CreateEntityRequest{
		Type:       "Person",
		Properties: schema.Properties{"age": schema.Int(4)},
	})
	require.ErrorIs(t, err, apperror.ErrValidation)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Message, "name")
	assert.Zero(t, env.store.Writes())
}

func TestService_RejectsUnsafeIdentifiers(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	for _, typ := range []string{"Bad Type", "Person;DROP", "Person`) DETACH DELETE n //"} {
		t.Run(typ, func(t *testing.T) {
			_, err := env.svc.CreateEntity(ctx, owner, CreateEntityRequest{
				Type:       typ,
				Properties: schema.Properties{"name": schema.String("x")},
			})
			assert.ErrorIs(t, err, apperror.ErrInvalidIdentifier)
		})
	}

	a, b := env.person(t, "a"), env.person(t, "b")
	writes := env.store.Writes()
	_, err := env.svc.CreateEdge(ctx, owner, CreateEdgeRequest{Type: "KNOWS]->(x", SourceID: a.ID, TargetID: b.ID})
	assert.ErrorIs(t, err, apperror.ErrInvalidIdentifier)

	_, err = env.svc.ListEntities(ctx, owner, ListParams{Filters: schema.Properties{"name} OR 1=1 //": schema.String("x")}})
	assert.ErrorIs(t, err, apperror.ErrInvalidIdentifier)
	assert.Equal(t, writes, env.store.Writes())
}

func TestService_UpdateEntityMergesAndRevalidates(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	p := env.person(t, "Alice")

	updated, err := env.svc.UpdateEntity(ctx, owner, p.ID, schema.Properties{
		"age":  schema.Int(31),
		"city": schema.String("Oslo"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", str(updated.Properties["name"]))
	assert.Equal(t, "Oslo", str(updated.Properties["city"]))

	updated, err = env.svc.UpdateEntity(ctx, owner, p.ID, schema.Properties{"city": schema.Null()})
	require.NoError(t, err)
	assert.NotContains(t, updated.Properties, "city")

	_, err = env.svc.UpdateEntity(ctx, owner, p.ID, schema.Properties{"name": schema.Null()})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = env.svc.UpdateEntity(ctx, owner, p.ID, schema.Properties{"age": schema.String("old")})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	got, err := env.svc.GetEntity(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", str(got.Properties["name"]))
}

func TestService_DeleteEntityTombstonesEdges(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	a, b := env.person(t, "a"), env.person(t, "b")
	e := env.edge(t, "KNOWS", a, b)

	require.NoError(t, env.svc.DeleteEntity(ctx, owner, a.ID))

	_, err := env.svc.GetEntity(ctx, owner, a.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = env.svc.GetEdge(ctx, owner, e.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.ErrorIs(t, env.svc.DeleteEntity(ctx, owner, a.ID), apperror.ErrNotFound)

	sub, _, err := env.svc.GetNeighbors(ctx, owner, b.ID, "", "")
	require.NoError(t, err)
	assert.Empty(t, sub.Nodes)
	assert.Equal(t, 2, env.store.NodeCount(), "soft delete keeps the node")
}

func TestService_ListEntities(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.person(t, "Alice")
	env.person(t, "Bob")
	_, err := env.svc.CreateEntity(ctx, owner, CreateEntityRequest{
		Type:       "Company",
		Properties: schema.Properties{"name": schema.String("Acme")},
	})
	require.NoError(t, err)

	all, err := env.svc.ListEntities(ctx, owner, ListParams{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	people, err := env.svc.ListEntities(ctx, owner, ListParams{Type: "Person"})
	require.NoError(t, err)
	assert.Len(t, people, 2)

	alice, err := env.svc.ListEntities(ctx, owner, ListParams{Filters: schema.Properties{"name": schema.String("Alice")}})
	require.NoError(t, err)
	require.Len(t, alice, 1)
	assert.Equal(t, "Alice", str(alice[0].Properties["name"]))

	limited, err := env.svc.ListEntities(ctx, owner, ListParams{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = env.svc.ListEntities(ctx, owner, ListParams{Filters: schema.Properties{"tags": schema.List(schema.String("x"))}})
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}

func TestService_CreateEdgeMissingEndpoint(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	a := env.person(t, "a")

	_, err := env.svc.CreateEdge(ctx, owner, CreateEdgeRequest{Type: "KNOWS", SourceID: a.ID, TargetID: "missing"})
	require.ErrorIs(t, err, apperror.ErrTargetNotFound)
	appErr, _ := apperror.As(err)
	assert.Equal(t, "missing", appErr.Details["target_id"])

	_, err = env.svc.CreateEdge(ctx, owner, CreateEdgeRequest{Type: "KNOWS", SourceID: "missing", TargetID: a.ID})
	assert.ErrorIs(t, err, apperror.ErrSourceNotFound)
	assert.Zero(t, env.store.RelCount())
}

func TestService_CreateEdgeValidation(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	a, b := env.person(t, "a"), env.person(t, "b")

	_, err := env.svc.CreateEdge(ctx, owner, CreateEdgeRequest{Type: "LIKES", SourceID: a.ID, TargetID: b.ID})
	assert.ErrorIs(t, err, apperror.ErrUnknownType)

	_, err = env.svc.CreateEdge(ctx, owner, CreateEdgeRequest{
		Type: "KNOWS", SourceID: a.ID, TargetID: b.ID,
		Properties: schema.Properties{"since": schema.String("yesterday")},
	})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = env.svc.CreateEdge(ctx, owner, CreateEdgeRequest{Type: "MANAGES", SourceID: a.ID, TargetID: a.ID})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	loop, err := env.svc.CreateEdge(ctx, owner, CreateEdgeRequest{Type: "KNOWS", SourceID: a.ID, TargetID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, loop.SourceID, loop.TargetID)
	assert.Equal(t, 1, env.store.RelCount())
}

func TestService_UpdateAndDeleteEdge(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	a, b := env.person(t, "a"), env.person(t, "b")
	e := env.edge(t, "KNOWS", a, b)

	updated, err := env.svc.UpdateEdge(ctx, owner, e.ID, schema.Properties{"since": schema.Int(2020)})
	require.NoError(t, err)
	since, _ := updated.Properties["since"].Int()
	assert.Equal(t, int64(2020), since)
	assert.Equal(t, a.ID, updated.SourceID)

	_, err = env.svc.UpdateEdge(ctx, owner, e.ID, schema.Properties{"since": schema.Bool(true)})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	require.NoError(t, env.svc.DeleteEdge(ctx, owner, e.ID))
	_, err = env.svc.GetEdge(ctx, owner, e.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = env.svc.GetEntity(ctx, owner, a.ID)
	assert.NoError(t, err, "deleting an edge keeps its endpoints")
}

func TestService_GetNeighborsDirections(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	a, b, c := env.person(t, "a"), env.person(t, "b"), env.person(t, "c")
	env.edge(t, "KNOWS", a, b)
	env.edge(t, "WORKS_AT", c, a)

	tests := []struct {
		direction string
		edgeType  string
		want      []string
	}{
		{"out", "", []string{b.ID}},
		{"in", "", []string{c.ID}},
		{"both", "", []string{b.ID, c.ID}},
		{"", "", []string{b.ID, c.ID}},
		{"both", "KNOWS", []string{b.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.direction+"/"+tt.edgeType, func(t *testing.T) {
			sub, meta, err := env.svc.GetNeighbors(ctx, owner, a.ID, tt.edgeType, tt.direction)
			require.NoError(t, err)
			var got []string
			for _, n := range sub.Nodes {
				got = append(got, n.ID)
			}
			assert.ElementsMatch(t, tt.want, got)
			assert.Equal(t, a.ID, meta.EntityID)
		})
	}

	_, _, err := env.svc.GetNeighbors(ctx, owner, "missing", "", "")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, _, err = env.svc.GetNeighbors(ctx, owner, a.ID, "", "sideways")
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}

func TestService_TraverseRespectsDepth(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	a, b, c, d := env.person(t, "a"), env.person(t, "b"), env.person(t, "c"), env.person(t, "d")
	env.edge(t, "KNOWS", a, b)
	env.edge(t, "KNOWS", b, c)
	env.edge(t, "KNOWS", c, d)

	sub, meta, err := env.svc.Traverse(ctx, owner, a.ID, 2, "", "out")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{a.ID: 0, b.ID: 1, c.ID: 2}, nodeIDs(sub))
	assert.Len(t, sub.Edges, 2)
	assert.Equal(t, 3, meta.NodeCount)

	_, _, err = env.svc.Traverse(ctx, owner, a.ID, 6, "", "")
	assert.ErrorIs(t, err, apperror.ErrInvalidDepth)
	_, _, err = env.svc.Traverse(ctx, owner, a.ID, 0, "", "")
	assert.ErrorIs(t, err, apperror.ErrInvalidDepth)
}

func TestService_TraverseTerminatesOnCycles(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	a, b, c := env.person(t, "a"), env.person(t, "b"), env.person(t, "c")
	env.edge(t, "KNOWS", a, b)
	env.edge(t, "KNOWS", b, c)
	env.edge(t, "KNOWS", c, a)

	sub, _, err := env.svc.Traverse(ctx, owner, a.ID, 5, "", "both")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{a.ID: 0, b.ID: 1, c.ID: 1}, nodeIDs(sub))
	assert.Len(t, sub.Edges, 3, "each edge appears once")
}

func TestService_FindPaths(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	a, b, c, lonely := env.person(t, "a"), env.person(t, "b"), env.person(t, "c"), env.person(t, "lonely")
	env.edge(t, "KNOWS", a, b)
	env.edge(t, "KNOWS", b, c)
	direct := env.edge(t, "KNOWS", a, c)

	paths, meta, err := env.svc.FindPaths(ctx, owner, a.ID, c.ID, 3, "", "")
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, []string{a.ID, c.ID}, pathIDs(paths[0]))
	assert.Equal(t, direct.ID, paths[0].Edges[0].ID)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, pathIDs(paths[1]))
	assert.Equal(t, 2, meta.Count)

	paths, _, err = env.svc.FindPaths(ctx, owner, a.ID, c.ID, 1, "", "")
	require.NoError(t, err)
	assert.Len(t, paths, 1)

	paths, _, err = env.svc.FindPaths(ctx, owner, c.ID, a.ID, 3, "", "")
	require.NoError(t, err)
	assert.Empty(t, paths, "paths follow outgoing edges by default")

	paths, _, err = env.svc.FindPaths(ctx, owner, a.ID, lonely.ID, 5, "", "both")
	require.NoError(t, err)
	assert.NotNil(t, paths)
	assert.Empty(t, paths)

	paths, _, err = env.svc.FindPaths(ctx, owner, a.ID, a.ID, 2, "", "")
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Zero(t, paths[0].Len())

	_, _, err = env.svc.FindPaths(ctx, owner, a.ID, "missing", 2, "", "")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestService_FindPathsLimit(t *testing.T) {
	env := newTestEnv(t, policy.TraversalLimits{MaxDepth: 5, MaxPathDepth: 5, MaxPaths: 1}, false)
	ctx := context.Background()
	a, b, c := env.person(t, "a"), env.person(t, "b"), env.person(t, "c")
	env.edge(t, "KNOWS", a, b)
	env.edge(t, "KNOWS", b, c)
	env.edge(t, "KNOWS", a, c)

	paths, _, err := env.svc.FindPaths(ctx, owner, a.ID, c.ID, 3, "", "")
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, 1, paths[0].Len())
}

func TestService_FindPathsReportsTruncation(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	a, c, d := env.person(t, "a"), env.person(t, "c"), env.person(t, "d")
	for _, name := range []string{"b1", "b2", "b3"} {
		b := env.person(t, name)
		env.edge(t, "KNOWS", a, b)
		env.edge(t, "KNOWS", b, c)
	}
	env.edge(t, "KNOWS", c, d)

	paths, meta, err := env.svc.FindPaths(ctx, owner, a.ID, d.ID, 3, "", "")
	require.NoError(t, err)
	assert.Len(t, paths, 3)
	assert.False(t, meta.Truncated)

	env.svc.repo.maxOpenPaths = 2
	paths, meta, err = env.svc.FindPaths(ctx, owner, a.ID, d.ID, 3, "", "")
	require.NoError(t, err)
	assert.Len(t, paths, 2)
	assert.True(t, meta.Truncated)
	assert.Equal(t, 2, meta.Count)
}

func TestService_Authorization(t *testing.T) {
	ctx := context.Background()
	member := actorAs(policy.RoleMember, "user-member")
	other := actorAs(policy.RoleMember, "user-other")
	guest := actorAs(policy.RoleGuest, "user-guest")
	publicGuest := guest
	publicGuest.WorkspacePublic = true

	t.Run("member edits own entities only", func(t *testing.T) {
		env := newEnv(t)
		mine, err := env.svc.CreateEntity(ctx, member, CreateEntityRequest{
			Type: "Person", Properties: schema.Properties{"name": schema.String("m")},
		})
		require.NoError(t, err)

		_, err = env.svc.UpdateEntity(ctx, member, mine.ID, schema.Properties{"age": schema.Int(1)})
		assert.NoError(t, err)
		_, err = env.svc.UpdateEntity(ctx, other, mine.ID, schema.Properties{"age": schema.Int(2)})
		assert.ErrorIs(t, err, apperror.ErrForbidden)
		assert.ErrorIs(t, env.svc.DeleteEntity(ctx, other, mine.ID), apperror.ErrForbidden)
		assert.NoError(t, env.svc.DeleteEntity(ctx, member, mine.ID))
	})

	t.Run("guest reads only public workspaces", func(t *testing.T) {
		env := newEnv(t)
		p := env.person(t, "a")

		_, err := env.svc.GetEntity(ctx, guest, p.ID)
		assert.ErrorIs(t, err, apperror.ErrForbidden)
		_, err = env.svc.GetEntity(ctx, publicGuest, p.ID)
		assert.NoError(t, err)

		_, err = env.svc.CreateEntity(ctx, publicGuest, CreateEntityRequest{
			Type: "Person", Properties: schema.Properties{"name": schema.String("g")},
		})
		assert.ErrorIs(t, err, apperror.ErrForbidden)
		assert.Equal(t, 1, env.store.NodeCount())
	})

	t.Run("concealed denials look like missing resources", func(t *testing.T) {
		env := newTestEnv(t, policy.DefaultTraversalLimits, true)
		p := env.person(t, "a")

		_, err := env.svc.UpdateEntity(ctx, member, p.ID, schema.Properties{"age": schema.Int(1)})
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})
}

func TestService_WorkspaceIsolation(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	p := env.person(t, "a")

	stranger := policy.Actor{WorkspaceID: "ws-2", Role: policy.RoleOwner, Subject: "user-owner"}
	_, err := env.svc.GetEntity(ctx, stranger, p.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = env.svc.CreateEntity(ctx, stranger, CreateEntityRequest{
		Type: "Person", Properties: schema.Properties{"name": schema.String("x")},
	})
	assert.ErrorIs(t, err, apperror.ErrUnknownType, "ws-2 has an empty schema")
}

func TestService_StoreFailuresSurface(t *testing.T) {
	env := newEnv(t)
	env.store.FailOn(graphstore.OpEntityCreate, apperror.ErrGraphUnavailable)

	_, err := env.svc.CreateEntity(context.Background(), owner, CreateEntityRequest{
		Type: "Person", Properties: schema.Properties{"name": schema.String("a")},
	})
	assert.ErrorIs(t, err, apperror.ErrGraphUnavailable)
}
