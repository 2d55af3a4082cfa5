package graph

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/erm/domain/policy"
	"github.com/emergent-company/erm/domain/schema"
	"github.com/emergent-company/erm/internal/graphstore"
	"github.com/emergent-company/erm/pkg/apperror"
)

func bulkErrors(t *testing.T, err error) []BulkItemError {
	t.Helper()
	require.ErrorIs(t, err, apperror.ErrValidation)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	errs, ok := appErr.Details["errors"].([]BulkItemError)
	require.True(t, ok, "details must carry the item errors")
	return errs
}

func personItem(name string) CreateEntityRequest {
	return CreateEntityRequest{Type: "Person", Properties: schema.Properties{"name": schema.String(name)}}
}

func TestBulkCreateEntities(t *testing.T) {
	env := newEnv(t)

	res, err := env.svc.BulkCreateEntities(context.Background(), owner, []CreateEntityRequest{
		personItem("a"), personItem("b"), personItem("c"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, 3, env.store.NodeCount())
	assert.Equal(t, "a", str(res.Items[0].Properties["name"]))
}

func TestBulkCreateEntities_OneInvalidWritesNothing(t *testing.T) {
	env := newEnv(t)

	_, err := env.svc.BulkCreateEntities(context.Background(), owner, []CreateEntityRequest{
		personItem("a"),
		personItem("b"),
		personItem("c"),
		{Type: "Person", Properties: schema.Properties{"age": schema.Int(3)}},
	})
	errs := bulkErrors(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, 3, errs[0].Index)
	assert.Equal(t, apperror.CodeValidation, errs[0].Code)
	assert.Contains(t, err.Error(), "1 of 4 items")

	assert.Zero(t, env.store.Writes())
	assert.Zero(t, env.store.NodeCount())
}

func TestBulkCreateEntities_ReportsEveryBadItem(t *testing.T) {
	env := newEnv(t)

	_, err := env.svc.BulkCreateEntities(context.Background(), owner, []CreateEntityRequest{
		{Type: "Robot", Properties: schema.Properties{"name": schema.String("r")}},
		personItem("ok"),
		{Type: "Bad Type"},
	})
	errs := bulkErrors(t, err)
	require.Len(t, errs, 2)
	assert.Equal(t, 0, errs[0].Index)
	assert.Equal(t, apperror.CodeUnknownType, errs[0].Code)
	assert.Equal(t, 2, errs[1].Index)
	assert.Equal(t, apperror.CodeInvalidIdentifier, errs[1].Code)
}

func TestBulkCreateEntities_Limits(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	_, err := env.svc.BulkCreateEntities(ctx, owner, nil)
	assert.ErrorIs(t, err, apperror.ErrBadRequest)

	items := make([]CreateEntityRequest, maxBulkItems+1)
	for i := range items {
		items[i] = personItem(fmt.Sprintf("p%d", i))
	}
	_, err = env.svc.BulkCreateEntities(ctx, owner, items)
	assert.ErrorIs(t, err, apperror.ErrBadRequest)

	_, err = env.svc.BulkCreateEntities(ctx, actorAs(policy.RoleGuest, "g"), items[:1])
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.Zero(t, env.store.Writes())
}

func TestBulkCreateEntities_StoreFailureIsNotAnItemError(t *testing.T) {
	env := newEnv(t)
	env.store.FailOn(graphstore.OpEntityCreate, apperror.ErrGraphUnavailable)

	_, err := env.svc.BulkCreateEntities(context.Background(), owner, []CreateEntityRequest{personItem("a"), personItem("b")})
	assert.ErrorIs(t, err, apperror.ErrGraphUnavailable)
	assert.Zero(t, env.store.NodeCount())
}

func TestBulkUpdateEntities(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	a, b := env.person(t, "a"), env.person(t, "b")

	res, err := env.svc.BulkUpdateEntities(ctx, owner, []BulkPatchItem{
		{ID: a.ID, Properties: schema.Properties{"age": schema.Int(1)}},
		{ID: b.ID, Properties: schema.Properties{"age": schema.Int(2)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	writes := env.store.Writes()
	_, err = env.svc.BulkUpdateEntities(ctx, owner, []BulkPatchItem{
		{ID: a.ID, Properties: schema.Properties{"age": schema.Int(10)}},
		{ID: "missing", Properties: schema.Properties{"age": schema.Int(11)}},
		{ID: b.ID, Properties: schema.Properties{"name": schema.Null()}},
		{ID: a.ID, Properties: schema.Properties{"age": schema.Int(12)}},
	})
	errs := bulkErrors(t, err)
	require.Len(t, errs, 3)
	assert.Equal(t, apperror.CodeNotFound, errs[0].Code)
	assert.Equal(t, "missing", errs[0].ID)
	assert.Equal(t, apperror.CodeValidation, errs[1].Code)
	assert.Equal(t, apperror.CodeBadRequest, errs[2].Code, "duplicate ids are rejected")
	assert.Equal(t, writes, env.store.Writes())

	got, err := env.svc.GetEntity(ctx, owner, a.ID)
	require.NoError(t, err)
	age, _ := got.Properties["age"].Int()
	assert.Equal(t, int64(1), age)
}

func TestBulkDeleteEntities(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	a, b, c := env.person(t, "a"), env.person(t, "b"), env.person(t, "c")
	e := env.edge(t, "KNOWS", a, c)

	_, err := env.svc.BulkDeleteEntities(ctx, owner, []string{a.ID, "missing"})
	errs := bulkErrors(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, 1, errs[0].Index)
	_, err = env.svc.GetEntity(ctx, owner, a.ID)
	require.NoError(t, err, "rejected bulk delete leaves entities alive")

	res, err := env.svc.BulkDeleteEntities(ctx, owner, []string{a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	_, err = env.svc.GetEntity(ctx, owner, b.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = env.svc.GetEdge(ctx, owner, e.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = env.svc.GetEntity(ctx, owner, c.ID)
	assert.NoError(t, err)
}

func TestBulkDeleteEntities_MemberOwnsOnlyTheirs(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	member := actorAs(policy.RoleMember, "user-member")
	theirs := env.person(t, "owner's")
	mine, err := env.svc.CreateEntity(ctx, member, personItem("mine"))
	require.NoError(t, err)

	_, err = env.svc.BulkDeleteEntities(ctx, member, []string{mine.ID, theirs.ID})
	errs := bulkErrors(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, apperror.CodeForbidden, errs[0].Code)
	assert.Equal(t, theirs.ID, errs[0].ID)
}

func TestBulkCreateEdges(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	a, b, c := env.person(t, "a"), env.person(t, "b"), env.person(t, "c")

	res, err := env.svc.BulkCreateEdges(ctx, owner, []CreateEdgeRequest{
		{Type: "KNOWS", SourceID: a.ID, TargetID: b.ID},
		{Type: "KNOWS", SourceID: b.ID, TargetID: c.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 2, env.store.RelCount())
}

func TestBulkCreateEdges_MissingEndpointWritesNothing(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	a, b := env.person(t, "a"), env.person(t, "b")
	writes := env.store.Writes()

	_, err := env.svc.BulkCreateEdges(ctx, owner, []CreateEdgeRequest{
		{Type: "KNOWS", SourceID: a.ID, TargetID: b.ID},
		{Type: "KNOWS", SourceID: a.ID, TargetID: "ghost"},
		{Type: "LIKES", SourceID: a.ID, TargetID: b.ID},
		{Type: "MANAGES", SourceID: b.ID, TargetID: b.ID},
	})
	errs := bulkErrors(t, err)
	require.Len(t, errs, 3)
	assert.Equal(t, 1, errs[0].Index)
	assert.Equal(t, apperror.CodeTargetNotFound, errs[0].Code)
	assert.Equal(t, 2, errs[1].Index)
	assert.Equal(t, apperror.CodeUnknownType, errs[1].Code)
	assert.Equal(t, 3, errs[2].Index)
	assert.Equal(t, apperror.CodeValidation, errs[2].Code)

	assert.Equal(t, writes, env.store.Writes())
	assert.Zero(t, env.store.RelCount())
}

func TestBatchItemError(t *testing.T) {
	ids := []string{"a", "b"}

	err := batchItemError(graphstore.NoMatch(1, graphstore.OpEntityUpdate), ids)
	errs := bulkErrors(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, 1, errs[0].Index)
	assert.Equal(t, "b", errs[0].ID)

	other := apperror.ErrGraphUnavailable
	assert.Same(t, other, batchItemError(other, ids))
}
