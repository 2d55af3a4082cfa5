package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/emergent-company/erm/pkg/auth"
)

func TestCan_DecisionTable(t *testing.T) {
	own := Context{OwnsResource: true}
	other := Context{}
	public := Context{IsPublic: true}

	tests := []struct {
		role   Role
		action Action
		ctx    Context
		want   bool
	}{
		{RoleOwner, ActionManageSchema, other, true},
		{RoleOwner, ActionDelete, other, true},
		{RoleAdmin, ActionManageSchema, other, true},
		{RoleAdmin, ActionUpdate, other, true},
		{RoleAdmin, ActionBulkWrite, other, true},

		{RoleMember, ActionRead, other, true},
		{RoleMember, ActionCreate, other, true},
		{RoleMember, ActionBulkWrite, other, true},
		{RoleMember, ActionUpdate, own, true},
		{RoleMember, ActionUpdate, other, false},
		{RoleMember, ActionDelete, own, true},
		{RoleMember, ActionDelete, other, false},
		{RoleMember, ActionManageSchema, own, false},

		{RoleGuest, ActionRead, public, true},
		{RoleGuest, ActionRead, other, false},
		{RoleGuest, ActionCreate, public, false},
		{RoleGuest, ActionUpdate, Context{OwnsResource: true, IsPublic: true}, false},
		{RoleGuest, ActionManageSchema, public, false},

		{Role("superuser"), ActionRead, public, false},
		{RoleOwner, Action("drop_database"), own, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.want, Can(tt.role, tt.action, tt.ctx))
		})
	}
}

func TestActor_Can_ComputesOwnership(t *testing.T) {
	member := Actor{WorkspaceID: "ws", Role: RoleMember, Subject: "alice"}

	assert.True(t, member.Can(ActionUpdate, "alice"))
	assert.False(t, member.Can(ActionUpdate, "bob"))
	assert.False(t, member.Can(ActionUpdate, ""), "empty owner must never match")

	guest := Actor{WorkspaceID: "ws", Role: RoleGuest, WorkspacePublic: true}
	assert.True(t, guest.Can(ActionRead, ""))
	guest.WorkspacePublic = false
	assert.False(t, guest.Can(ActionRead, ""))
}

func TestActorFromIdentity(t *testing.T) {
	a := ActorFromIdentity(&auth.Identity{Subject: "s", WorkspaceID: "ws", Role: auth.RoleAdmin, WorkspacePublic: true})
	assert.Equal(t, Actor{WorkspaceID: "ws", Role: RoleAdmin, Subject: "s", WorkspacePublic: true}, a)
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleOwner, RoleAdmin, RoleMember, RoleGuest} {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, Role("superuser").Valid())
	assert.False(t, Role("").Valid())
}
