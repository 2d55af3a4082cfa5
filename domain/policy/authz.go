package policy

import "github.com/emergent-company/erm/pkg/auth"

// Role is a workspace member's role.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleGuest  Role = "guest"
)

// Action is an operation class gated by Can.
type Action string

const (
	ActionRead         Action = "read"
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionBulkWrite    Action = "bulk_write"
	ActionManageSchema Action = "manage_schema"
)

// Context carries the facts about the target resource a decision may depend on.
type Context struct {
	OwnsResource bool
	IsPublic     bool
}

type rule func(Context) bool

func always(Context) bool         { return true }
func ownsResource(c Context) bool { return c.OwnsResource }
func isPublic(c Context) bool     { return c.IsPublic }

// table is the complete decision table. Pairs absent from it are denied.
var table = map[Role]map[Action]rule{
	RoleOwner: {
		ActionRead:         always,
		ActionCreate:       always,
		ActionUpdate:       always,
		ActionDelete:       always,
		ActionBulkWrite:    always,
		ActionManageSchema: always,
	},
	RoleAdmin: {
		ActionRead:         always,
		ActionCreate:       always,
		ActionUpdate:       always,
		ActionDelete:       always,
		ActionBulkWrite:    always,
		ActionManageSchema: always,
	},
	RoleMember: {
		ActionRead:      always,
		ActionCreate:    always,
		ActionUpdate:    ownsResource,
		ActionDelete:    ownsResource,
		ActionBulkWrite: always,
	},
	RoleGuest: {
		ActionRead: isPublic,
	},
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := table[r]
	return ok
}

// Can decides whether role may perform action in ctx.
func Can(role Role, action Action, ctx Context) bool {
	actions, ok := table[role]
	if !ok {
		return false
	}
	r, ok := actions[action]
	if !ok {
		return false
	}
	return r(ctx)
}

// Actor is the resolved caller of a use case.
type Actor struct {
	WorkspaceID     string
	Role            Role
	Subject         string
	WorkspacePublic bool
}

// Can evaluates the table for the actor. ownerSubject is the creator of the
// target resource, empty when the action has no specific target.
func (a Actor) Can(action Action, ownerSubject string) bool {
	return Can(a.Role, action, Context{
		OwnsResource: ownerSubject != "" && ownerSubject == a.Subject,
		IsPublic:     a.WorkspacePublic,
	})
}

// ActorFromIdentity maps a verified identity token onto an Actor.
func ActorFromIdentity(id *auth.Identity) Actor {
	return Actor{
		WorkspaceID:     id.WorkspaceID,
		Role:            Role(id.Role),
		Subject:         id.Subject,
		WorkspacePublic: id.WorkspacePublic,
	}
}
