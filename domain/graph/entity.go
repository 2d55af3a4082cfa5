package graph

import (
	"time"

	"github.com/emergent-company/erm/domain/schema"
)

// Entity is a typed node of a workspace graph. Entities are soft-deleted
// through DeletedAt and never physically removed.
type Entity struct {
	ID          string            `json:"id"`
	WorkspaceID string            `json:"workspace_id"`
	Type        string            `json:"type"`
	Properties  schema.Properties `json:"properties"`
	CreatedBy   string            `json:"created_by,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	DeletedAt   *time.Time        `json:"deleted_at"`
}

// Edge is a typed, directed relationship between two entities of the same
// workspace.
type Edge struct {
	ID          string            `json:"id"`
	WorkspaceID string            `json:"workspace_id"`
	Type        string            `json:"type"`
	SourceID    string            `json:"source_id"`
	TargetID    string            `json:"target_id"`
	Properties  schema.Properties `json:"properties"`
	CreatedBy   string            `json:"created_by,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	DeletedAt   *time.Time        `json:"deleted_at"`
}

// Hop is one edge followed from Anchor to Node during expansion.
type Hop struct {
	Anchor string
	Edge   *Edge
	Node   *Entity
}

// TraversedEntity is an entity reached by a traversal at the given hop
// distance from the start.
type TraversedEntity struct {
	*Entity
	Depth int `json:"depth"`
}

// Subgraph is the result of a neighbor lookup or traversal.
type Subgraph struct {
	Nodes []*TraversedEntity `json:"nodes"`
	Edges []*Edge            `json:"edges"`
}

// Path is a simple path. Edges[i] connects Nodes[i] and Nodes[i+1].
type Path struct {
	Nodes []*Entity `json:"nodes"`
	Edges []*Edge   `json:"edges"`
}

// Len returns the number of hops.
func (p Path) Len() int { return len(p.Edges) }

func (p Path) contains(id string) bool {
	for _, n := range p.Nodes {
		if n.ID == id {
			return true
		}
	}
	return false
}

func (p Path) last() *Entity { return p.Nodes[len(p.Nodes)-1] }

func (p Path) extend(h Hop) Path {
	nodes := make([]*Entity, len(p.Nodes), len(p.Nodes)+1)
	copy(nodes, p.Nodes)
	edges := make([]*Edge, len(p.Edges), len(p.Edges)+1)
	copy(edges, p.Edges)
	return Path{Nodes: append(nodes, h.Node), Edges: append(edges, h.Edge)}
}
