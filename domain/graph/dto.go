package graph

import (
	"github.com/emergent-company/erm/domain/schema"
)

// Bulk requests are capped at this many items.
const maxBulkItems = 1000

// List limits.
const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// CreateEntityRequest is the body of POST /api/graph/entities and one item
// of a bulk create.
type CreateEntityRequest struct {
	Type       string            `json:"type"`
	Properties schema.Properties `json:"properties"`
}

// PatchEntityRequest merges Properties into the stored set. A null value
// removes the key.
type PatchEntityRequest struct {
	Properties schema.Properties `json:"properties"`
}

// BulkPatchItem is one item of a bulk update.
type BulkPatchItem struct {
	ID         string            `json:"id"`
	Properties schema.Properties `json:"properties"`
}

// CreateEdgeRequest is the body of POST /api/graph/edges and one item of a
// bulk create.
type CreateEdgeRequest struct {
	Type       string            `json:"type"`
	SourceID   string            `json:"source_id"`
	TargetID   string            `json:"target_id"`
	Properties schema.Properties `json:"properties"`
}

// PatchEdgeRequest merges Properties into the stored edge properties.
type PatchEdgeRequest struct {
	Properties schema.Properties `json:"properties"`
}

// BulkCreateEntitiesRequest is the body of POST /api/graph/entities/bulk.
type BulkCreateEntitiesRequest struct {
	Items []CreateEntityRequest `json:"items"`
}

// BulkUpdateEntitiesRequest is the body of PATCH /api/graph/entities/bulk.
type BulkUpdateEntitiesRequest struct {
	Items []BulkPatchItem `json:"items"`
}

// BulkDeleteEntitiesRequest is the body of POST /api/graph/entities/bulk-delete.
type BulkDeleteEntitiesRequest struct {
	IDs []string `json:"ids"`
}

// BulkCreateEdgesRequest is the body of POST /api/graph/edges/bulk.
type BulkCreateEdgesRequest struct {
	Items []CreateEdgeRequest `json:"items"`
}

// BulkItemError describes why one bulk item was rejected.
type BulkItemError struct {
	Index   int            `json:"index"`
	ID      string         `json:"id,omitempty"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// BulkEntitiesResult reports an applied bulk entity write.
type BulkEntitiesResult struct {
	Count int       `json:"count"`
	Items []*Entity `json:"items"`
}

// BulkEdgesResult reports an applied bulk edge write.
type BulkEdgesResult struct {
	Count int     `json:"count"`
	Items []*Edge `json:"items"`
}

// BulkDeleteResult reports an applied bulk delete.
type BulkDeleteResult struct {
	Count int      `json:"count"`
	IDs   []string `json:"ids"`
}

// ListParams filter GET /api/graph/entities.
type ListParams struct {
	Type    string
	Filters schema.Properties
	Limit   int
}

// TraversalMeta accompanies a traversal response.
type TraversalMeta struct {
	StartID   string `json:"start_id"`
	Depth     int    `json:"depth"`
	EdgeType  string `json:"edge_type,omitempty"`
	Direction string `json:"direction"`
	NodeCount int    `json:"node_count"`
	EdgeCount int    `json:"edge_count"`
}

// NeighborsMeta accompanies a neighbor response.
type NeighborsMeta struct {
	EntityID  string `json:"entity_id"`
	EdgeType  string `json:"edge_type,omitempty"`
	Direction string `json:"direction"`
}

// PathsMeta accompanies a path response.
type PathsMeta struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	MaxDepth int    `json:"max_depth"`
	Count    int    `json:"count"`
	// Truncated is set when the search dropped open paths, so Count may be
	// lower than the number of paths that exist.
	Truncated bool `json:"truncated"`
}
