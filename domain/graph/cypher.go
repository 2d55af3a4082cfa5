package graph

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/emergent-company/erm/domain/policy"
	"github.com/emergent-company/erm/internal/graphstore"
)

// Statement builders. Labels, relationship types and filter keys are the
// only text interpolated into queries and each passes SanitizeIdentifier
// first. Everything else is a bound parameter.
//
// Entities carry the common :Entity label plus their type label.

func createEntityStmt(e *Entity) (graphstore.Statement, error) {
	label, err := policy.SanitizeIdentifier(e.Type)
	if err != nil {
		return graphstore.Statement{}, err
	}
	node, err := entityNode(e)
	if err != nil {
		return graphstore.Statement{}, err
	}
	return graphstore.Statement{
		Query: graphstore.Tagged(graphstore.OpEntityCreate, fmt.Sprintf(`
CREATE (n:Entity:%s)
SET n = $node
RETURN properties(n) AS n`, label)),
		Params:    map[string]any{"workspace_id": e.WorkspaceID, "node": node},
		MustMatch: true,
	}, nil
}

func getEntityStmt(ws, id string) graphstore.Statement {
	return graphstore.Statement{
		Query: graphstore.Tagged(graphstore.OpEntityGet, `
MATCH (n:Entity {workspace_id: $workspace_id, id: $id})
WHERE n.deleted_at IS NULL
RETURN properties(n) AS n`),
		Params: map[string]any{"workspace_id": ws, "id": id},
	}
}

func updateEntityStmt(e *Entity) (graphstore.Statement, error) {
	node, err := entityNode(e)
	if err != nil {
		return graphstore.Statement{}, err
	}
	return graphstore.Statement{
		Query: graphstore.Tagged(graphstore.OpEntityUpdate, `
MATCH (n:Entity {workspace_id: $workspace_id, id: $id})
WHERE n.deleted_at IS NULL
SET n = $node
RETURN properties(n) AS n`),
		Params:    map[string]any{"workspace_id": e.WorkspaceID, "id": e.ID, "node": node},
		MustMatch: true,
	}, nil
}

// deleteEntityStmt tombstones the entity and every live edge touching it.
func deleteEntityStmt(ws, id string, now time.Time) graphstore.Statement {
	return graphstore.Statement{
		Query: graphstore.Tagged(graphstore.OpEntityDelete, `
MATCH (n:Entity {workspace_id: $workspace_id, id: $id})
WHERE n.deleted_at IS NULL
SET n.deleted_at = $now, n.updated_at = $now
WITH n
OPTIONAL MATCH (n)-[r]-()
WHERE r.deleted_at IS NULL
SET r.deleted_at = $now, r.updated_at = $now
RETURN DISTINCT n.id AS id`),
		Params:    map[string]any{"workspace_id": ws, "id": id, "now": now.UTC()},
		MustMatch: true,
	}
}

// ListQuery selects live entities.
type ListQuery struct {
	WorkspaceID string
	// Type restricts results to one entity type when set.
	Type string
	// Filters are equality matches on scalar properties.
	Filters map[string]any
	Limit   int
}

func listEntitiesStmt(q ListQuery) (graphstore.Statement, error) {
	label := ""
	if q.Type != "" {
		t, err := policy.SanitizeIdentifier(q.Type)
		if err != nil {
			return graphstore.Statement{}, err
		}
		label = ":" + t
	}

	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	where := []string{"n.deleted_at IS NULL"}
	filters := make(map[string]any, len(keys))
	for _, k := range keys {
		key, err := policy.SanitizeIdentifier(k)
		if err != nil {
			return graphstore.Statement{}, err
		}
		stored := propPrefix + key
		where = append(where, fmt.Sprintf("n.%s = $filters.%s", stored, stored))
		filters[stored] = policy.SanitizeValue(q.Filters[k])
	}

	return graphstore.Statement{
		Query: graphstore.Tagged(graphstore.OpEntityList, fmt.Sprintf(`
MATCH (n:Entity%s {workspace_id: $workspace_id})
WHERE %s
RETURN properties(n) AS n
ORDER BY n.created_at, n.id
LIMIT $limit`, label, strings.Join(where, " AND "))),
		Params: map[string]any{
			"workspace_id": q.WorkspaceID,
			"type":         q.Type,
			"filters":      filters,
			"limit":        int64(q.Limit),
		},
	}, nil
}

func entitiesExistStmt(ws string, ids []string) graphstore.Statement {
	return graphstore.Statement{
		Query: graphstore.Tagged(graphstore.OpEntitiesExist, `
UNWIND $ids AS id
MATCH (n:Entity {workspace_id: $workspace_id, id: id})
WHERE n.deleted_at IS NULL
RETURN n.id AS id`),
		Params: map[string]any{"workspace_id": ws, "ids": ids},
	}
}

func createEdgeStmt(e *Edge) (graphstore.Statement, error) {
	relType, err := policy.SanitizeIdentifier(e.Type)
	if err != nil {
		return graphstore.Statement{}, err
	}
	rel, err := edgeRel(e)
	if err != nil {
		return graphstore.Statement{}, err
	}
	return graphstore.Statement{
		Query: graphstore.Tagged(graphstore.OpEdgeCreate, fmt.Sprintf(`
MATCH (s:Entity {workspace_id: $workspace_id, id: $source_id}),
      (t:Entity {workspace_id: $workspace_id, id: $target_id})
WHERE s.deleted_at IS NULL AND t.deleted_at IS NULL
CREATE (s)-[r:%s]->(t)
SET r = $rel
RETURN properties(r) AS r`, relType)),
		Params: map[string]any{
			"workspace_id": e.WorkspaceID,
			"source_id":    e.SourceID,
			"target_id":    e.TargetID,
			"rel":          rel,
		},
		MustMatch: true,
	}, nil
}

func getEdgeStmt(ws, id string) graphstore.Statement {
	return graphstore.Statement{
		Query: graphstore.Tagged(graphstore.OpEdgeGet, `
MATCH (:Entity)-[r {workspace_id: $workspace_id, id: $id}]->(:Entity)
WHERE r.deleted_at IS NULL
RETURN properties(r) AS r`),
		Params: map[string]any{"workspace_id": ws, "id": id},
	}
}

func updateEdgeStmt(e *Edge) (graphstore.Statement, error) {
	rel, err := edgeRel(e)
	if err != nil {
		return graphstore.Statement{}, err
	}
	return graphstore.Statement{
		Query: graphstore.Tagged(graphstore.OpEdgeUpdate, `
MATCH (:Entity)-[r {workspace_id: $workspace_id, id: $id}]->(:Entity)
WHERE r.deleted_at IS NULL
SET r = $rel
RETURN properties(r) AS r`),
		Params:    map[string]any{"workspace_id": e.WorkspaceID, "id": e.ID, "rel": rel},
		MustMatch: true,
	}, nil
}

func deleteEdgeStmt(ws, id string, now time.Time) graphstore.Statement {
	return graphstore.Statement{
		Query: graphstore.Tagged(graphstore.OpEdgeDelete, `
MATCH (:Entity)-[r {workspace_id: $workspace_id, id: $id}]->(:Entity)
WHERE r.deleted_at IS NULL
SET r.deleted_at = $now, r.updated_at = $now
RETURN r.id AS id`),
		Params:    map[string]any{"workspace_id": ws, "id": id, "now": now.UTC()},
		MustMatch: true,
	}
}

var directionPatterns = map[policy.Direction]string{
	policy.DirectionOut:  "-[r%s]->",
	policy.DirectionIn:   "<-[r%s]-",
	policy.DirectionBoth: "-[r%s]-",
}

// expandStmt follows qualifying edges one hop from every anchor. Rows come
// back grouped by anchor in input order, then by edge creation.
func expandStmt(ws string, anchors []string, edgeType string, dir policy.Direction) (graphstore.Statement, error) {
	relType := ""
	if edgeType != "" {
		t, err := policy.SanitizeIdentifier(edgeType)
		if err != nil {
			return graphstore.Statement{}, err
		}
		relType = ":" + t
	}
	pattern, ok := directionPatterns[dir]
	if !ok {
		return graphstore.Statement{}, fmt.Errorf("unsupported direction %q", dir)
	}

	return graphstore.Statement{
		Query: graphstore.Tagged(graphstore.OpExpand, fmt.Sprintf(`
UNWIND range(0, size($ids) - 1) AS seq
MATCH (n:Entity {workspace_id: $workspace_id, id: $ids[seq]})`+pattern+`(m:Entity {workspace_id: $workspace_id})
WHERE n.deleted_at IS NULL AND m.deleted_at IS NULL AND r.deleted_at IS NULL
RETURN seq, n.id AS anchor, properties(r) AS r, properties(m) AS m
ORDER BY seq, r.created_at, r.id`, relType)),
		Params: map[string]any{
			"workspace_id": ws,
			"ids":          anchors,
			"edge_type":    edgeType,
			"direction":    string(dir),
		},
	}, nil
}
