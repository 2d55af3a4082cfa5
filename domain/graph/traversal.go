package graph

import (
	"context"
	"log/slog"

	"github.com/emergent-company/erm/domain/policy"
)

// defaultMaxOpenPaths bounds the number of open paths FindPaths keeps per level.
const defaultMaxOpenPaths = 50_000

// Neighbors returns the entities one hop from id over qualifying edges. A
// missing start entity fails with not_found.
func (r *Repository) Neighbors(ctx context.Context, ws, id string, q policy.NeighborQuery) (*Subgraph, error) {
	if _, err := r.FindEntity(ctx, ws, id); err != nil {
		return nil, err
	}
	hops, err := r.Expand(ctx, ws, []string{id}, q.EdgeType, q.Direction)
	if err != nil {
		return nil, err
	}

	out := &Subgraph{Nodes: []*TraversedEntity{}, Edges: []*Edge{}}
	seenNodes := map[string]bool{}
	seenEdges := map[string]bool{}
	for _, h := range hops {
		if !seenEdges[h.Edge.ID] {
			seenEdges[h.Edge.ID] = true
			out.Edges = append(out.Edges, h.Edge)
		}
		if !seenNodes[h.Node.ID] {
			seenNodes[h.Node.ID] = true
			out.Nodes = append(out.Nodes, &TraversedEntity{Entity: h.Node, Depth: 1})
		}
	}
	return out, nil
}

// Traverse expands breadth-first from startID up to q.Depth hops. Each
// entity appears once, at the depth it was first reached, so cycles end the
// walk. Edges whose both endpoints were reached are included once.
func (r *Repository) Traverse(ctx context.Context, ws, startID string, q policy.TraversalQuery) (*Subgraph, error) {
	start, err := r.FindEntity(ctx, ws, startID)
	if err != nil {
		return nil, err
	}

	out := &Subgraph{
		Nodes: []*TraversedEntity{{Entity: start, Depth: 0}},
		Edges: []*Edge{},
	}
	visited := map[string]bool{start.ID: true}
	seenEdges := map[string]bool{}
	frontier := []string{start.ID}

	for depth := 1; depth <= q.Depth && len(frontier) > 0; depth++ {
		hops, err := r.Expand(ctx, ws, frontier, q.EdgeType, q.Direction)
		if err != nil {
			return nil, err
		}
		var next []string
		for _, h := range hops {
			if !seenEdges[h.Edge.ID] {
				seenEdges[h.Edge.ID] = true
				out.Edges = append(out.Edges, h.Edge)
			}
			if visited[h.Node.ID] {
				continue
			}
			visited[h.Node.ID] = true
			out.Nodes = append(out.Nodes, &TraversedEntity{Entity: h.Node, Depth: depth})
			next = append(next, h.Node.ID)
		}
		frontier = next
	}
	return out, nil
}

// FindPaths returns every simple path from sourceID to targetID of at most
// q.MaxDepth hops. Paths come back shortest first; paths of equal length
// keep breadth-first discovery order. No path yields an empty slice.
//
// truncated reports that open paths were dropped at some level, so paths
// beyond that level may be missing from the result.
func (r *Repository) FindPaths(ctx context.Context, ws, sourceID, targetID string, q policy.PathQuery) (paths []Path, truncated bool, err error) {
	source, err := r.FindEntity(ctx, ws, sourceID)
	if err != nil {
		return nil, false, err
	}
	target, err := r.FindEntity(ctx, ws, targetID)
	if err != nil {
		return nil, false, err
	}

	found := []Path{}
	if source.ID == target.ID {
		return append(found, Path{Nodes: []*Entity{source}, Edges: []*Edge{}}), false, nil
	}

	adjacency := map[string][]Hop{}
	level := []Path{{Nodes: []*Entity{source}, Edges: []*Edge{}}}

	for depth := 1; depth <= q.MaxDepth && len(level) > 0; depth++ {
		var anchors []string
		pending := map[string]bool{}
		for _, p := range level {
			id := p.last().ID
			if _, ok := adjacency[id]; !ok && !pending[id] {
				pending[id] = true
				anchors = append(anchors, id)
			}
		}
		hops, err := r.Expand(ctx, ws, anchors, q.EdgeType, q.Direction)
		if err != nil {
			return nil, false, err
		}
		for _, id := range anchors {
			adjacency[id] = nil
		}
		for _, h := range hops {
			adjacency[h.Anchor] = append(adjacency[h.Anchor], h)
		}

		var next []Path
		for _, p := range level {
			for _, h := range adjacency[p.last().ID] {
				if p.contains(h.Node.ID) {
					continue
				}
				extended := p.extend(h)
				if h.Node.ID == target.ID {
					found = append(found, extended)
					if q.Limit > 0 && len(found) >= q.Limit {
						return found, truncated, nil
					}
					continue
				}
				next = append(next, extended)
			}
		}
		if len(next) > r.maxOpenPaths {
			r.log.Warn("path search truncated",
				slog.String("workspace_id", ws),
				slog.Int("depth", depth),
				slog.Int("open_paths", len(next)),
			)
			next = next[:r.maxOpenPaths]
			truncated = true
		}
		level = next
	}
	return found, truncated, nil
}
