// Package memstore is an in-process graphstore.Port. It interprets the
// operation tag and parameters of each statement instead of parsing Cypher,
// so it only understands statements built by the graph repository.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/emergent-company/erm/internal/graphstore"
)

type record = map[string]any

// Store is the in-memory graph. The zero value is not usable; call New.
type Store struct {
	mu sync.Mutex

	nodes     map[string]record
	nodeOrder []string
	rels      map[string]record
	relOrder  []string

	executed []string
	failures map[string]error
}

var _ graphstore.Port = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		nodes:    map[string]record{},
		rels:     map[string]record{},
		failures: map[string]error{},
	}
}

// FailOn makes every statement tagged op fail with err. A nil err clears it.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Executed returns the operation tags of every statement run so far,
// including statements of rolled back batches.
func (s *Store) Executed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.executed...)
}

// Writes counts executed statements that are not reads.
func (s *Store) Writes() int {
	n := 0
	for _, op := range s.Executed() {
		if !graphstore.IsRead(op) {
			n++
		}
	}
	return n
}

// NodeCount returns the number of stored nodes, tombstoned ones included.
func (s *Store) NodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

// RelCount returns the number of stored relationships, tombstoned ones included.
func (s *Store) RelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rels)
}

func (s *Store) Execute(ctx context.Context, query string, params map[string]any) (*graphstore.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(graphstore.OpFrom(query), params)
}

func (s *Store) ExecuteBatch(ctx context.Context, stmts []graphstore.Statement) ([]*graphstore.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	out := make([]*graphstore.Result, 0, len(stmts))
	for i, st := range stmts {
		res, err := s.apply(st.Op(), st.Params)
		if err == nil && st.MustMatch && len(res.Records) == 0 {
			err = graphstore.NoMatch(i, st.Op())
		}
		if err != nil {
			s.restore(snap)
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.apply(graphstore.OpHealth, nil)
	return err
}

type snapshot struct {
	nodes     map[string]record
	nodeOrder []string
	rels      map[string]record
	relOrder  []string
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		nodes:     make(map[string]record, len(s.nodes)),
		nodeOrder: append([]string(nil), s.nodeOrder...),
		rels:      make(map[string]record, len(s.rels)),
		relOrder:  append([]string(nil), s.relOrder...),
	}
	for id, n := range s.nodes {
		snap.nodes[id] = clone(n)
	}
	for id, r := range s.rels {
		snap.rels[id] = clone(r)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.nodes, s.nodeOrder = snap.nodes, snap.nodeOrder
	s.rels, s.relOrder = snap.rels, snap.relOrder
}

// apply must be called with mu held.
func (s *Store) apply(op string, p map[string]any) (*graphstore.Result, error) {
	s.executed = append(s.executed, op)
	if err, ok := s.failures[op]; ok {
		return nil, err
	}

	switch op {
	case graphstore.OpHealth:
		return result(nil), nil
	case graphstore.OpEntityCreate:
		return s.createEntity(p)
	case graphstore.OpEntityGet:
		return s.getEntity(p), nil
	case graphstore.OpEntityUpdate:
		return s.updateEntity(p), nil
	case graphstore.OpEntityDelete:
		return s.deleteEntity(p), nil
	case graphstore.OpEntityList:
		return s.listEntities(p), nil
	case graphstore.OpEntitiesExist:
		return s.entitiesExist(p), nil
	case graphstore.OpEdgeCreate:
		return s.createEdge(p)
	case graphstore.OpEdgeGet:
		return s.getEdge(p), nil
	case graphstore.OpEdgeUpdate:
		return s.updateEdge(p), nil
	case graphstore.OpEdgeDelete:
		return s.deleteEdge(p), nil
	case graphstore.OpExpand:
		return s.expand(p), nil
	default:
		return nil, fmt.Errorf("memstore: unsupported operation %q", op)
	}
}

func (s *Store) liveNode(ws, id string) (record, bool) {
	n, ok := s.nodes[id]
	if !ok || n["workspace_id"] != ws || n["deleted_at"] != nil {
		return nil, false
	}
	return n, true
}

func (s *Store) liveRel(ws, id string) (record, bool) {
	r, ok := s.rels[id]
	if !ok || r["workspace_id"] != ws || r["deleted_at"] != nil {
		return nil, false
	}
	return r, true
}

func (s *Store) createEntity(p map[string]any) (*graphstore.Result, error) {
	node := clone(mapParam(p, "node"))
	id, _ := node["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("memstore: node without id")
	}
	if _, exists := s.nodes[id]; exists {
		return nil, fmt.Errorf("memstore: node %s already exists", id)
	}
	s.nodes[id] = node
	s.nodeOrder = append(s.nodeOrder, id)
	return result(map[string]any{"nodes_created": 1}, record{"n": clone(node)}), nil
}

func (s *Store) getEntity(p map[string]any) *graphstore.Result {
	n, ok := s.liveNode(str(p, "workspace_id"), str(p, "id"))
	if !ok {
		return result(nil)
	}
	return result(nil, record{"n": clone(n)})
}

func (s *Store) updateEntity(p map[string]any) *graphstore.Result {
	id := str(p, "id")
	if _, ok := s.liveNode(str(p, "workspace_id"), id); !ok {
		return result(nil)
	}
	node := clone(mapParam(p, "node"))
	s.nodes[id] = node
	return result(map[string]any{"properties_set": len(node)}, record{"n": clone(node)})
}

func (s *Store) deleteEntity(p map[string]any) *graphstore.Result {
	ws, id := str(p, "workspace_id"), str(p, "id")
	n, ok := s.liveNode(ws, id)
	if !ok {
		return result(nil)
	}
	now := p["now"]
	n["deleted_at"] = now
	n["updated_at"] = now
	for _, rid := range s.relOrder {
		r := s.rels[rid]
		if r["workspace_id"] == ws && r["deleted_at"] == nil && (r["source_id"] == id || r["target_id"] == id) {
			r["deleted_at"] = now
			r["updated_at"] = now
		}
	}
	return result(nil, record{"id": id})
}

func (s *Store) listEntities(p map[string]any) *graphstore.Result {
	ws, typ := str(p, "workspace_id"), str(p, "type")
	filters := mapParam(p, "filters")
	limit := intParam(p, "limit")

	var rows []record
	for _, id := range s.nodeOrder {
		n, ok := s.liveNode(ws, id)
		if !ok || (typ != "" && n["type"] != typ) || !matches(n, filters) {
			continue
		}
		rows = append(rows, record{"n": clone(n)})
		if limit > 0 && len(rows) == limit {
			break
		}
	}
	return result(nil, rows...)
}

func (s *Store) entitiesExist(p map[string]any) *graphstore.Result {
	ws := str(p, "workspace_id")
	var rows []record
	for _, id := range strs(p, "ids") {
		if _, ok := s.liveNode(ws, id); ok {
			rows = append(rows, record{"id": id})
		}
	}
	return result(nil, rows...)
}

func (s *Store) createEdge(p map[string]any) (*graphstore.Result, error) {
	ws := str(p, "workspace_id")
	if _, ok := s.liveNode(ws, str(p, "source_id")); !ok {
		return result(nil), nil
	}
	if _, ok := s.liveNode(ws, str(p, "target_id")); !ok {
		return result(nil), nil
	}
	rel := clone(mapParam(p, "rel"))
	id, _ := rel["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("memstore: relationship without id")
	}
	if _, exists := s.rels[id]; exists {
		return nil, fmt.Errorf("memstore: relationship %s already exists", id)
	}
	s.rels[id] = rel
	s.relOrder = append(s.relOrder, id)
	return result(map[string]any{"relationships_created": 1}, record{"r": clone(rel)}), nil
}

func (s *Store) getEdge(p map[string]any) *graphstore.Result {
	r, ok := s.liveRel(str(p, "workspace_id"), str(p, "id"))
	if !ok {
		return result(nil)
	}
	return result(nil, record{"r": clone(r)})
}

func (s *Store) updateEdge(p map[string]any) *graphstore.Result {
	id := str(p, "id")
	current, ok := s.liveRel(str(p, "workspace_id"), id)
	if !ok {
		return result(nil)
	}
	rel := clone(mapParam(p, "rel"))
	// endpoints are fixed by the relationship itself
	rel["source_id"] = current["source_id"]
	rel["target_id"] = current["target_id"]
	s.rels[id] = rel
	return result(map[string]any{"properties_set": len(rel)}, record{"r": clone(rel)})
}

func (s *Store) deleteEdge(p map[string]any) *graphstore.Result {
	id := str(p, "id")
	r, ok := s.liveRel(str(p, "workspace_id"), id)
	if !ok {
		return result(nil)
	}
	r["deleted_at"] = p["now"]
	r["updated_at"] = p["now"]
	return result(nil, record{"id": id})
}

func (s *Store) expand(p map[string]any) *graphstore.Result {
	ws, edgeType, dir := str(p, "workspace_id"), str(p, "edge_type"), str(p, "direction")

	var rows []record
	for _, anchor := range strs(p, "ids") {
		if _, ok := s.liveNode(ws, anchor); !ok {
			continue
		}
		for _, rid := range s.relOrder {
			r, ok := s.liveRel(ws, rid)
			if !ok || (edgeType != "" && r["type"] != edgeType) {
				continue
			}
			other, ok := otherEnd(r, anchor, dir)
			if !ok {
				continue
			}
			m, ok := s.liveNode(ws, other)
			if !ok {
				continue
			}
			rows = append(rows, record{"anchor": anchor, "r": clone(r), "m": clone(m)})
		}
	}
	return result(nil, rows...)
}

// otherEnd returns the endpoint of r opposite to from when r qualifies
// for the direction.
func otherEnd(r record, from, dir string) (string, bool) {
	src, _ := r["source_id"].(string)
	dst, _ := r["target_id"].(string)
	switch {
	case (dir == "out" || dir == "both") && src == from:
		return dst, true
	case (dir == "in" || dir == "both") && dst == from:
		return src, true
	}
	return "", false
}

func matches(n record, filters map[string]any) bool {
	for k, want := range filters {
		if !equalValue(n[k], want) {
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case int64:
		switch y := b.(type) {
		case int64:
			return x == y
		case int:
			return x == int64(y)
		case float64:
			return float64(x) == y
		}
		return false
	case float64:
		switch y := b.(type) {
		case float64:
			return x == y
		case int64:
			return x == float64(y)
		}
		return false
	case string, bool:
		return a == b
	}
	return false
}

func result(summary map[string]any, rows ...record) *graphstore.Result {
	res := &graphstore.Result{Summary: summary}
	for _, r := range rows {
		res.Records = append(res.Records, graphstore.Record(r))
	}
	return res
}

func clone(r record) record {
	out := make(record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func str(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return s
}

func strs(p map[string]any, key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func mapParam(p map[string]any, key string) map[string]any {
	m, _ := p[key].(map[string]any)
	return m
}

func intParam(p map[string]any, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}
