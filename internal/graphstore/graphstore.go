// Package graphstore defines the parameterized-query port the graph
// repository talks to, plus the decorators shared by every adapter.
//
// Statements are Cypher. The first line of each statement carries an
// operation tag ("// erm:entity_create") which names the statement for
// metrics and tracing and lets the in-memory adapter dispatch on it.
package graphstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/emergent-company/erm/pkg/apperror"
)

// Operation tags understood by every adapter.
const (
	OpEntityCreate  = "entity_create"
	OpEntityGet     = "entity_get"
	OpEntityUpdate  = "entity_update"
	OpEntityDelete  = "entity_delete"
	OpEntityList    = "entity_list"
	OpEntitiesExist = "entities_exist"
	OpEdgeCreate    = "edge_create"
	OpEdgeGet       = "edge_get"
	OpEdgeUpdate    = "edge_update"
	OpEdgeDelete    = "edge_delete"
	OpExpand        = "expand"
	OpHealth        = "health"
)

const tagPrefix = "// erm:"

var readOps = map[string]bool{
	OpEntityGet:     true,
	OpEntityList:    true,
	OpEntitiesExist: true,
	OpEdgeGet:       true,
	OpExpand:        true,
	OpHealth:        true,
}

// Port is the graph-store boundary.
type Port interface {
	// Execute runs one statement in its own transaction.
	Execute(ctx context.Context, query string, params map[string]any) (*Result, error)
	// ExecuteBatch runs every statement in a single transaction. Either all
	// of them apply or none do.
	ExecuteBatch(ctx context.Context, stmts []Statement) ([]*Result, error)
	HealthCheck(ctx context.Context) error
}

// Statement is a query with its bound parameters.
type Statement struct {
	Query  string
	Params map[string]any
	// MustMatch aborts the surrounding batch with not_found when the
	// statement returns no records.
	MustMatch bool
}

// Op returns the statement's operation tag.
func (s Statement) Op() string { return OpFrom(s.Query) }

// Record is one result row keyed by column name.
type Record map[string]any

// Result holds the rows of a statement plus store counters.
type Result struct {
	Records []Record
	Summary map[string]any
}

// Single returns the first record, or nil when there is none.
func (r *Result) Single() Record {
	if r == nil || len(r.Records) == 0 {
		return nil
	}
	return r.Records[0]
}

// Tagged prefixes query with the operation tag line.
func Tagged(op, query string) string {
	return tagPrefix + op + "\n" + strings.TrimSpace(query)
}

// OpFrom extracts the operation tag, or "unknown" when the query has none.
func OpFrom(query string) string {
	if !strings.HasPrefix(query, tagPrefix) {
		return "unknown"
	}
	line := query[len(tagPrefix):]
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// NoMatch is the error a batch fails with when a MustMatch statement
// returned nothing. index is the statement's position in the batch.
func NoMatch(index int, op string) error {
	return apperror.ErrNotFound.
		WithMessage(fmt.Sprintf("batch statement %d (%s) matched nothing", index, op)).
		WithDetails(map[string]any{"index": index})
}

// IsRead reports whether op never writes, so adapters may route it to a
// read transaction.
func IsRead(op string) bool {
	return readOps[op]
}

// IsReadBatch reports whether every statement is a read.
func IsReadBatch(stmts []Statement) bool {
	for _, s := range stmts {
		if !IsRead(s.Op()) {
			return false
		}
	}
	return true
}
