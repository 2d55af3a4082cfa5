package policy

import (
	"fmt"

	"github.com/emergent-company/erm/pkg/apperror"
)

// Direction of edge expansion relative to the anchor entity.
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// TraversalLimits bound every walk over the graph.
type TraversalLimits struct {
	MaxDepth     int
	MaxPathDepth int
	// MaxPaths caps the number of paths FindPaths returns. 0 means unlimited.
	MaxPaths int
}

// DefaultTraversalLimits match the config defaults.
var DefaultTraversalLimits = TraversalLimits{MaxDepth: 5, MaxPathDepth: 5}

// NeighborQuery is a validated getNeighbors request.
type NeighborQuery struct {
	EdgeType  string
	Direction Direction
}

// TraversalQuery is a validated traverse request.
type TraversalQuery struct {
	Depth     int
	EdgeType  string
	Direction Direction
}

// PathQuery is a validated findPaths request.
type PathQuery struct {
	MaxDepth  int
	EdgeType  string
	Direction Direction
	Limit     int
}

// NormalizeDirection defaults an empty direction to both.
func NormalizeDirection(d string) (Direction, error) {
	switch Direction(d) {
	case "":
		return DirectionBoth, nil
	case DirectionOut, DirectionIn, DirectionBoth:
		return Direction(d), nil
	default:
		return "", apperror.NewBadRequest(fmt.Sprintf("direction must be one of out, in, both; got %q", d))
	}
}

func normalizeEdgeType(edgeType string) (string, error) {
	if edgeType == "" {
		return "", nil
	}
	return SanitizeIdentifier(edgeType)
}

func checkDepth(depth, max int) error {
	if depth < 1 || depth > max {
		return apperror.ErrInvalidDepth.
			WithMessage(fmt.Sprintf("depth must be between 1 and %d, got %d", max, depth)).
			WithDetails(map[string]any{"depth": depth, "max": max})
	}
	return nil
}

// NormalizeNeighbors validates a neighbor lookup.
func (l TraversalLimits) NormalizeNeighbors(edgeType, direction string) (NeighborQuery, error) {
	et, err := normalizeEdgeType(edgeType)
	if err != nil {
		return NeighborQuery{}, err
	}
	dir, err := NormalizeDirection(direction)
	if err != nil {
		return NeighborQuery{}, err
	}
	return NeighborQuery{EdgeType: et, Direction: dir}, nil
}

// NormalizeTraversal validates a bounded traversal. Depth outside 1..MaxDepth
// fails instead of being clamped.
func (l TraversalLimits) NormalizeTraversal(depth int, edgeType, direction string) (TraversalQuery, error) {
	if err := checkDepth(depth, l.MaxDepth); err != nil {
		return TraversalQuery{}, err
	}
	nq, err := l.NormalizeNeighbors(edgeType, direction)
	if err != nil {
		return TraversalQuery{}, err
	}
	return TraversalQuery{Depth: depth, EdgeType: nq.EdgeType, Direction: nq.Direction}, nil
}

// NormalizePaths validates a path search. Paths follow outgoing edges
// unless a direction is given.
func (l TraversalLimits) NormalizePaths(maxDepth int, edgeType, direction string) (PathQuery, error) {
	if err := checkDepth(maxDepth, l.MaxPathDepth); err != nil {
		return PathQuery{}, err
	}
	if direction == "" {
		direction = string(DirectionOut)
	}
	nq, err := l.NormalizeNeighbors(edgeType, direction)
	if err != nil {
		return PathQuery{}, err
	}
	return PathQuery{MaxDepth: maxDepth, EdgeType: nq.EdgeType, Direction: nq.Direction, Limit: l.MaxPaths}, nil
}
