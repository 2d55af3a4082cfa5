package graphstore

import (
	"context"

	"github.com/emergent-company/erm/pkg/apperror"
)

// Unconfigured is the Port used when no graph store is configured. Every
// call fails with not_configured.
type Unconfigured struct{}

var _ Port = Unconfigured{}

func (Unconfigured) Execute(context.Context, string, map[string]any) (*Result, error) {
	return nil, apperror.ErrNotConfigured.WithMessage("graph store is not configured (set GRAPH_URI)")
}

func (Unconfigured) ExecuteBatch(context.Context, []Statement) ([]*Result, error) {
	return nil, apperror.ErrNotConfigured.WithMessage("graph store is not configured (set GRAPH_URI)")
}

func (Unconfigured) HealthCheck(context.Context) error {
	return apperror.ErrNotConfigured.WithMessage("graph store is not configured (set GRAPH_URI)")
}
