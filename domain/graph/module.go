package graph

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/emergent-company/erm/domain/policy"
	"github.com/emergent-company/erm/domain/schema"
	"github.com/emergent-company/erm/internal/config"
)

// Module provides graph domain dependencies.
var Module = fx.Module("graph",
	fx.Provide(NewRepository),
	fx.Provide(provideService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)

func provideService(repo *Repository, schemas *schema.Service, cfg *config.Config, log *slog.Logger) *Service {
	limits := policy.TraversalLimits{
		MaxDepth:     cfg.Traversal.MaxDepth,
		MaxPathDepth: cfg.Traversal.MaxPathDepth,
		MaxPaths:     cfg.Traversal.MaxPaths,
	}
	return NewService(repo, schemas, limits, cfg.Authz.ConcealDenials, log)
}
