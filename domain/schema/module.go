package schema

import (
	"log/slog"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/emergent-company/erm/internal/config"
)

// Module provides schema domain dependencies.
var Module = fx.Module("schema",
	fx.Provide(provideStore),
	fx.Provide(provideService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)

func provideStore(db bun.IDB, log *slog.Logger) Store {
	return NewRepository(db, log)
}

func provideService(store Store, cfg *config.Config, log *slog.Logger) *Service {
	var strict StrictPolicy
	if len(cfg.Schema.StrictTypes) > 0 {
		strict = StrictTypes(cfg.Schema.StrictTypes...)
	}
	return NewService(store, log, strict)
}
