// Package main provides the entry point for the ERM API server.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/emergent-company/erm/domain/graph"
	"github.com/emergent-company/erm/domain/health"
	"github.com/emergent-company/erm/domain/schema"
	"github.com/emergent-company/erm/domain/tracing"
	"github.com/emergent-company/erm/internal/config"
	"github.com/emergent-company/erm/internal/database"
	"github.com/emergent-company/erm/internal/graphstore/neo4jstore"
	"github.com/emergent-company/erm/internal/server"
	"github.com/emergent-company/erm/pkg/auth"
	"github.com/emergent-company/erm/pkg/logger"
)

func main() {
	// .env.local overrides .env
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		neo4jstore.Module,
		tracing.Module,
		server.Module,

		auth.Module,

		// Domain modules
		health.Module,
		schema.Module,
		graph.Module,
	).Run()
}
