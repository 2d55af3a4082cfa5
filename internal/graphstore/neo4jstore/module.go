package neo4jstore

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/emergent-company/erm/internal/config"
	"github.com/emergent-company/erm/internal/graphstore"
)

// Module provides the instrumented graphstore.Port. Without GRAPH_URI the
// port is graphstore.Unconfigured and the server still starts.
var Module = fx.Module("graphstore",
	fx.Provide(NewPort),
)

// NewPort connects to the configured graph store.
func NewPort(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) (graphstore.Port, error) {
	opts := graphstore.InstrumentOptions{
		Timeout:       cfg.Graph.QueryTimeout,
		SlowThreshold: cfg.Graph.SlowQueryThreshold,
	}

	if !cfg.Graph.Enabled() {
		log.Warn("graph store not configured, graph operations will fail with not_configured")
		return graphstore.Instrument(graphstore.Unconfigured{}, log, opts), nil
	}

	store, err := New(context.Background(), cfg.Graph, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing graph store driver")
			return store.Close(ctx)
		},
	})
	return graphstore.Instrument(store, log, opts), nil
}
