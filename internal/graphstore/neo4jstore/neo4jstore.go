// Package neo4jstore is the production graphstore.Port backed by a Neo4j
// (Bolt) server.
package neo4jstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jconfig "github.com/neo4j/neo4j-go-driver/v5/neo4j/config"

	"github.com/emergent-company/erm/internal/config"
	"github.com/emergent-company/erm/internal/graphstore"
	"github.com/emergent-company/erm/pkg/apperror"
	"github.com/emergent-company/erm/pkg/logger"
)

// Store runs statements against Neo4j. Each Execute and each batch is one
// managed transaction bounded by the configured query timeout.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	timeout  time.Duration
	log      *slog.Logger
}

var _ graphstore.Port = (*Store)(nil)

// New opens a driver for cfg and verifies connectivity.
func New(ctx context.Context, cfg config.GraphConfig, log *slog.Logger) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.User, cfg.Password, ""),
		func(c *neo4jconfig.Config) {
			c.MaxConnectionPoolSize = cfg.MaxPoolSize
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j at %s: %w", cfg.URI, err)
	}

	log.Info("connected to graph store",
		slog.String("uri", cfg.URI),
		slog.String("database", cfg.Database),
		slog.Int("max_pool_size", cfg.MaxPoolSize),
	)

	return &Store{
		driver:   driver,
		database: cfg.Database,
		timeout:  cfg.QueryTimeout,
		log:      log.With(logger.Scope("neo4jstore")),
	}, nil
}

// Close releases the driver's connections.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) Execute(ctx context.Context, query string, params map[string]any) (*graphstore.Result, error) {
	res, err := s.run(ctx, []graphstore.Statement{{Query: query, Params: params}})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

func (s *Store) ExecuteBatch(ctx context.Context, stmts []graphstore.Statement) ([]*graphstore.Result, error) {
	if len(stmts) == 0 {
		return nil, nil
	}
	return s.run(ctx, stmts)
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return apperror.NewGraphUnavailable(err)
	}
	_, err := s.Execute(ctx, graphstore.Tagged(graphstore.OpHealth, "RETURN 1 AS ok"), nil)
	return err
}

func (s *Store) run(ctx context.Context, stmts []graphstore.Statement) ([]*graphstore.Result, error) {
	mode := neo4j.AccessModeWrite
	if graphstore.IsReadBatch(stmts) {
		mode = neo4j.AccessModeRead
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   mode,
	})
	defer session.Close(ctx)

	work := func(tx neo4j.ManagedTransaction) (any, error) {
		return runBatch(ctx, tx, stmts)
	}

	var (
		raw any
		err error
	)
	if mode == neo4j.AccessModeRead {
		raw, err = session.ExecuteRead(ctx, work, neo4j.WithTxTimeout(s.timeout))
	} else {
		raw, err = session.ExecuteWrite(ctx, work, neo4j.WithTxTimeout(s.timeout))
	}
	if err != nil {
		return nil, mapError(err)
	}
	return raw.([]*graphstore.Result), nil
}

// runBatch runs stmts in order inside tx and stops at the first failure or
// at the first MustMatch statement that returns no records.
func runBatch(ctx context.Context, tx neo4j.ManagedTransaction, stmts []graphstore.Statement) ([]*graphstore.Result, error) {
	out := make([]*graphstore.Result, 0, len(stmts))
	for i, st := range stmts {
		res, err := runStatement(ctx, tx, st)
		if err != nil {
			return nil, err
		}
		if st.MustMatch && len(res.Records) == 0 {
			return nil, graphstore.NoMatch(i, st.Op())
		}
		out = append(out, res)
	}
	return out, nil
}

func runStatement(ctx context.Context, tx neo4j.ManagedTransaction, st graphstore.Statement) (*graphstore.Result, error) {
	cursor, err := tx.Run(ctx, st.Query, st.Params)
	if err != nil {
		return nil, err
	}
	records, err := cursor.Collect(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := cursor.Consume(ctx)
	if err != nil {
		return nil, err
	}

	res := &graphstore.Result{
		Records: make([]graphstore.Record, 0, len(records)),
		Summary: counters(summary),
	}
	for _, rec := range records {
		res.Records = append(res.Records, graphstore.Record(rec.AsMap()))
	}
	return res, nil
}

func counters(summary neo4j.ResultSummary) map[string]any {
	if summary == nil {
		return nil
	}
	c := summary.Counters()
	return map[string]any{
		"nodes_created":         c.NodesCreated(),
		"nodes_deleted":         c.NodesDeleted(),
		"relationships_created": c.RelationshipsCreated(),
		"relationships_deleted": c.RelationshipsDeleted(),
		"properties_set":        c.PropertiesSet(),
	}
}

// mapError keeps typed errors raised inside the transaction function and
// reports everything else from the driver as graph_unavailable.
func mapError(err error) error {
	if _, ok := apperror.As(err); ok {
		return err
	}
	if neo4j.IsNeo4jError(err) {
		return apperror.NewGraphUnavailable(err).WithMessage("graph store rejected the statement")
	}
	return apperror.NewGraphUnavailable(err)
}
