package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort    int    `env:"SERVER_PORT" envDefault:"3002"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// Schema store (Postgres)
	Database DatabaseConfig

	// Graph store (Neo4j / Bolt)
	Graph GraphConfig

	Traversal TraversalConfig

	Schema SchemaConfig

	// Identity token verification
	Auth AuthConfig

	Authz AuthzConfig

	Otel OtelConfig

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	// BodyLimit caps request bodies, e.g. "4M".
	BodyLimit string `env:"SERVER_BODY_LIMIT" envDefault:"8M"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"erm"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"erm"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// GraphConfig points at the graph store. An empty URI leaves the graph port
// unconfigured and every graph call fails with not_configured.
type GraphConfig struct {
	URI      string `env:"GRAPH_URI" envDefault:""`
	User     string `env:"GRAPH_USER" envDefault:"neo4j"`
	Password string `env:"GRAPH_PASSWORD" envDefault:""`
	Database string `env:"GRAPH_DATABASE" envDefault:"neo4j"`

	// QueryTimeout bounds every graph statement when the caller set no deadline.
	QueryTimeout time.Duration `env:"GRAPH_QUERY_TIMEOUT" envDefault:"10s"`

	// SlowQueryThreshold logs statements that take longer than this.
	SlowQueryThreshold time.Duration `env:"GRAPH_SLOW_QUERY_THRESHOLD" envDefault:"1s"`

	MaxPoolSize int `env:"GRAPH_MAX_POOL_SIZE" envDefault:"50"`
}

// Enabled returns true when a graph store URI is configured.
func (g GraphConfig) Enabled() bool {
	return g.URI != ""
}

// TraversalConfig bounds graph walks.
type TraversalConfig struct {
	MaxDepth     int `env:"TRAVERSAL_MAX_DEPTH" envDefault:"5"`
	MaxPathDepth int `env:"TRAVERSAL_MAX_PATH_DEPTH" envDefault:"5"`
	// MaxPaths caps findPaths results. 0 means unlimited.
	MaxPaths int `env:"TRAVERSAL_MAX_PATHS" envDefault:"0"`
}

// SchemaConfig holds schema validation policy.
type SchemaConfig struct {
	// StrictTypes lists "kind:Type" keys (e.g. "entity:Person") whose payloads
	// reject undeclared properties. Every other type accepts unknown keys.
	StrictTypes []string `env:"SCHEMA_STRICT_TYPES" envSeparator:","`
}

// AuthConfig holds identity token verification settings.
type AuthConfig struct {
	// TokenSecret is the HS256 key identity tokens are signed with.
	TokenSecret string `env:"AUTH_TOKEN_SECRET" envDefault:""`
	Issuer      string `env:"AUTH_TOKEN_ISSUER" envDefault:""`
	// ClockSkew tolerated when checking exp/nbf.
	ClockSkew time.Duration `env:"AUTH_CLOCK_SKEW" envDefault:"30s"`
}

// AuthzConfig holds authorization behaviour switches.
type AuthzConfig struct {
	// ConcealDenials reports denials on a specific resource as not_found.
	ConcealDenials bool `env:"AUTHZ_CONCEAL_DENIALS" envDefault:"false"`
}

// NewConfig parses the environment.
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("db_host", cfg.Database.Host),
		slog.Bool("graph_configured", cfg.Graph.Enabled()),
		slog.Int("traversal_max_depth", cfg.Traversal.MaxDepth),
	)

	return cfg, nil
}

// Parse reads Config from the environment without logging. ermctl uses it
// before a logger exists.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Traversal.MaxDepth < 1 {
		return nil, fmt.Errorf("TRAVERSAL_MAX_DEPTH must be at least 1, got %d", cfg.Traversal.MaxDepth)
	}
	if cfg.Traversal.MaxPathDepth < 1 {
		return nil, fmt.Errorf("TRAVERSAL_MAX_PATH_DEPTH must be at least 1, got %d", cfg.Traversal.MaxPathDepth)
	}
	return cfg, nil
}
