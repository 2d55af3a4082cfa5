package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"github.com/emergent-company/erm/internal/config"
	"github.com/emergent-company/erm/internal/database"
	"github.com/emergent-company/erm/pkg/logger"
)

var envFile string

// newRootCommand builds the command tree. Tests build a fresh tree per case.
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "ermctl",
		Short: "Operator CLI for the ERM service",
		Long: `Operator tooling for the Entity-Relationship Manager.

Reads the same environment as the server (POSTGRES_*, AUTH_TOKEN_SECRET, ...),
optionally from a dotenv file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("load %s: %w", envFile, err)
				}
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment")

	root.AddCommand(newMigrateCommand())
	root.AddCommand(newSchemaCommand())
	root.AddCommand(newTokenCommand())
	root.AddCommand(newVersionCommand())
	return root
}

// openDB connects to the schema store. The returned func closes it.
func openDB(ctx context.Context) (*bun.DB, *config.Config, func(), error) {
	cfg, err := config.Parse()
	if err != nil {
		return nil, nil, nil, err
	}
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, nil, err
	}
	db := database.Open(pool, cfg.Database.QueryDebug, cliLogger())
	return db, cfg, func() {
		_ = db.Close()
		pool.Close()
	}, nil
}

func cliLogger() *slog.Logger {
	return logger.NewLogger().With(logger.Scope("ermctl"))
}
