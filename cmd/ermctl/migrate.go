package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/emergent-company/erm/internal/migrate"
	"github.com/emergent-company/erm/pkg/logger"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage schema store migrations",
	}

	run := func(fn func(cmd *cobra.Command, m *migrate.Migrator, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			db, _, closeDB, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			zl, err := logger.NewZap()
			if err != nil {
				return err
			}
			defer func() { _ = zl.Sync() }()
			return fn(cmd, migrate.NewMigrator(db, zl), args)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up [version]",
		Short: "Apply pending migrations, optionally up to a version",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(func(cmd *cobra.Command, m *migrate.Migrator, args []string) error {
			if len(args) == 0 {
				return m.Up(cmd.Context())
			}
			v, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return m.UpTo(cmd.Context(), v)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, m *migrate.Migrator, _ []string) error {
			return m.Down(cmd.Context())
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print migration status",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, m *migrate.Migrator, _ []string) error {
			if err := m.Status(cmd.Context()); err != nil {
				return err
			}
			v, err := m.Version(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "current version: %d\n", v)
			return nil
		}),
	})
	return cmd
}
