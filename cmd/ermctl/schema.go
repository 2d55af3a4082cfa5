package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/emergent-company/erm/domain/schema"
)

func newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Seed and inspect workspace schemas",
	}

	var (
		file      string
		workspace string
	)

	seed := &cobra.Command{
		Use:   "seed",
		Short: "Replace a workspace schema with a YAML seed file",
		Long: `Force-upserts the schema in --file into --workspace. The stored version
is bumped regardless of its current value.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			db, _, closeDB, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			log := cliLogger()
			def, err := seedSchema(cmd.Context(), schema.NewRepository(db, log), log, workspace, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "workspace %s schema at version %d (%d entity types, %d edge types)\n",
				def.WorkspaceID, def.Version, len(def.EntityTypes), len(def.EdgeTypes))
			return nil
		},
	}
	seed.Flags().StringVarP(&file, "file", "f", "", "YAML seed file")
	seed.Flags().StringVarP(&workspace, "workspace", "w", "", "workspace id")
	_ = seed.MarkFlagRequired("file")
	_ = seed.MarkFlagRequired("workspace")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print a workspace schema in seed file format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, _, closeDB, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			log := cliLogger()
			return showSchema(cmd.Context(), schema.NewRepository(db, log), log, workspace, cmd.OutOrStdout())
		},
	}
	show.Flags().StringVarP(&workspace, "workspace", "w", "", "workspace id")
	_ = show.MarkFlagRequired("workspace")

	cmd.AddCommand(seed, show)
	return cmd
}

func seedSchema(ctx context.Context, store schema.Store, log *slog.Logger, workspace string, r io.Reader) (*schema.Definition, error) {
	in, err := schema.ParseSeed(r)
	if err != nil {
		return nil, err
	}
	return schema.NewService(store, log, nil).Seed(ctx, workspace, in)
}

func showSchema(ctx context.Context, store schema.Store, log *slog.Logger, workspace string, w io.Writer) error {
	def, err := schema.NewService(store, log, nil).Load(ctx, workspace)
	if err != nil {
		return err
	}
	out, err := schema.MarshalSeed(def)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "# workspace %s, version %d\n", workspace, def.Version)
	_, err = w.Write(out)
	return err
}
