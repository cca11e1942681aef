package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"truck-dispatch-service/internal/adapters/repositories"
	"truck-dispatch-service/internal/api/dto"
	"truck-dispatch-service/internal/app"
	"truck-dispatch-service/internal/config"
	"truck-dispatch-service/internal/platform/metrics"
	"truck-dispatch-service/internal/platform/obs"
	"truck-dispatch-service/internal/services"
)

func main() {
	log := obs.NewLogger("dbtool")

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found (using environment variables)")
	}
	metrics.Register()

	if err := newRootCmd().ExecuteContext(log.WithContext(context.Background())); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "dbtool",
		Short:        "Database and dispatch maintenance for the truck dispatch service",
		SilenceUsage: true,
	}

	root.AddCommand(
		newMigrateCmd(),
		newSeedCmd(),
		newOptimizeCmd(),
		newRoutesCmd(),
	)
	return root
}

// build wires the service from the environment. Postgres is required for
// commands that write schema or fixtures.
func build(cmd *cobra.Command, requireDB bool) (*app.App, error) {
	cfg := config.Load()
	if requireDB && cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return app.Build(cmd.Context(), cfg, *zerolog.Ctx(cmd.Context()))
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the dispatch schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := build(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := repositories.InitSchema(cmd.Context(), a.DB); err != nil {
				return fmt.Errorf("schema initialization failed: %w", err)
			}
			zerolog.Ctx(cmd.Context()).Info().Msg("schema ready")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace dispatch data with a YAML fixture",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := zerolog.Ctx(ctx)

			a, err := build(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := repositories.LoadFixture(file)
			if err != nil {
				return err
			}
			if err := repositories.InitSchema(ctx, a.DB); err != nil {
				return fmt.Errorf("schema initialization failed: %w", err)
			}
			if err := f.ResolvePositions(ctx, a.Geocoder); err != nil {
				return err
			}
			if err := repositories.SeedFixture(ctx, a.DB, f); err != nil {
				return fmt.Errorf("seeding failed: %w", err)
			}

			log.Info().
				Int("drivers", len(f.Drivers)).
				Int("trucks", len(f.Trucks)).
				Int("locations", len(f.Locations)).
				Int("jobs", len(f.Jobs)).
				Msg("seeding complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", config.Get("SEED_PATH", "data/seeds/fleet.yaml"), "fixture file")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newOptimizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "Run one assignment pass and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := build(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Dispatcher.Optimize(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func newRoutesCmd() *cobra.Command {
	var decode bool

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Plan routes for trucks holding open jobs and print them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := build(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			routes, err := a.Sequencer.PlanRoutes(cmd.Context(), services.PlanOptions{DecodeGeometry: decode})
			if err != nil {
				return err
			}
			return printJSON(cmd, dto.NewRouteResponses(routes))
		},
	}
	cmd.Flags().BoolVar(&decode, "decode", false, "decode route geometry into coordinates")
	return cmd
}
