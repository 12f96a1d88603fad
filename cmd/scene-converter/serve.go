package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/scene-converter/internal/api"
	"github.com/spherical/scene-converter/internal/pipeline"
)

// newServeCmd creates the serve subcommand.
func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP conversion API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			controller, err := pipeline.New(cfg, logger)
			if err != nil {
				return err
			}

			logger.Info().
				Str("addr", cfg.Server.Addr).
				Str("svg_backend", cfg.SVG.Backend).
				Int("render_workers", cfg.Document.RenderWorkers).
				Bool("figma_token", cfg.HasFigmaToken()).
				Msg("Starting scene converter API")

			return api.Serve(ctx, logger, cfg.Server, api.NewRouter(logger, controller, cfg.Server))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
