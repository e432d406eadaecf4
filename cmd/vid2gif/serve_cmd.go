// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/vid2gif/internal/api"
	"github.com/ManuGH/vid2gif/internal/daemon"
	"github.com/ManuGH/vid2gif/internal/health"
	"github.com/ManuGH/vid2gif/internal/log"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP conversion service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			logger := log.WithComponent("daemon")
			logger.Info().
				Str(log.FieldEvent, "config.loaded").
				Str("path", *configPath).
				Msg("configuration loaded")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := health.PerformStartupChecks(ctx, cfg); err != nil {
				return err
			}
			ctrl, err := daemon.BuildController(cfg)
			if err != nil {
				return err
			}
			srv := api.New(daemon.APIConfig(cfg), ctrl, daemon.BuildHealth(cfg))
			d, err := daemon.New(cfg, srv.Handler())
			if err != nil {
				return err
			}
			return d.Run(ctx)
		},
	}
}
