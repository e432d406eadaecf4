// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/vid2gif/internal/config"
)

func newConfigCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "validate",
			Short: "Load and validate the configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := loadConfig(*configPath, cmd.ErrOrStderr()); err != nil {
					return err
				}
				source := *configPath
				if source == "" {
					source = "defaults and environment"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: valid\n", source)
				return nil
			},
		},
		&cobra.Command{
			Use:   "dump",
			Short: "Print the effective configuration (defaults, file, env) as YAML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(*configPath, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				data, err := config.Marshal(cfg)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			},
		},
	)
	return cmd
}
