// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command vid2gif converts videos to GIFs that fit a byte ceiling, either
// as an HTTP service or one file at a time.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ManuGH/vid2gif/internal/config"
	"github.com/ManuGH/vid2gif/internal/log"
	"github.com/ManuGH/vid2gif/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "vid2gif",
		Short:         "Size-fit video to GIF transcoder",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// Until the config is loaded, logs go to stderr so that command
			// output on stdout stays clean.
			log.Reset()
			log.Configure(log.Config{Output: cmd.ErrOrStderr(), Version: version.Version})
		},
	}
	root.SetVersionTemplate("vid2gif " + version.String() + "\n")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newConvertCmd(&configPath),
		newConfigCmd(&configPath),
		newHealthcheckCmd(),
	)
	return root
}

// loadConfig runs the loader and switches logging to the configured level
// and format on out.
func loadConfig(path string, out io.Writer) (config.AppConfig, error) {
	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		return cfg, err
	}
	log.Reset()
	log.Configure(log.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  out,
		Version: version.Version,
	})
	return cfg, nil
}
