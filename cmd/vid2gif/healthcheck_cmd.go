// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func newHealthcheckCmd() *cobra.Command {
	var (
		mode    string
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe a running server (for container HEALTHCHECK)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var path string
			switch mode {
			case "live":
				path = "/healthz"
			case "ready":
				path = "/readyz"
			default:
				return fmt.Errorf("--mode must be live or ready, got %q", mode)
			}

			client := http.Client{Timeout: timeout}
			resp, err := client.Get("http://" + addr + path)
			if err != nil {
				return fmt.Errorf("healthcheck failed (network): %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("healthcheck failed (status): %s", resp.Status)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "healthcheck successful (%s)\n", mode)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "ready", "healthcheck mode: ready or live")
	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "server host:port")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "check timeout")
	return cmd
}
