// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ManuGH/vid2gif/internal/config"
	"github.com/ManuGH/vid2gif/internal/daemon"
	"github.com/ManuGH/vid2gif/internal/sizefit"
)

func newConvertCmd(configPath *string) *cobra.Command {
	var (
		output  string
		ceiling string
	)
	cmd := &cobra.Command{
		Use:   "convert INPUT",
		Short: "Convert one video file locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			limit := cfg.Limits.CeilingBytes
			if ceiling != "" {
				if limit, err = config.ParseByteSize(ceiling); err != nil {
					return fmt.Errorf("--ceiling: %w", err)
				}
			}
			input, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			dest, err := outputPath(input, output)
			if err != nil {
				return err
			}

			ctrl, err := daemon.BuildController(cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := ctrl.Fit(ctx, sizefit.Request{
				InputPath:    input,
				OutputPath:   dest,
				CeilingBytes: limit.Int64(),
			})
			printAttempts(cmd.OutOrStdout(), out, limit.Int64())
			if !out.OK {
				return fmt.Errorf("conversion failed (%s): %w", out.Reason, out.Err())
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %s, %s after %d attempt(s)\n",
				out.OutputPath, out.Entry, humanize.IBytes(uint64(out.SizeBytes)), len(out.Attempts))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: INPUT with .gif extension, .fit.gif for GIF inputs)")
	cmd.Flags().StringVar(&ceiling, "ceiling", "", "size ceiling, e.g. 5MiB (default from config)")
	return cmd
}

// outputPath picks the destination for input. The result never names the
// input itself, since delivery replaces whatever is at the destination.
func outputPath(input, output string) (string, error) {
	if output == "" {
		ext := filepath.Ext(input)
		suffix := ".gif"
		if strings.EqualFold(ext, ".gif") {
			suffix = ".fit.gif"
		}
		output = strings.TrimSuffix(input, ext) + suffix
	}
	dest, err := filepath.Abs(output)
	if err != nil {
		return "", err
	}
	if dest == input {
		return "", fmt.Errorf("output %s would overwrite the input", dest)
	}
	if in, err := os.Stat(input); err == nil {
		if out, err := os.Stat(dest); err == nil && os.SameFile(in, out) {
			return "", fmt.Errorf("output %s is the same file as the input", dest)
		}
	}
	return dest, nil
}

func printAttempts(w io.Writer, out sizefit.Outcome, ceiling int64) {
	if len(out.Attempts) == 0 && out.Probe.SizeBytes == 0 {
		return
	}
	if out.Probe.DurationKnown {
		_, _ = fmt.Fprintf(w, "input: %.1fs, %s; ceiling %s; starting at entry %d\n",
			out.Probe.DurationSeconds, humanize.IBytes(uint64(out.Probe.SizeBytes)),
			humanize.IBytes(uint64(ceiling)), out.StartIndex)
	} else {
		_, _ = fmt.Fprintf(w, "input: unknown duration, %s; ceiling %s; starting at entry %d\n",
			humanize.IBytes(uint64(out.Probe.SizeBytes)), humanize.IBytes(uint64(ceiling)), out.StartIndex)
	}
	for _, a := range out.Attempts {
		detail := ""
		switch a.Result {
		case sizefit.AttemptOK, sizefit.AttemptSizeExceeded:
			detail = humanize.IBytes(uint64(a.SizeBytes))
		case sizefit.AttemptEncodeFailed:
			detail = string(a.Phase)
			if a.TimedOut {
				detail += " timeout"
			}
		}
		_, _ = fmt.Fprintf(w, "  [%d] %-12s %-14s %s (%s)\n",
			a.Index, a.Entry, a.Result, detail, a.Elapsed.Round(time.Millisecond))
	}
}
