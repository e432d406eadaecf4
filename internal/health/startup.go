// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ManuGH/vid2gif/internal/config"
	"github.com/ManuGH/vid2gif/internal/log"
)

// PerformStartupChecks validates the environment before the server starts.
// A missing tool is only a warning: readiness keeps reporting it.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := os.MkdirAll(cfg.WorkDir, 0o750); err != nil {
		return fmt.Errorf("work directory check failed: %w", err)
	}
	if err := checkDirWritable(cfg.WorkDir); err != nil {
		return fmt.Errorf("work directory check failed: %w", err)
	}
	logger.Info().Str(log.FieldPath, cfg.WorkDir).Msg("work directory is writable")

	if err := checkListenAddr(cfg.Server.Listen); err != nil {
		return err
	}

	checkTool(logger, "ffmpeg", cfg.FFmpeg.Bin)
	checkTool(logger, "ffprobe", cfg.FFmpeg.FFprobeBin)

	logger.Info().Msg("startup checks passed")
	return nil
}

func checkListenAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	return nil
}

func checkTool(logger zerolog.Logger, name, bin string) {
	path, err := exec.LookPath(bin)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("tool", name).
			Str("bin", bin).
			Str(log.FieldEvent, "startup.tool_missing").
			Msg("tool not found; service will report not ready")
		return
	}
	logger.Info().Str("tool", name).Str(log.FieldPath, path).Msg("tool available")
}
