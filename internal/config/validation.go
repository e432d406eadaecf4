// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/vid2gif/internal/ladder"
)

// MaxProbeTimeout caps the metadata probe.
const MaxProbeTimeout = 30 * time.Second

// Validate reports every invalid setting at once.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(cfg.WorkDir) == "" {
		add("work_dir: must not be empty")
	}

	switch cfg.Log.Format {
	case "json", "console":
	default:
		add("log.format: %q is not one of json, console", cfg.Log.Format)
	}

	if cfg.Limits.CeilingBytes <= 0 {
		add("limits.ceiling_bytes: must be positive, got %d", cfg.Limits.CeilingBytes)
	}
	if cfg.Limits.MaxInputBytes <= 0 {
		add("limits.max_input_bytes: must be positive, got %d", cfg.Limits.MaxInputBytes)
	}
	if cfg.Limits.MaxConcurrentJobs < 1 {
		add("limits.max_concurrent_jobs: must be at least 1, got %d", cfg.Limits.MaxConcurrentJobs)
	}

	if cfg.Server.Listen == "" {
		add("server.listen: must not be empty")
	}
	if cfg.Server.RequestTimeout < 0 {
		add("server.request_timeout: must not be negative")
	}
	if cfg.Server.RateLimit.Requests < 0 {
		add("server.rate_limit.requests: must not be negative")
	}
	if cfg.Server.RateLimit.Requests > 0 && cfg.Server.RateLimit.Window <= 0 {
		add("server.rate_limit.window: must be positive when rate limiting is enabled")
	}

	if cfg.FFmpeg.Bin == "" {
		add("ffmpeg.bin: must not be empty")
	}
	if cfg.FFmpeg.ProbeTimeout <= 0 || cfg.FFmpeg.ProbeTimeout > MaxProbeTimeout {
		add("ffmpeg.probe_timeout: must be in (0, %s], got %s", MaxProbeTimeout, cfg.FFmpeg.ProbeTimeout)
	}
	if cfg.FFmpeg.AnalysisTimeout <= 0 {
		add("ffmpeg.analysis_timeout: must be positive")
	}
	if cfg.FFmpeg.ApplyTimeout <= 0 {
		add("ffmpeg.apply_timeout: must be positive")
	}
	if cfg.FFmpeg.KillGrace < 0 {
		add("ffmpeg.kill_grace: must not be negative")
	}

	if err := ladder.Validate(cfg.Ladder); err != nil {
		errs = append(errs, fmt.Errorf("ladder: %w", err))
	}
	if err := ladder.ValidateThresholds(cfg.Heuristic.Thresholds, len(cfg.Ladder)); err != nil {
		errs = append(errs, fmt.Errorf("heuristic.thresholds: %w", err))
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Exporter {
		case "grpc", "http":
		default:
			add("tracing.exporter: %q is not one of grpc, http", cfg.Tracing.Exporter)
		}
		if cfg.Tracing.Endpoint == "" {
			add("tracing.endpoint: required when tracing is enabled")
		}
	}
	if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
		add("tracing.sampling_rate: must be within [0, 1], got %g", cfg.Tracing.SamplingRate)
	}

	return errors.Join(errs...)
}
