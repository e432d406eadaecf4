// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"fmt"

	"github.com/ManuGH/vid2gif/internal/api"
	"github.com/ManuGH/vid2gif/internal/config"
	"github.com/ManuGH/vid2gif/internal/encoder"
	"github.com/ManuGH/vid2gif/internal/health"
	"github.com/ManuGH/vid2gif/internal/ladder"
	"github.com/ManuGH/vid2gif/internal/probe"
	"github.com/ManuGH/vid2gif/internal/sizefit"
)

// ServiceName names the process in traces and HTTP spans.
const ServiceName = "vid2gif"

// BuildController assembles the size-fit engine from configuration.
func BuildController(cfg config.AppConfig) (*sizefit.Controller, error) {
	l, err := ladder.New(cfg.Ladder)
	if err != nil {
		return nil, fmt.Errorf("ladder: %w", err)
	}
	sel, err := ladder.NewSelector(cfg.Heuristic.Thresholds, l.Len())
	if err != nil {
		return nil, fmt.Errorf("heuristic: %w", err)
	}
	return &sizefit.Controller{
		Prober: probe.Prober{
			Bin:     cfg.FFmpeg.FFprobeBin,
			Timeout: cfg.FFmpeg.ProbeTimeout,
			Grace:   cfg.FFmpeg.KillGrace,
		},
		Encoder: &encoder.Encoder{
			FFmpegBin:       cfg.FFmpeg.Bin,
			AnalysisTimeout: cfg.FFmpeg.AnalysisTimeout,
			ApplyTimeout:    cfg.FFmpeg.ApplyTimeout,
			KillGrace:       cfg.FFmpeg.KillGrace,
			Dither:          cfg.FFmpeg.Dither,
			StatsMode:       cfg.FFmpeg.StatsMode,
			Scaler:          cfg.FFmpeg.Scaler,
		},
		Ladder:   l,
		Selector: sel,
		WorkDir:  cfg.WorkDir,
	}, nil
}

// BuildHealth registers the readiness checks for the conversion service.
func BuildHealth(cfg config.AppConfig) *health.Manager {
	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewBinaryChecker("ffmpeg", cfg.FFmpeg.Bin))
	hm.RegisterChecker(health.NewBinaryChecker("ffprobe", cfg.FFmpeg.FFprobeBin))
	hm.RegisterChecker(health.NewDirWritableChecker("work_dir", cfg.WorkDir))
	return hm
}

// APIConfig projects the application config onto the HTTP transport.
func APIConfig(cfg config.AppConfig) api.Config {
	c := api.Config{
		WorkDir:           cfg.WorkDir,
		CeilingBytes:      cfg.Limits.CeilingBytes.Int64(),
		MaxInputBytes:     cfg.Limits.MaxInputBytes.Int64(),
		MaxConcurrentJobs: cfg.Limits.MaxConcurrentJobs,
		RequestTimeout:    cfg.Server.RequestTimeout,
		RateLimitRequests: cfg.Server.RateLimit.Requests,
		RateLimitWindow:   cfg.Server.RateLimit.Window,
	}
	if cfg.Tracing.Enabled {
		c.TracingService = ServiceName
	}
	return c
}
