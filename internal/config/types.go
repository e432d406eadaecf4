// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/vid2gif/internal/ladder"
	"github.com/ManuGH/vid2gif/internal/telemetry"
)

// AppConfig is the effective runtime configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	WorkDir   string          `yaml:"work_dir"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Limits    LimitsConfig    `yaml:"limits"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Ladder    []ladder.Entry  `yaml:"ladder"`
	Heuristic HeuristicConfig `yaml:"heuristic"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Listen          string          `yaml:"listen"`
	ReadTimeout     time.Duration   `yaml:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	RequestTimeout  time.Duration   `yaml:"request_timeout"` // upper bound for one conversion, 0 disables
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds conversions per client IP.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"` // 0 disables
	Window   time.Duration `yaml:"window"`
}

// LimitsConfig holds byte and concurrency limits.
type LimitsConfig struct {
	CeilingBytes      ByteSize `yaml:"ceiling_bytes"`
	MaxInputBytes     ByteSize `yaml:"max_input_bytes"`
	MaxConcurrentJobs int      `yaml:"max_concurrent_jobs"`
}

// FFmpegConfig locates the tools and fixes encoder behaviour.
type FFmpegConfig struct {
	Bin             string        `yaml:"bin"`
	FFprobeBin      string        `yaml:"ffprobe_bin"`
	ProbeTimeout    time.Duration `yaml:"probe_timeout"`
	AnalysisTimeout time.Duration `yaml:"analysis_timeout"`
	ApplyTimeout    time.Duration `yaml:"apply_timeout"`
	KillGrace       time.Duration `yaml:"kill_grace"`
	Dither          string        `yaml:"dither"`
	StatsMode       string        `yaml:"stats_mode"`
	Scaler          string        `yaml:"scaler"`
}

// HeuristicConfig tunes where in the ladder a request starts.
type HeuristicConfig struct {
	Thresholds []ladder.Threshold `yaml:"thresholds"`
}

// TracingConfig mirrors telemetry.Config for the YAML surface.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Telemetry converts the tracing section for telemetry.NewProvider.
func (c AppConfig) Telemetry() telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Tracing.Enabled,
		ServiceName:    "vid2gif",
		ServiceVersion: c.Version,
		Environment:    c.Tracing.Environment,
		ExporterType:   c.Tracing.Exporter,
		Endpoint:       c.Tracing.Endpoint,
		SamplingRate:   c.Tracing.SamplingRate,
	}
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		WorkDir: defaultWorkDir(),
		Log:     LogConfig{Level: "info", Format: "json"},
		Server: ServerConfig{
			Listen:          ":8080",
			ReadTimeout:     2 * time.Minute,
			WriteTimeout:    0,
			RequestTimeout:  30 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
			RateLimit:       RateLimitConfig{Requests: 10, Window: time.Minute},
		},
		Limits: LimitsConfig{
			CeilingBytes:      20 * MiB,
			MaxInputBytes:     200 * MiB,
			MaxConcurrentJobs: 2,
		},
		FFmpeg: FFmpegConfig{
			Bin:             "ffmpeg",
			ProbeTimeout:    30 * time.Second,
			AnalysisTimeout: 2 * time.Minute,
			ApplyTimeout:    5 * time.Minute,
			KillGrace:       2 * time.Second,
			Dither:          "bayer:bayer_scale=5",
			StatsMode:       "diff",
			Scaler:          "lanczos",
		},
		Ladder:    ladder.Default().Entries(),
		Heuristic: HeuristicConfig{Thresholds: ladder.DefaultThresholds()},
		Tracing: TracingConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			Environment:  "production",
			SamplingRate: 1.0,
		},
	}
}
