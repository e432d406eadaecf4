// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/vid2gif/internal/log"
)

// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
var ErrUnknownConfigField = errors.New("unknown config field")

// Loader handles configuration loading with precedence ENV > file > defaults.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty configPath skips
// the file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, def string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, def)
}

func (l *Loader) envInt(key string, def int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, def)
}

func (l *Loader) envBytes(key string, def ByteSize) ByteSize {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseByteSizeEnv(key, def)
}

// Load runs defaults, strict file parse, env overrides, path resolution and
// validation, in that order.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	l.warnUnknownEnv()

	cfg.FFmpeg.FFprobeBin = ResolveFFprobeBin(cfg.FFmpeg.FFprobeBin, cfg.FFmpeg.Bin)
	if abs, err := filepath.Abs(cfg.WorkDir); err == nil {
		cfg.WorkDir = abs
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file onto cfg. Unknown keys, non-YAML extensions
// and multiple documents are rejected.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.WorkDir = l.envString(EnvPrefix+"WORK_DIR", cfg.WorkDir)

	cfg.Log.Level = l.envString(EnvPrefix+"LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = l.envString(EnvPrefix+"LOG_FORMAT", cfg.Log.Format)

	cfg.Server.Listen = l.envString(EnvPrefix+"LISTEN", cfg.Server.Listen)
	cfg.Server.ReadTimeout = l.envDuration(EnvPrefix+"READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = l.envDuration(EnvPrefix+"WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.RequestTimeout = l.envDuration(EnvPrefix+"REQUEST_TIMEOUT", cfg.Server.RequestTimeout)
	cfg.Server.ShutdownTimeout = l.envDuration(EnvPrefix+"SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.RateLimit.Requests = l.envInt(EnvPrefix+"RATE_LIMIT_REQUESTS", cfg.Server.RateLimit.Requests)
	cfg.Server.RateLimit.Window = l.envDuration(EnvPrefix+"RATE_LIMIT_WINDOW", cfg.Server.RateLimit.Window)

	cfg.Limits.CeilingBytes = l.envBytes(EnvPrefix+"CEILING_BYTES", cfg.Limits.CeilingBytes)
	cfg.Limits.MaxInputBytes = l.envBytes(EnvPrefix+"MAX_INPUT_BYTES", cfg.Limits.MaxInputBytes)
	cfg.Limits.MaxConcurrentJobs = l.envInt(EnvPrefix+"MAX_CONCURRENT_JOBS", cfg.Limits.MaxConcurrentJobs)

	cfg.FFmpeg.Bin = l.envString(EnvPrefix+"FFMPEG_BIN", cfg.FFmpeg.Bin)
	cfg.FFmpeg.FFprobeBin = l.envString(EnvPrefix+"FFPROBE_BIN", cfg.FFmpeg.FFprobeBin)
	cfg.FFmpeg.ProbeTimeout = l.envDuration(EnvPrefix+"PROBE_TIMEOUT", cfg.FFmpeg.ProbeTimeout)
	cfg.FFmpeg.AnalysisTimeout = l.envDuration(EnvPrefix+"ANALYSIS_TIMEOUT", cfg.FFmpeg.AnalysisTimeout)
	cfg.FFmpeg.ApplyTimeout = l.envDuration(EnvPrefix+"APPLY_TIMEOUT", cfg.FFmpeg.ApplyTimeout)
	cfg.FFmpeg.KillGrace = l.envDuration(EnvPrefix+"KILL_GRACE", cfg.FFmpeg.KillGrace)
	cfg.FFmpeg.Dither = l.envString(EnvPrefix+"DITHER", cfg.FFmpeg.Dither)

	cfg.Tracing.Enabled = l.envBool(EnvPrefix+"TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString(EnvPrefix+"TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString(EnvPrefix+"TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.Environment = l.envString(EnvPrefix+"TRACING_ENVIRONMENT", cfg.Tracing.Environment)
	cfg.Tracing.SamplingRate = l.envFloat(EnvPrefix+"TRACING_SAMPLING_RATE", cfg.Tracing.SamplingRate)
}

// UnknownEnvKeys lists VID2GIF_* variables that no setting consumed.
func (l *Loader) UnknownEnvKeys() []string {
	var unknown []string
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func (l *Loader) warnUnknownEnv() {
	unknown := l.UnknownEnvKeys()
	if len(unknown) == 0 {
		return
	}
	logger := log.WithComponent("config")
	logger.Warn().
		Strs("keys", unknown).
		Str(log.FieldEvent, "config.unknown_env").
		Msg("ignoring unknown environment variables")
}

// Marshal renders cfg as YAML, the same shape the loader reads.
func Marshal(cfg AppConfig) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func defaultWorkDir() string {
	return filepath.Join(os.TempDir(), "vid2gif")
}
