// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/vid2gif/internal/ladder"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader("", "1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, 20*MiB, cfg.Limits.CeilingBytes)
	assert.Equal(t, 2, cfg.Limits.MaxConcurrentJobs)
	assert.Equal(t, "ffprobe", cfg.FFmpeg.FFprobeBin)
	assert.True(t, filepath.IsAbs(cfg.WorkDir))
	if diff := cmp.Diff(ladder.Default().Entries(), cfg.Ladder); diff != "" {
		t.Errorf("ladder mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_ValidMinimal(t *testing.T) {
	cfg, err := NewLoader(filepath.Join("testdata", "valid-minimal.yaml"), "test").Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/tmp/vid2gif", cfg.WorkDir)
	assert.Equal(t, 5*MiB, cfg.Limits.CeilingBytes)
	assert.Equal(t, 4, cfg.Limits.MaxConcurrentJobs)
	assert.Equal(t, 90*time.Second, cfg.FFmpeg.ApplyTimeout)
	// Untouched keys keep their defaults.
	assert.Equal(t, 2*time.Minute, cfg.FFmpeg.AnalysisTimeout)
	assert.Equal(t, 200*MiB, cfg.Limits.MaxInputBytes)
}

func TestLoad_CustomLadderAndThresholds(t *testing.T) {
	cfg, err := NewLoader(filepath.Join("testdata", "valid-ladder.yaml"), "test").Load()
	require.NoError(t, err)

	want := []ladder.Entry{{FPS: 12, Width: 640}, {FPS: 10, Width: 480}, {FPS: 8, Width: 320}}
	if diff := cmp.Diff(want, cfg.Ladder); diff != "" {
		t.Errorf("ladder mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, cfg.Heuristic.Thresholds, 2)
	assert.Equal(t, 60.0, cfg.Heuristic.Thresholds[0].MinDuration)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("VID2GIF_CEILING_BYTES", "8MiB")
	t.Setenv("VID2GIF_MAX_CONCURRENT_JOBS", "6")
	t.Setenv("VID2GIF_APPLY_TIMEOUT", "3m")
	t.Setenv("VID2GIF_TRACING_SAMPLING_RATE", "0.25")

	cfg, err := NewLoader(filepath.Join("testdata", "valid-minimal.yaml"), "test").Load()
	require.NoError(t, err)

	assert.Equal(t, 8*MiB, cfg.Limits.CeilingBytes)
	assert.Equal(t, 6, cfg.Limits.MaxConcurrentJobs)
	assert.Equal(t, 3*time.Minute, cfg.FFmpeg.ApplyTimeout)
	assert.InDelta(t, 0.25, cfg.Tracing.SamplingRate, 1e-9)
}

func TestLoad_InvalidEnvKeepsLayerBelow(t *testing.T) {
	t.Setenv("VID2GIF_MAX_CONCURRENT_JOBS", "lots")

	cfg, err := NewLoader(filepath.Join("testdata", "valid-minimal.yaml"), "test").Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Limits.MaxConcurrentJobs)
}

func TestLoad_UnknownKeyFails(t *testing.T) {
	_, err := NewLoader(filepath.Join("testdata", "invalid-unknown-key.yaml"), "test").Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownConfigField), "got %v", err)
	assert.Contains(t, err.Error(), "unexpectedRootKey")
}

func TestLoad_InvalidTypeFails(t *testing.T) {
	_, err := NewLoader(filepath.Join("testdata", "invalid-type.yaml"), "test").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strict config parse error")
	assert.False(t, errors.Is(err, ErrUnknownConfigField))
}

func TestLoad_ValidationFails(t *testing.T) {
	_, err := NewLoader(filepath.Join("testdata", "invalid-validation.yaml"), "test").Load()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "limits.ceiling_bytes")
	assert.Contains(t, msg, "limits.max_concurrent_jobs")
	assert.ErrorIs(t, err, ladder.ErrNotShrinking)
}

func TestLoad_RejectsMultipleDocuments(t *testing.T) {
	_, err := NewLoader(filepath.Join("testdata", "multi-doc.yaml"), "test").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader(filepath.Join("testdata", "empty.yaml"), "test").Load()
	require.NoError(t, err)
	assert.Equal(t, 20*MiB, cfg.Limits.CeilingBytes)
}

func TestLoad_RejectsNonYAML(t *testing.T) {
	_, err := NewLoader(filepath.Join("testdata", "config.toml"), "test").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only YAML supported")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml"), "test").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read file")
}

func TestLoader_UnknownEnvKeys(t *testing.T) {
	t.Setenv("VID2GIF_LISTEN", ":9999")
	t.Setenv("VID2GIF_CEILNG_BYTES", "1MiB")

	l := NewLoader("", "test")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Listen)
	assert.Equal(t, []string{"VID2GIF_CEILNG_BYTES"}, l.UnknownEnvKeys())
}

func TestMarshal_RoundTrips(t *testing.T) {
	cfg := Defaults()
	cfg.Limits.CeilingBytes = 5_000_000

	data, err := Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ceiling_bytes: 5000000")
	assert.Contains(t, string(data), "max_input_bytes: 200 MiB")

	var back AppConfig
	require.NoError(t, yaml.Unmarshal(data, &back))
	if diff := cmp.Diff(cfg, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
