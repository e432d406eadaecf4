// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vid2gif/internal/config"
)

func TestBinaryChecker(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses unix executable bits")
	}
	t.Parallel()

	dir := t.TempDir()
	bin := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	c := NewBinaryChecker("ffmpeg", bin)
	assert.Equal(t, "ffmpeg", c.Name())
	res := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
	assert.Equal(t, bin, res.Message)

	res = NewBinaryChecker("ffprobe", filepath.Join(dir, "missing")).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.NotEmpty(t, res.Error)

	res = NewBinaryChecker("ffprobe", "").Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
}

func TestDirWritableChecker(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := NewDirWritableChecker("work_dir", dir)
	assert.Equal(t, "work_dir", c.Name())
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file must be removed")

	res := NewDirWritableChecker("work_dir", filepath.Join(dir, "absent")).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Contains(t, res.Error, "does not exist")

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	res = NewDirWritableChecker("work_dir", file).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Contains(t, res.Error, "not a directory")
}

func TestPerformStartupChecks(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.WorkDir = filepath.Join(t.TempDir(), "nested", "work")
	cfg.FFmpeg.Bin = "definitely-not-ffmpeg"
	cfg.FFmpeg.FFprobeBin = "definitely-not-ffprobe"

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, PerformStartupChecks(ctx, cfg), "missing tools only warn")
	assert.DirExists(t, cfg.WorkDir)

	cfg.Server.Listen = "no-port"
	assert.Error(t, PerformStartupChecks(ctx, cfg))

	cfg.Server.Listen = ":99999"
	assert.Error(t, PerformStartupChecks(ctx, cfg))
}
