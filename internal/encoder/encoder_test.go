// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package encoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vid2gif/internal/artifact"
	"github.com/ManuGH/vid2gif/internal/ladder"
	"github.com/ManuGH/vid2gif/internal/testutil"
)

var entry = ladder.Entry{FPS: 10, Width: 320}

func setup(t *testing.T) (*artifact.Scope, string, string) {
	t.Helper()
	work := t.TempDir()
	scope, err := artifact.NewScope(context.Background(), work, "enc")
	require.NoError(t, err)
	in := filepath.Join(t.TempDir(), "in.mp4")
	require.NoError(t, os.WriteFile(in, []byte("video"), 0o600))
	return scope, work, in
}

func dirEmpty(t *testing.T, dir string) {
	t.Helper()
	list, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(list))
	for _, e := range list {
		names = append(names, e.Name())
	}
	assert.Empty(t, names, "work dir should hold no residue")
}

func TestArgsShape(t *testing.T) {
	e := &Encoder{}
	a := strings.Join(e.AnalysisArgs("in.mp4", "p.png", entry), " ")
	assert.Contains(t, a, "-vf fps=10,scale=320:-1:flags=lanczos,palettegen=stats_mode=diff")
	assert.True(t, strings.HasSuffix(a, "p.png"))

	b := strings.Join(e.ApplyArgs("in.mp4", "p.png", "out.gif", entry), " ")
	assert.Contains(t, b, "-i in.mp4 -i p.png")
	assert.Contains(t, b, "-lavfi fps=10,scale=320:-1:flags=lanczos[x];[x][1:v]paletteuse=dither=bayer:bayer_scale=5")
	assert.True(t, strings.HasSuffix(b, "-f gif out.gif"))

	custom := &Encoder{Dither: "sierra2_4a", Scaler: "bicubic", StatsMode: "full"}
	assert.Contains(t, strings.Join(custom.ApplyArgs("i", "p", "o", entry), " "), "flags=bicubic[x];[x][1:v]paletteuse=dither=sierra2_4a")
	assert.Contains(t, strings.Join(custom.AnalysisArgs("i", "p", entry), " "), "palettegen=stats_mode=full")
}

func TestEncodeSuccessLeavesOnlyCandidate(t *testing.T) {
	bin := testutil.FakeFFmpeg(t, testutil.WritePalette, testutil.WriteGIF(4096))
	scope, work, in := setup(t)
	e := &Encoder{FFmpegBin: bin}

	cand, err := e.Encode(context.Background(), scope, in, entry)
	require.NoError(t, err)
	require.NotNil(t, cand)

	size, err := cand.Size()
	require.NoError(t, err)
	assert.EqualValues(t, 4096, size)
	assert.Equal(t, artifact.KindCandidate, cand.Kind)

	list, err := os.ReadDir(work)
	require.NoError(t, err)
	require.Len(t, list, 1, "palette and pending files must be gone")
	assert.Equal(t, filepath.Base(cand.Path), list[0].Name())

	scope.Close()
	dirEmpty(t, work)
}

func TestAnalysisFailureSkipsApply(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "apply-ran")
	bin := testutil.FakeFFmpeg(t,
		testutil.FailWith("Invalid data found when processing input", 1),
		fmt.Sprintf("touch %q; head -c 10 /dev/zero > \"$out\"", marker))
	scope, work, in := setup(t)

	_, err := (&Encoder{FFmpegBin: bin}).Encode(context.Background(), scope, in, entry)
	var failure *EncodeFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, PhaseAnalysis, failure.Phase)
	assert.Equal(t, 1, failure.ExitCode)
	assert.False(t, failure.TimedOut)
	assert.Equal(t, []string{"Invalid data found when processing input"}, failure.Stderr)
	assert.Contains(t, failure.Error(), "Invalid data found")
	assert.NoFileExists(t, marker)
	dirEmpty(t, work)
}

func TestApplyFailureRemovesPartialOutput(t *testing.T) {
	bin := testutil.FakeFFmpeg(t, testutil.WritePalette,
		`head -c 100 /dev/zero > "$out"; echo 'Conversion failed!' >&2; exit 1`)
	scope, work, in := setup(t)

	_, err := (&Encoder{FFmpegBin: bin}).Encode(context.Background(), scope, in, entry)
	var failure *EncodeFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, PhaseApply, failure.Phase)
	dirEmpty(t, work)
}

func TestEmptyOutputsAreFailures(t *testing.T) {
	tests := []struct {
		name     string
		analysis string
		apply    string
		phase    Phase
	}{
		{name: "no palette", analysis: "exit 0", apply: testutil.WriteGIF(10), phase: PhaseAnalysis},
		{name: "empty gif", analysis: testutil.WritePalette, apply: `: > "$out"`, phase: PhaseApply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin := testutil.FakeFFmpeg(t, tt.analysis, tt.apply)
			scope, work, in := setup(t)

			_, err := (&Encoder{FFmpegBin: bin}).Encode(context.Background(), scope, in, entry)
			var failure *EncodeFailure
			require.ErrorAs(t, err, &failure)
			assert.Equal(t, tt.phase, failure.Phase)
			assert.ErrorIs(t, err, ErrEmptyOutput)
			dirEmpty(t, work)
		})
	}
}

func TestPhaseTimeoutIsEncodeFailure(t *testing.T) {
	tests := []struct {
		name     string
		analysis string
		apply    string
		phase    Phase
	}{
		{name: "analysis hangs", analysis: "sleep 30", apply: testutil.WriteGIF(10), phase: PhaseAnalysis},
		{name: "apply hangs", analysis: testutil.WritePalette, apply: `head -c 10 /dev/zero > "$out"; sleep 30`, phase: PhaseApply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin := testutil.FakeFFmpeg(t, tt.analysis, tt.apply)
			scope, work, in := setup(t)
			e := &Encoder{
				FFmpegBin:       bin,
				AnalysisTimeout: 200 * time.Millisecond,
				ApplyTimeout:    200 * time.Millisecond,
				KillGrace:       100 * time.Millisecond,
			}

			start := time.Now()
			_, err := e.Encode(context.Background(), scope, in, entry)
			var failure *EncodeFailure
			require.ErrorAs(t, err, &failure)
			assert.Equal(t, tt.phase, failure.Phase)
			assert.True(t, failure.TimedOut)
			assert.ErrorIs(t, err, ErrTimeout)
			assert.Less(t, time.Since(start), 5*time.Second)
			dirEmpty(t, work)
		})
	}
}

func TestContextCancelStopsEncoder(t *testing.T) {
	bin := testutil.FakeFFmpeg(t, "sleep 30", testutil.WriteGIF(10))
	scope, work, in := setup(t)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err := (&Encoder{FFmpegBin: bin, KillGrace: 100 * time.Millisecond}).Encode(ctx, scope, in, entry)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	dirEmpty(t, work)
}

func TestEncodeRealFFmpeg(t *testing.T) {
	ffmpeg, _ := testutil.RequireFFmpeg(t)
	in := filepath.Join(t.TempDir(), "src.mp4")
	gen := exec.Command(ffmpeg, "-v", "error", "-f", "lavfi", "-i", "testsrc=duration=1:size=320x240:rate=15", "-pix_fmt", "yuv420p", in)
	require.NoError(t, gen.Run())

	work := t.TempDir()
	scope, err := artifact.NewScope(context.Background(), work, "real")
	require.NoError(t, err)
	defer scope.Close()

	cand, err := (&Encoder{FFmpegBin: ffmpeg}).Encode(context.Background(), scope, in, ladder.Entry{FPS: 8, Width: 160})
	require.NoError(t, err)
	head := make([]byte, 6)
	f, err := os.Open(cand.Path)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Read(head)
	require.NoError(t, err)
	assert.Equal(t, "GIF89a", string(head))
}
