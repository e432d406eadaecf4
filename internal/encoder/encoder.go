// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package encoder turns a video into a GIF for one ladder entry using the
// two-pass ffmpeg palette workflow: palettegen builds an optimised 256-colour
// palette, paletteuse maps the frames onto it.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ManuGH/vid2gif/internal/artifact"
	"github.com/ManuGH/vid2gif/internal/ladder"
	"github.com/ManuGH/vid2gif/internal/log"
	"github.com/ManuGH/vid2gif/internal/metrics"
	"github.com/ManuGH/vid2gif/internal/procgroup"
	"github.com/ManuGH/vid2gif/internal/telemetry"
)

// Phase names one of the two ffmpeg passes.
type Phase string

const (
	PhaseAnalysis Phase = "analysis"
	PhaseApply    Phase = "apply"
)

// Defaults used when the corresponding Encoder field is zero.
const (
	DefaultAnalysisTimeout = 2 * time.Minute
	DefaultApplyTimeout    = 5 * time.Minute
	DefaultDither          = "bayer:bayer_scale=5"
	DefaultStatsMode       = "diff"
	DefaultScaler          = "lanczos"
	defaultStderrLines     = 20
)

// ErrTimeout matches failures caused by a phase outliving its timeout.
var ErrTimeout = procgroup.ErrTimeout

// ErrEmptyOutput is the cause when ffmpeg exits cleanly without producing output.
var ErrEmptyOutput = errors.New("encoder produced no output")

// EncodeFailure reports a failed attempt. Phase says which pass failed.
type EncodeFailure struct {
	Phase    Phase
	Entry    ladder.Entry
	TimedOut bool
	ExitCode int
	Stderr   []string
	Err      error
}

func (f *EncodeFailure) Error() string {
	msg := fmt.Sprintf("%s phase failed for %s: %v", f.Phase, f.Entry, f.Err)
	if len(f.Stderr) > 0 {
		msg += ": " + f.Stderr[len(f.Stderr)-1]
	}
	return msg
}

func (f *EncodeFailure) Unwrap() error { return f.Err }

// Encoder runs ffmpeg. The zero value is usable and picks the defaults.
// Resampler, dither and palette stats mode are fixed per instance so that
// identical inputs yield identical outputs.
type Encoder struct {
	FFmpegBin       string
	AnalysisTimeout time.Duration
	ApplyTimeout    time.Duration
	KillGrace       time.Duration
	Dither          string
	StatsMode       string
	Scaler          string
	StderrLines     int
}

func (e *Encoder) bin() string {
	if b := strings.TrimSpace(e.FFmpegBin); b != "" {
		return b
	}
	return "ffmpeg"
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

func (e *Encoder) filterChain(entry ladder.Entry) string {
	return fmt.Sprintf("fps=%d,scale=%d:-1:flags=%s", entry.FPS, entry.Width, orDefault(e.Scaler, DefaultScaler))
}

// AnalysisArgs returns the palettegen invocation.
func (e *Encoder) AnalysisArgs(input, palette string, entry ladder.Entry) []string {
	vf := fmt.Sprintf("%s,palettegen=stats_mode=%s", e.filterChain(entry), orDefault(e.StatsMode, DefaultStatsMode))
	return []string{"-hide_banner", "-nostdin", "-v", "error", "-y", "-i", input, "-vf", vf, "-f", "image2", palette}
}

// ApplyArgs returns the paletteuse invocation.
func (e *Encoder) ApplyArgs(input, palette, output string, entry ladder.Entry) []string {
	lavfi := fmt.Sprintf("%s[x];[x][1:v]paletteuse=dither=%s", e.filterChain(entry), orDefault(e.Dither, DefaultDither))
	return []string{"-hide_banner", "-nostdin", "-v", "error", "-y", "-i", input, "-i", palette, "-lavfi", lavfi, "-f", "gif", output}
}

// Encode produces a candidate GIF for entry. On success the returned
// artifact belongs to scope and holds a complete file; the palette is gone.
// On failure the error is an *EncodeFailure and nothing is left on disk.
func (e *Encoder) Encode(ctx context.Context, scope *artifact.Scope, input string, entry ladder.Entry) (*artifact.Artifact, error) {
	palette := scope.New(artifact.KindPalette, "png")
	defer palette.Release()

	if err := e.runPhase(ctx, PhaseAnalysis, entry, orDefault(e.AnalysisTimeout, DefaultAnalysisTimeout),
		e.AnalysisArgs(input, palette.Path, entry)); err != nil {
		return nil, err
	}
	if fi, err := os.Stat(palette.Path); err != nil || fi.Size() == 0 {
		return nil, &EncodeFailure{Phase: PhaseAnalysis, Entry: entry, Err: ErrEmptyOutput}
	}

	candidate := scope.New(artifact.KindCandidate, "gif")
	pending, commit, discard, err := pendingOutput(candidate.Path)
	if err != nil {
		candidate.Release()
		return nil, &EncodeFailure{Phase: PhaseApply, Entry: entry, ExitCode: -1, Err: fmt.Errorf("reserve output: %w", err)}
	}
	defer discard()

	if err := e.runPhase(ctx, PhaseApply, entry, orDefault(e.ApplyTimeout, DefaultApplyTimeout),
		e.ApplyArgs(input, palette.Path, pending, entry)); err != nil {
		candidate.Release()
		return nil, err
	}
	if fi, err := os.Stat(pending); err != nil || fi.Size() == 0 {
		candidate.Release()
		return nil, &EncodeFailure{Phase: PhaseApply, Entry: entry, Err: ErrEmptyOutput}
	}
	if err := commit(); err != nil {
		candidate.Release()
		return nil, &EncodeFailure{Phase: PhaseApply, Entry: entry, Err: fmt.Errorf("commit output: %w", err)}
	}
	return candidate, nil
}

func (e *Encoder) runPhase(ctx context.Context, phase Phase, entry ladder.Entry, timeout time.Duration, args []string) error {
	ctx, span := telemetry.Tracer("encoder").Start(ctx, "encoder."+string(phase))
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.PhaseKey, string(phase)),
		attribute.Int(telemetry.FPSKey, entry.FPS),
		attribute.Int(telemetry.WidthKey, entry.Width),
	)

	logger := log.WithComponentFromContext(ctx, "encoder")
	ring := NewLineRing(orDefault(e.StderrLines, defaultStderrLines))

	cmd := exec.Command(e.bin(), args...)
	cmd.Stderr = ring

	logger.Debug().
		Str(log.FieldEvent, "phase.start").
		Str(log.FieldPhase, string(phase)).
		Int(log.FieldFPS, entry.FPS).
		Int(log.FieldWidth, entry.Width).
		Strs("args", args).
		Msg("starting ffmpeg")

	res, err := procgroup.Run(ctx, cmd, timeout, e.KillGrace)
	result := "ok"
	switch {
	case res.TimedOut:
		result = "timeout"
	case err != nil:
		result = "error"
	}
	metrics.ObservePhase(string(phase), result, res.Elapsed)

	if err == nil {
		logger.Debug().
			Str(log.FieldEvent, "phase.done").
			Str(log.FieldPhase, string(phase)).
			Int64(log.FieldDurationMS, res.Elapsed.Milliseconds()).
			Msg("ffmpeg finished")
		return nil
	}

	failure := &EncodeFailure{
		Phase:    phase,
		Entry:    entry,
		TimedOut: res.TimedOut,
		ExitCode: res.ExitCode,
		Stderr:   ring.Lines(),
		Err:      err,
	}
	telemetry.RecordError(span, failure, result)
	logger.Warn().
		Err(err).
		Str(log.FieldEvent, "phase.failed").
		Str(log.FieldPhase, string(phase)).
		Bool("timed_out", res.TimedOut).
		Int(log.FieldExitCode, res.ExitCode).
		Strs(log.FieldStderr, failure.Stderr).
		Int64(log.FieldDurationMS, res.Elapsed.Milliseconds()).
		Msg("ffmpeg phase failed")
	return failure
}
