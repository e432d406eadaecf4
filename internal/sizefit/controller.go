// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sizefit searches the quality ladder for the first GIF rendition of
// an input that fits under a byte ceiling.
//
// The search is first-fit: starting at the index picked by the heuristic
// selector it walks the ladder in order, never revisits an entry and stops
// at the first candidate within the ceiling. Encoder failures and oversize
// candidates both advance to the next entry. Attempts are strictly
// sequential; each request owns an artifact scope that is closed on every
// exit path, leaving at most the accepted output behind.
package sizefit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ManuGH/vid2gif/internal/artifact"
	"github.com/ManuGH/vid2gif/internal/encoder"
	"github.com/ManuGH/vid2gif/internal/ladder"
	"github.com/ManuGH/vid2gif/internal/log"
	"github.com/ManuGH/vid2gif/internal/metrics"
	"github.com/ManuGH/vid2gif/internal/probe"
	"github.com/ManuGH/vid2gif/internal/telemetry"
)

// Prober reports duration and size of an input. It must not fail; an
// unknown duration is reported as zero.
type Prober interface {
	Probe(ctx context.Context, path string) probe.Result
}

// Encoder renders one ladder entry. On success the returned artifact is
// owned by scope; on failure nothing it produced may remain on disk.
type Encoder interface {
	Encode(ctx context.Context, scope *artifact.Scope, input string, entry ladder.Entry) (*artifact.Artifact, error)
}

// Request is one transcode job.
type Request struct {
	ID           string // identity used in artifact names; generated when empty
	InputPath    string
	OutputPath   string // where to place the result; empty keeps it in the work dir
	CeilingBytes int64
}

// Controller runs size-fit searches. It holds no per-request state and may
// be shared by concurrent callers.
type Controller struct {
	Prober   Prober
	Encoder  Encoder
	Ladder   ladder.Ladder
	Selector ladder.Selector
	WorkDir  string
}

// Fit runs the search for req. It never returns an error: every failure is
// expressed as an Outcome with a Reason.
func (c *Controller) Fit(ctx context.Context, req Request) Outcome {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	ctx = log.ContextWithJobID(ctx, req.ID)
	logger := log.WithComponentFromContext(ctx, "sizefit")

	ctx, span := telemetry.Tracer("sizefit").Start(ctx, "sizefit.fit")
	defer span.End()

	metrics.IncJobsInFlight()
	defer metrics.DecJobsInFlight()

	out := c.fit(ctx, logger, req)

	reason := string(out.Reason)
	if out.OK {
		reason = "ok"
		metrics.ObserveOutputBytes(out.SizeBytes)
		span.SetAttributes(telemetry.EntryAttributes(out.EntryIndex, out.Entry.FPS, out.Entry.Width)...)
	} else {
		telemetry.RecordError(span, out.Err(), reason)
	}
	metrics.RecordOutcome(reason)
	span.SetAttributes(
		attribute.String(telemetry.OutcomeKey, reason),
		attribute.Int(telemetry.StartIndexKey, out.StartIndex),
	)
	return out
}

func (c *Controller) fit(ctx context.Context, logger zerolog.Logger, req Request) Outcome {
	if req.InputPath == "" {
		return failure(ReasonInvalidRequest, errors.New("empty input path"))
	}
	if req.CeilingBytes <= 0 {
		return failure(ReasonInvalidRequest, fmt.Errorf("size ceiling must be positive, got %d", req.CeilingBytes))
	}
	if c.Ladder.Len() == 0 {
		return failure(ReasonInvalidRequest, ladder.ErrEmpty)
	}
	fi, err := os.Stat(req.InputPath)
	switch {
	case err != nil:
		return failure(ReasonInputUnreadable, err)
	case !fi.Mode().IsRegular():
		return failure(ReasonInputUnreadable, fmt.Errorf("%s is not a regular file", req.InputPath))
	case fi.Size() == 0:
		return failure(ReasonInputUnreadable, fmt.Errorf("%s is empty", req.InputPath))
	}

	scope, err := artifact.NewScope(ctx, c.WorkDir, req.ID)
	if err != nil {
		return failure(ReasonOutputUnwritable, err)
	}
	defer scope.Close()

	pr := c.Prober.Probe(ctx, req.InputPath)
	start := c.Selector.Select(pr.DurationSeconds, pr.SizeBytes)
	metrics.ObserveStartIndex(start)
	cx := ladder.Complexity(pr.DurationSeconds, pr.SizeBytes)

	logger.Info().
		Str(log.FieldEvent, "fit.started").
		Str(log.FieldInputPath, req.InputPath).
		Float64(log.FieldDurationSec, pr.DurationSeconds).
		Bool("duration_known", pr.DurationKnown).
		Int64(log.FieldSizeBytes, pr.SizeBytes).
		Float64(log.FieldComplexity, cx).
		Int64(log.FieldCeilingBytes, req.CeilingBytes).
		Int(log.FieldStartIdx, start).
		Msg("size-fit search started")

	out := Outcome{StartIndex: start, Probe: pr, EntryIndex: -1}

	for idx := start; idx < c.Ladder.Len(); idx++ {
		if err := ctx.Err(); err != nil {
			logger.Info().Err(err).Str(log.FieldEvent, "fit.canceled").Int(log.FieldLadderIdx, idx).Msg("stopping before next attempt")
			out.Reason, out.cause = ReasonCanceled, err
			return out
		}

		entry := c.Ladder.At(idx)
		att, cand := c.attempt(ctx, logger, scope, req, idx, entry)
		out.Attempts = append(out.Attempts, att)
		metrics.RecordAttempt(strconv.Itoa(idx), string(att.Result))

		switch att.Result {
		case AttemptOK:
			final, err := c.deliver(scope, cand, req.OutputPath)
			if err != nil {
				logger.Error().Err(err).Str(log.FieldEvent, "fit.output_unwritable").Msg("accepted candidate could not be delivered")
				out.Reason, out.cause = ReasonOutputUnwritable, err
				return out
			}
			res := success(final, idx, entry, att.SizeBytes)
			res.StartIndex, res.Probe, res.Attempts = start, pr, out.Attempts
			logger.Info().
				Str(log.FieldEvent, "fit.succeeded").
				Int(log.FieldLadderIdx, idx).
				Int(log.FieldFPS, entry.FPS).
				Int(log.FieldWidth, entry.Width).
				Int64(log.FieldSizeBytes, att.SizeBytes).
				Int(log.FieldAttempt, len(out.Attempts)).
				Str(log.FieldFinalPath, final).
				Msg("output fits the ceiling")
			return res
		case AttemptEncodeFailed:
			if ctx.Err() != nil {
				out.Reason, out.cause = ReasonCanceled, ctx.Err()
				return out
			}
		}
	}

	logger.Warn().
		Str(log.FieldEvent, "fit.exhausted").
		Int(log.FieldAttempt, len(out.Attempts)).
		Int(log.FieldStartIdx, start).
		Int64(log.FieldCeilingBytes, req.CeilingBytes).
		Msg("no ladder entry fits the ceiling")
	out.Reason = ReasonAllAttemptsExhausted
	return out
}

// attempt runs one entry. A returned candidate is only non-nil for AttemptOK.
func (c *Controller) attempt(ctx context.Context, logger zerolog.Logger, scope *artifact.Scope, req Request, idx int, entry ladder.Entry) (Attempt, *artifact.Artifact) {
	ctx, span := telemetry.Tracer("sizefit").Start(ctx, "sizefit.attempt")
	defer span.End()
	span.SetAttributes(telemetry.EntryAttributes(idx, entry.FPS, entry.Width)...)

	att := Attempt{Index: idx, Entry: entry}
	started := time.Now()
	cand, err := c.encode(ctx, scope, req.InputPath, entry)
	att.Elapsed = time.Since(started)

	if err != nil {
		att.Result, att.Err = AttemptEncodeFailed, err
		var ef *encoder.EncodeFailure
		if errors.As(err, &ef) {
			att.Phase, att.TimedOut = ef.Phase, ef.TimedOut
		}
		span.SetAttributes(attribute.String(telemetry.AttemptResultKey, string(att.Result)))
		telemetry.RecordError(span, err, string(att.Result))
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "attempt.encode_failed").
			Int(log.FieldLadderIdx, idx).
			Int(log.FieldFPS, entry.FPS).
			Int(log.FieldWidth, entry.Width).
			Str(log.FieldPhase, string(att.Phase)).
			Bool("timed_out", att.TimedOut).
			Msg("encode failed, advancing to next entry")
		return att, nil
	}

	size, err := cand.Size()
	if err != nil {
		cand.Release()
		att.Result, att.Err = AttemptEncodeFailed, fmt.Errorf("stat candidate: %w", err)
		telemetry.RecordError(span, att.Err, string(att.Result))
		logger.Warn().Err(err).Str(log.FieldEvent, "attempt.encode_failed").Int(log.FieldLadderIdx, idx).Msg("candidate vanished")
		return att, nil
	}
	att.SizeBytes = size
	span.SetAttributes(attribute.Int64(telemetry.CandidateKey, size))

	if size > req.CeilingBytes {
		cand.Release()
		att.Result = AttemptSizeExceeded
		span.SetAttributes(attribute.String(telemetry.AttemptResultKey, string(att.Result)))
		logger.Warn().
			Str(log.FieldEvent, "attempt.size_exceeded").
			Int(log.FieldLadderIdx, idx).
			Int(log.FieldFPS, entry.FPS).
			Int(log.FieldWidth, entry.Width).
			Int64(log.FieldSizeBytes, size).
			Int64(log.FieldCeilingBytes, req.CeilingBytes).
			Msg("candidate over ceiling, advancing to next entry")
		return att, nil
	}

	att.Result = AttemptOK
	span.SetAttributes(attribute.String(telemetry.AttemptResultKey, string(att.Result)))
	return att, cand
}

// errNoCandidate marks an encoder that reported success without output.
var errNoCandidate = errors.New("encoder returned no candidate")

// encode shields the loop from a panicking encoder; a panic or a missing
// candidate counts as a failed attempt.
func (c *Controller) encode(ctx context.Context, scope *artifact.Scope, input string, entry ladder.Entry) (cand *artifact.Artifact, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger := log.WithComponentFromContext(ctx, "sizefit")
			logger.Error().
				Str(log.FieldEvent, "panic.recovered").
				Interface("panic_value", rec).
				Str("stack_trace", string(debug.Stack())).
				Msg("encoder panicked")
			cand, err = nil, fmt.Errorf("encoder panic: %v", rec)
		}
	}()
	cand, err = c.Encoder.Encode(ctx, scope, input, entry)
	if err == nil && cand == nil {
		err = errNoCandidate
	}
	return cand, err
}

// deliver moves the accepted candidate to its final place and exempts it
// from scope cleanup. Without a destination it stays in the work dir.
func (c *Controller) deliver(scope *artifact.Scope, cand *artifact.Artifact, dest string) (string, error) {
	if dest == "" {
		scope.Keep(cand)
		return cand.Path, nil
	}
	if err := cand.MoveTo(dest); err != nil {
		cand.Release()
		return "", err
	}
	return dest, nil
}
