// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by the transcode spans.
const (
	RequestIDKey     = "vid2gif.request_id"
	InputBytesKey    = "vid2gif.input_bytes"
	DurationKey      = "vid2gif.duration_s"
	CeilingKey       = "vid2gif.ceiling_bytes"
	StartIndexKey    = "vid2gif.start_index"
	LadderIndexKey   = "vid2gif.ladder_index"
	FPSKey           = "vid2gif.fps"
	WidthKey         = "vid2gif.width"
	PhaseKey         = "vid2gif.phase"
	CandidateKey     = "vid2gif.candidate_bytes"
	AttemptResultKey = "vid2gif.attempt_result"
	OutcomeKey       = "vid2gif.outcome"

	ErrorTypeKey = "error.type"
)

// FitAttributes describe a size-fit request.
func FitAttributes(requestID string, inputBytes, ceiling int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RequestIDKey, requestID),
		attribute.Int64(InputBytesKey, inputBytes),
		attribute.Int64(CeilingKey, ceiling),
	}
}

// EntryAttributes describe one ladder entry.
func EntryAttributes(index, fps, width int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(LadderIndexKey, index),
		attribute.Int(FPSKey, fps),
		attribute.Int(WidthKey, width),
	}
}

// RecordError marks span as failed with a coarse error type.
func RecordError(span trace.Span, err error, errorType string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.String(ErrorTypeKey, errorType))
	span.SetStatus(codes.Error, errorType)
}
