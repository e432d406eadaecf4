// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sizefit

import (
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/vid2gif/internal/encoder"
	"github.com/ManuGH/vid2gif/internal/ladder"
	"github.com/ManuGH/vid2gif/internal/probe"
)

// Reason explains a failed Outcome.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonAllAttemptsExhausted Reason = "all_attempts_exhausted"
	ReasonInputUnreadable      Reason = "input_unreadable"
	ReasonInvalidRequest       Reason = "invalid_request"
	ReasonCanceled             Reason = "canceled"
	ReasonOutputUnwritable     Reason = "output_unwritable"
)

var (
	ErrAllAttemptsExhausted = errors.New("no ladder entry produced an output within the size ceiling")
	ErrInputUnreadable      = errors.New("input is missing, empty or not a regular file")
	ErrInvalidRequest       = errors.New("invalid transcode request")
	ErrOutputUnwritable     = errors.New("output could not be written")
)

// AttemptResult classifies one attempt.
type AttemptResult string

const (
	AttemptOK           AttemptResult = "ok"
	AttemptEncodeFailed AttemptResult = "encode_failed"
	AttemptSizeExceeded AttemptResult = "size_exceeded"
)

// Attempt records one ladder entry applied to a request.
type Attempt struct {
	Index     int
	Entry     ladder.Entry
	Result    AttemptResult
	SizeBytes int64         // candidate size, zero when encoding failed
	Phase     encoder.Phase // failing phase, empty unless encode_failed
	TimedOut  bool
	Elapsed   time.Duration
	Err       error
}

// Outcome is the only value that crosses the controller boundary.
type Outcome struct {
	OK         bool
	OutputPath string
	Entry      ladder.Entry
	EntryIndex int
	SizeBytes  int64

	Reason     Reason
	StartIndex int
	Probe      probe.Result
	Attempts   []Attempt
	cause      error
}

// Err returns nil for a success and an error wrapping one of the package
// sentinels (or the context error) otherwise.
func (o Outcome) Err() error {
	if o.OK {
		return nil
	}
	switch o.Reason {
	case ReasonAllAttemptsExhausted:
		return fmt.Errorf("%w after %d attempts", ErrAllAttemptsExhausted, len(o.Attempts))
	case ReasonInputUnreadable:
		return wrapCause(ErrInputUnreadable, o.cause)
	case ReasonInvalidRequest:
		return wrapCause(ErrInvalidRequest, o.cause)
	case ReasonOutputUnwritable:
		return wrapCause(ErrOutputUnwritable, o.cause)
	case ReasonCanceled:
		if o.cause != nil {
			return fmt.Errorf("transcode canceled: %w", o.cause)
		}
		return errors.New("transcode canceled")
	default:
		return fmt.Errorf("transcode failed: %s", o.Reason)
	}
}

func wrapCause(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %v", sentinel, cause)
}

func success(path string, idx int, entry ladder.Entry, size int64) Outcome {
	return Outcome{OK: true, OutputPath: path, Entry: entry, EntryIndex: idx, SizeBytes: size}
}

func failure(reason Reason, cause error) Outcome {
	return Outcome{Reason: reason, EntryIndex: -1, cause: cause}
}
