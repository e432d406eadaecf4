// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPhase     = "phase"
	FieldPID       = "pid"
	FieldExitCode  = "exit_code"

	// Ladder / attempt fields
	FieldAttempt    = "attempt"
	FieldLadderIdx  = "ladder_index"
	FieldFPS        = "fps"
	FieldWidth      = "width"
	FieldStartIdx   = "start_index"
	FieldComplexity = "complexity"

	// Size / time fields
	FieldSizeBytes    = "size_bytes"
	FieldCeilingBytes = "ceiling_bytes"
	FieldDurationSec  = "duration_s"
	FieldDurationMS   = "duration_ms"

	// Path fields
	FieldPath      = "path"
	FieldInputPath = "input_path"
	FieldFinalPath = "final_path"

	// Outcome fields
	FieldReason = "reason"
	FieldStderr = "stderr_tail"
)
