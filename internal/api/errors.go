// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/vid2gif/internal/log"
	"github.com/ManuGH/vid2gif/internal/sizefit"
)

// Problem is the JSON body of every error response.
type Problem struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, code int, kind, detail string) {
	writeJSON(w, code, Problem{
		Error:     kind,
		Detail:    detail,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

// outcomeStatus maps a failed outcome to an HTTP status and error code.
func outcomeStatus(out sizefit.Outcome) (int, string) {
	switch out.Reason {
	case sizefit.ReasonInputUnreadable:
		return http.StatusBadRequest, "input_unreadable"
	case sizefit.ReasonInvalidRequest:
		return http.StatusBadRequest, "invalid_request"
	case sizefit.ReasonAllAttemptsExhausted:
		return http.StatusUnprocessableEntity, "conversion_failed"
	case sizefit.ReasonCanceled:
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// isTooLarge reports whether err came from an http.MaxBytesReader limit.
func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
