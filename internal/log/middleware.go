// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"net/http"
	"time"
)

type accessWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *accessWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *accessWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

// Middleware logs one line per HTTP request with status, size and latency.
// Health and metrics probes are logged at debug level.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			aw := &accessWriter{ResponseWriter: w}
			next.ServeHTTP(aw, r)

			status := aw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger := WithComponentFromContext(r.Context(), "http")
			ev := logger.Info()
			switch {
			case status >= 500:
				ev = logger.Error()
			case r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics":
				ev = logger.Debug()
			}
			ev.Str(FieldEvent, "request.handled").
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Int("status", status).
				Int64("bytes", aw.bytes).
				Int64(FieldDurationMS, time.Since(start).Milliseconds()).
				Msg("http request")
		})
	}
}
