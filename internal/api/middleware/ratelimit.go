// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/ManuGH/vid2gif/internal/log"
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	RequestLimit int // 0 disables limiting
	WindowSize   time.Duration
	// KeyFunc extracts the rate limit key; nil means per client IP.
	KeyFunc func(r *http.Request) (string, error)
}

// RateLimit limits requests with httprate's sliding window counter.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.RequestLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			retry := int(cfg.WindowSize.Seconds())
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.WriteHeader(http.StatusTooManyRequests)

			reqID := log.RequestIDFromContext(r.Context())
			_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded","detail":"Too many requests. Please try again later.","request_id":"` + reqID + `"}` + "\n"))
		}),
	)
}
