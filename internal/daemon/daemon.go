// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon owns the server lifecycle: telemetry, listener, graceful
// shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/vid2gif/internal/config"
	"github.com/ManuGH/vid2gif/internal/log"
	"github.com/ManuGH/vid2gif/internal/telemetry"
)

// Daemon represents one running vid2gif server.
type Daemon struct {
	cfg       config.AppConfig
	handler   http.Handler
	server    *http.Server
	listener  net.Listener
	abort     context.CancelFunc
	logger    zerolog.Logger
	telemetry *telemetry.Provider
}

// New creates a daemon serving handler.
func New(cfg config.AppConfig, handler http.Handler) (*Daemon, error) {
	if handler == nil {
		return nil, ErrMissingAPIHandler
	}
	return &Daemon{
		cfg:     cfg,
		handler: handler,
		logger:  log.WithComponent("daemon"),
	}, nil
}

// Listen binds the configured address. Run calls it when needed; calling
// it first lets callers learn the bound address.
func (d *Daemon) Listen() (net.Addr, error) {
	if d.listener != nil {
		return d.listener.Addr(), nil
	}
	ln, err := net.Listen("tcp", d.cfg.Server.Listen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerStartFailed, err)
	}
	d.listener = ln
	return ln.Addr(), nil
}

// Run serves until ctx is canceled or the server fails, then shuts down
// within the configured timeout.
func (d *Daemon) Run(ctx context.Context) error {
	addr, err := d.Listen()
	if err != nil {
		return err
	}
	d.initTelemetry(ctx)

	// Requests outlive ctx so that shutdown can drain them; abort cancels
	// whatever is still running once the drain deadline passes.
	base, abort := context.WithCancel(context.WithoutCancel(ctx))
	defer abort()
	d.abort = abort

	d.server = &http.Server{
		Handler:           d.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       d.cfg.Server.ReadTimeout,
		WriteTimeout:      d.cfg.Server.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return base },
	}

	d.logger.Info().
		Str(log.FieldEvent, "server.started").
		Str("version", d.cfg.Version).
		Str("listen", addr.String()).
		Str("work_dir", d.cfg.WorkDir).
		Int("max_concurrent_jobs", d.cfg.Limits.MaxConcurrentJobs).
		Str("ceiling", d.cfg.Limits.CeilingBytes.String()).
		Msg("vid2gif listening")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := d.server.Serve(d.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%w: %v", ErrServerStartFailed, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return d.shutdown()
	})
	return g.Wait()
}

// shutdown drains in-flight requests. A fresh context is used because the
// run context is already done.
func (d *Daemon) shutdown() error {
	d.logger.Info().Str(log.FieldEvent, "server.stopping").Msg("shutting down")

	timeout := d.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := d.server.Shutdown(ctx); err != nil {
		d.logger.Error().Err(err).Msg("HTTP server shutdown error, aborting in-flight conversions")
		d.abort()
		errs = append(errs, err)
	}
	if err := d.telemetry.Shutdown(ctx); err != nil {
		d.logger.Error().Err(err).Msg("telemetry shutdown error")
		errs = append(errs, err)
	}
	d.logger.Info().Str(log.FieldEvent, "server.stopped").Msg("daemon stopped")
	return errors.Join(errs...)
}

// initTelemetry starts tracing when enabled. Failure only disables tracing.
func (d *Daemon) initTelemetry(ctx context.Context) {
	if !d.cfg.Tracing.Enabled {
		return
	}
	tc := d.cfg.Telemetry()
	provider, err := telemetry.NewProvider(ctx, tc)
	if err != nil {
		d.logger.Warn().Err(err).Msg("telemetry initialization failed, continuing without tracing")
		return
	}
	d.telemetry = provider
	d.logger.Info().
		Str("exporter", tc.ExporterType).
		Str("endpoint", tc.Endpoint).
		Float64("sampling_rate", tc.SamplingRate).
		Msg("telemetry initialized")
}
