// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup runs external tools in their own process group so that a
// timeout or cancellation can take down the whole tree (ffmpeg may fork
// helpers), not just the leader.
package procgroup

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrTimeout is returned by Run when the command outlived its deadline.
var ErrTimeout = errors.New("process timed out")

// DefaultGrace is the SIGTERM to SIGKILL escalation delay used when none is given.
const DefaultGrace = 2 * time.Second

// Result describes how a supervised command ended.
type Result struct {
	Elapsed  time.Duration
	TimedOut bool // hard timeout fired
	Canceled bool // parent context ended first
	ExitCode int  // -1 when the process did not exit normally
}

// Start launches cmd in a new process group and returns a channel that
// receives the result of cmd.Wait exactly once.
func Start(cmd *exec.Cmd) (<-chan error, error) {
	Set(cmd)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()
	return waitCh, nil
}

// Run starts cmd and waits for it, bounded by timeout. When the timeout
// fires or ctx ends the process group is terminated with Terminate and the
// returned error wraps ErrTimeout or the context error respectively.
// A zero timeout means only ctx bounds the run.
func Run(ctx context.Context, cmd *exec.Cmd, timeout, grace time.Duration) (Result, error) {
	if grace <= 0 {
		grace = DefaultGrace
	}
	start := time.Now()
	waitCh, err := Start(cmd)
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var res Result
	select {
	case err = <-waitCh:
	case <-deadline:
		res.TimedOut = true
		_ = Terminate(cmd, waitCh, grace)
		err = fmt.Errorf("%s after %s: %w", cmd.Path, timeout, ErrTimeout)
	case <-ctx.Done():
		res.Canceled = true
		_ = Terminate(cmd, waitCh, grace)
		err = fmt.Errorf("%s: %w", cmd.Path, ctx.Err())
	}
	res.Elapsed = time.Since(start)
	res.ExitCode = -1
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	return res, err
}
