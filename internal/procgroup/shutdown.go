// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procgroup

import (
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/vid2gif/internal/log"
	"github.com/ManuGH/vid2gif/internal/metrics"
)

// Terminate stops the process group of cmd: SIGTERM, wait up to grace for
// waitCh, then SIGKILL. It always drains waitCh and returns its error, so
// the caller must not read from waitCh again.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	logger := log.WithComponent("procgroup")

	signal(cmd, syscall.SIGTERM, "SIGTERM")

	select {
	case err := <-waitCh:
		if err == nil {
			metrics.IncProcWait("exit0")
		} else {
			metrics.IncProcWait("exit_nonzero")
		}
		return err
	case <-time.After(grace):
		logger.Warn().
			Str(log.FieldEvent, "proc.escalate").
			Int(log.FieldPID, cmd.Process.Pid).
			Dur("grace", grace).
			Msg("process group ignored SIGTERM, sending SIGKILL")
		signal(cmd, syscall.SIGKILL, "SIGKILL")

		err := <-waitCh
		if err == nil {
			metrics.IncProcWait("forced_exit0")
		} else {
			metrics.IncProcWait("forced_error")
		}
		return err
	}
}

func signal(cmd *exec.Cmd, sig syscall.Signal, name string) {
	if err := Kill(cmd, sig); err != nil {
		metrics.IncProcTerminate(name, "error")
		logger := log.WithComponent("procgroup")
		logger.Debug().Err(err).Str("signal", name).Int(log.FieldPID, cmd.Process.Pid).Msg("signal failed")
		return
	}
	metrics.IncProcTerminate(name, "sent")
}
