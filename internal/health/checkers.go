// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// BinaryChecker reports whether an executable resolves, either as a path or
// through PATH.
type BinaryChecker struct {
	name string
	bin  string
}

// NewBinaryChecker creates a checker for an external tool such as ffmpeg.
func NewBinaryChecker(name, bin string) *BinaryChecker {
	return &BinaryChecker{name: name, bin: bin}
}

func (c *BinaryChecker) Name() string {
	return c.name
}

func (c *BinaryChecker) Check(_ context.Context) CheckResult {
	if c.bin == "" {
		return CheckResult{Status: StatusUnhealthy, Error: "binary not configured"}
	}
	path, err := exec.LookPath(c.bin)
	if err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   err.Error(),
			Message: c.bin,
		}
	}
	return CheckResult{Status: StatusHealthy, Message: path}
}

// DirWritableChecker verifies a directory exists and accepts new files.
type DirWritableChecker struct {
	name string
	path string
}

// NewDirWritableChecker creates a checker for the artifact work directory.
func NewDirWritableChecker(name, path string) *DirWritableChecker {
	return &DirWritableChecker{name: name, path: path}
}

func (c *DirWritableChecker) Name() string {
	return c.name
}

func (c *DirWritableChecker) Check(_ context.Context) CheckResult {
	if err := checkDirWritable(c.path); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: c.path}
	}
	return CheckResult{Status: StatusHealthy, Message: "writable"}
}

func checkDirWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	f, err := os.CreateTemp(path, ".write_test-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}
