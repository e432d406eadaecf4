// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
)

// FakeTool writes an executable POSIX shell script named name into a
// temporary directory and returns its path. The script body sees the last
// command line argument as $out. Tests are skipped where no shell exists.
func FakeTool(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools need a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	script := "#!/bin/sh\nfor out; do :; done\n" + body + "\n"
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake %s: %v", name, err)
	}
	return path
}

// FakeFFmpeg returns an ffmpeg stand-in. analysis runs for the palettegen
// pass and apply for the paletteuse pass; both may write to "$out".
func FakeFFmpeg(t *testing.T, analysis, apply string) string {
	t.Helper()
	body := "case \"$*\" in\n" +
		"*palettegen*)\n" + analysis + "\n;;\n" +
		"*paletteuse*)\n" + apply + "\n;;\n" +
		"*) echo \"unexpected invocation: $*\" >&2; exit 64;;\n" +
		"esac\n"
	return FakeTool(t, "ffmpeg", body)
}

// WritePalette is an analysis body that produces a small palette file.
const WritePalette = `printf 'PNGPALETTE' > "$out"`

// WriteGIF returns an apply body writing n bytes to the output.
func WriteGIF(n int) string {
	return "head -c " + strconv.Itoa(n) + " /dev/zero > \"$out\""
}

// FailWith returns a body that prints msg to stderr and exits with code.
func FailWith(msg string, code int) string {
	return "echo '" + msg + "' >&2; exit " + strconv.Itoa(code)
}

// RequireFFmpeg skips the test unless real ffmpeg and ffprobe are on PATH.
func RequireFFmpeg(t *testing.T) (ffmpeg, ffprobe string) {
	t.Helper()
	var err error
	if ffmpeg, err = exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	if ffprobe, err = exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}
	return ffmpeg, ffprobe
}
