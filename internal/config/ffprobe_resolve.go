// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultFFprobeBin = "ffprobe"

// ResolveFFprobeBin picks the ffprobe binary:
//  1. an explicit ffprobeBin wins
//  2. a sibling "ffprobe" of a concrete ffmpeg path, if it exists
//  3. plain "ffprobe", resolved through PATH at run time
func ResolveFFprobeBin(ffprobeBin, ffmpegBin string) string {
	return resolveFFprobeBin(ffprobeBin, ffmpegBin, os.Stat)
}

func resolveFFprobeBin(ffprobeBin, ffmpegBin string, stat func(string) (os.FileInfo, error)) string {
	if v := strings.TrimSpace(ffprobeBin); v != "" {
		return v
	}

	ffmpegBin = strings.TrimSpace(ffmpegBin)
	// A bare "ffmpeg" is a PATH lookup; nothing to derive from.
	if !strings.ContainsRune(ffmpegBin, filepath.Separator) && !strings.ContainsRune(ffmpegBin, '/') {
		return defaultFFprobeBin
	}

	base := filepath.Base(ffmpegBin)
	if strings.TrimSuffix(base, ".exe") != "ffmpeg" {
		return defaultFFprobeBin
	}
	candidate := filepath.Join(filepath.Dir(ffmpegBin), strings.Replace(base, "ffmpeg", "ffprobe", 1))
	if fi, err := stat(candidate); err == nil && !fi.IsDir() {
		return candidate
	}
	return defaultFFprobeBin
}
