// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package probe reads the duration of an input video with ffprobe.
//
// Probing is best effort: any failure degrades to an unknown duration
// (zero) and the caller carries on with the most conservative assumptions.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/vid2gif/internal/log"
	"github.com/ManuGH/vid2gif/internal/metrics"
	"github.com/ManuGH/vid2gif/internal/procgroup"
)

// DefaultTimeout bounds a single ffprobe run.
const DefaultTimeout = 30 * time.Second

// Result is the probe outcome for one input.
type Result struct {
	DurationSeconds float64
	SizeBytes       int64
	DurationKnown   bool
}

// SizeMB returns the input size in mebibytes.
func (r Result) SizeMB() float64 {
	return float64(r.SizeBytes) / (1024 * 1024)
}

// Prober runs ffprobe.
type Prober struct {
	Bin     string
	Timeout time.Duration
	Grace   time.Duration
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe never fails. When the duration cannot be determined the result has
// DurationKnown=false and DurationSeconds=0.
func (p Prober) Probe(ctx context.Context, path string) Result {
	logger := log.WithComponentFromContext(ctx, "probe")

	var res Result
	if fi, err := os.Stat(path); err == nil {
		res.SizeBytes = fi.Size()
	}

	bin := strings.TrimSpace(p.Bin)
	if bin == "" {
		bin = "ffprobe"
	}
	timeout := p.Timeout
	if timeout <= 0 || timeout > DefaultTimeout {
		timeout = DefaultTimeout
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(bin, "-v", "error", "-hide_banner",
		"-show_entries", "format=duration:stream=codec_type,duration",
		"-of", "json", "--", path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	run, err := procgroup.Run(ctx, cmd, timeout, p.Grace)
	if err != nil {
		metrics.RecordProbe(false)
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "probe_unavailable").
			Str(log.FieldInputPath, path).
			Bool("timed_out", run.TimedOut).
			Str(log.FieldStderr, strings.TrimSpace(stderr.String())).
			Msg("ffprobe failed, treating duration as unknown")
		return res
	}

	d, ok := parseDuration(stdout.Bytes())
	if !ok {
		metrics.RecordProbe(false)
		logger.Warn().
			Str(log.FieldEvent, "probe_unavailable").
			Str(log.FieldInputPath, path).
			Msg("ffprobe reported no usable duration")
		return res
	}

	res.DurationSeconds = d
	res.DurationKnown = true
	metrics.RecordProbe(true)
	logger.Debug().
		Str(log.FieldEvent, "probe.done").
		Float64(log.FieldDurationSec, d).
		Int64(log.FieldSizeBytes, res.SizeBytes).
		Dur("elapsed", run.Elapsed).
		Msg("input probed")
	return res
}

// parseDuration prefers the container duration and falls back to the
// longest video stream.
func parseDuration(raw []byte) (float64, bool) {
	var out ffprobeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, false
	}
	if d := parseSeconds(out.Format.Duration); d > 0 {
		return d, true
	}
	var best float64
	for _, s := range out.Streams {
		if !strings.EqualFold(s.CodecType, "video") {
			continue
		}
		if d := parseSeconds(s.Duration); d > best {
			best = d
		}
	}
	return best, best > 0
}

func parseSeconds(v string) float64 {
	v = strings.TrimSpace(v)
	if v == "" || v == "N/A" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}
