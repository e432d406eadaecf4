// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors shared by the transcode
// pipeline. Callers use the Record/Inc helpers instead of touching the
// collectors directly.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	probeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vid2gif_probe_total",
		Help: "Input probes by result",
	}, []string{"result"}) // result=ok|unavailable

	startIndex = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vid2gif_ladder_start_index",
		Help:    "Ladder index chosen by the heuristic selector",
		Buckets: prometheus.LinearBuckets(0, 1, 8),
	})

	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vid2gif_attempts_total",
		Help: "Encode attempts by ladder index and result",
	}, []string{"index", "result"}) // result=ok|encode_failed|size_exceeded

	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vid2gif_encoder_phase_duration_seconds",
		Help:    "Wall time of encoder phases",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 12), // 250ms to ~8.5min
	}, []string{"phase", "result"}) // result=ok|error|timeout

	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vid2gif_outcomes_total",
		Help: "Size-fit outcomes by reason",
	}, []string{"reason"})

	outputBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vid2gif_output_bytes",
		Help:    "Size of accepted GIF outputs",
		Buckets: prometheus.ExponentialBuckets(64*1024, 2, 12), // 64KiB to 128MiB
	})

	jobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vid2gif_jobs_in_flight",
		Help: "Size-fit jobs currently running",
	})

	cleanupTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vid2gif_artifact_cleanup_total",
		Help: "Temporary artifact removals by result",
	}, []string{"result"}) // result=removed|absent|error

	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vid2gif_proc_terminate_total",
		Help: "Signals sent to subprocess groups",
	}, []string{"signal", "result"})

	procWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vid2gif_proc_wait_total",
		Help: "Subprocess exit observations after termination",
	}, []string{"result"})
)

// RecordProbe counts a probe result.
func RecordProbe(ok bool) {
	if ok {
		probeTotal.WithLabelValues("ok").Inc()
		return
	}
	probeTotal.WithLabelValues("unavailable").Inc()
}

// ObserveStartIndex records the ladder index picked for a request.
func ObserveStartIndex(idx int) {
	startIndex.Observe(float64(idx))
}

// RecordAttempt counts one encode attempt.
func RecordAttempt(index, result string) {
	attemptsTotal.WithLabelValues(index, result).Inc()
}

// ObservePhase records the wall time of one encoder phase.
func ObservePhase(phase, result string, d time.Duration) {
	phaseDuration.WithLabelValues(phase, result).Observe(d.Seconds())
}

// RecordOutcome counts a terminal size-fit outcome.
func RecordOutcome(reason string) {
	outcomesTotal.WithLabelValues(reason).Inc()
}

// ObserveOutputBytes records the size of an accepted output.
func ObserveOutputBytes(n int64) {
	outputBytes.Observe(float64(n))
}

// IncJobsInFlight marks a job as started.
func IncJobsInFlight() { jobsInFlight.Inc() }

// DecJobsInFlight marks a job as finished.
func DecJobsInFlight() { jobsInFlight.Dec() }

// RecordCleanup counts a temporary artifact removal.
func RecordCleanup(result string) {
	cleanupTotal.WithLabelValues(result).Inc()
}

// IncProcTerminate counts a signal sent to a process group.
func IncProcTerminate(signal, result string) {
	procTerminateTotal.WithLabelValues(signal, result).Inc()
}

// IncProcWait counts how a terminated process group exited.
func IncProcWait(result string) {
	procWaitTotal.WithLabelValues(result).Inc()
}
