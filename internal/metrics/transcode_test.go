// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCount(t *testing.T, h interface{ Write(*dto.Metric) error }) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(attemptsTotal.WithLabelValues("2", "size_exceeded"))
	RecordAttempt("2", "size_exceeded")
	assert.Equal(t, before+1, testutil.ToFloat64(attemptsTotal.WithLabelValues("2", "size_exceeded")))

	before = testutil.ToFloat64(probeTotal.WithLabelValues("unavailable"))
	RecordProbe(false)
	assert.Equal(t, before+1, testutil.ToFloat64(probeTotal.WithLabelValues("unavailable")))

	before = testutil.ToFloat64(cleanupTotal.WithLabelValues("error"))
	RecordCleanup("error")
	assert.Equal(t, before+1, testutil.ToFloat64(cleanupTotal.WithLabelValues("error")))
}

func TestJobsInFlightGauge(t *testing.T) {
	before := testutil.ToFloat64(jobsInFlight)
	IncJobsInFlight()
	assert.Equal(t, before+1, testutil.ToFloat64(jobsInFlight))
	DecJobsInFlight()
	assert.Equal(t, before, testutil.ToFloat64(jobsInFlight))
}

func TestHistogramsAcceptObservations(t *testing.T) {
	ObservePhase("analysis", "ok", 1500*time.Millisecond)
	ObserveStartIndex(3)
	ObserveOutputBytes(1 << 20)
	assert.Positive(t, testutil.CollectAndCount(phaseDuration))
}

func TestStartIndexLandsInItsBucket(t *testing.T) {
	before := sampleCount(t, startIndex)
	ObserveStartIndex(2)
	assert.Equal(t, before+1, sampleCount(t, startIndex))

	var m dto.Metric
	require.NoError(t, startIndex.Write(&m))
	for _, b := range m.GetHistogram().GetBucket() {
		if b.GetUpperBound() == 2 {
			assert.Positive(t, b.GetCumulativeCount())
		}
	}
}
