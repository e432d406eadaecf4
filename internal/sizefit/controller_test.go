// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sizefit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/vid2gif/internal/artifact"
	"github.com/ManuGH/vid2gif/internal/encoder"
	"github.com/ManuGH/vid2gif/internal/ladder"
	"github.com/ManuGH/vid2gif/internal/probe"
)

const mib = 1024 * 1024

type fakeProber struct {
	res probe.Result
}

func (f fakeProber) Probe(_ context.Context, path string) probe.Result {
	res := f.res
	if res.SizeBytes == 0 {
		if fi, err := os.Stat(path); err == nil {
			res.SizeBytes = fi.Size()
		}
	}
	return res
}

// fakeEncoder writes candidates of a fixed size per ladder entry. Entries
// listed in fail return an EncodeFailure; a palette artifact is always
// allocated and written first so leaks would show up in the work dir.
type fakeEncoder struct {
	sizes  map[ladder.Entry]int64
	fail   map[ladder.Entry]encoder.Phase
	panics map[ladder.Entry]bool
	empty  map[ladder.Entry]bool
	onCall func(ladder.Entry)

	mu    sync.Mutex
	calls []ladder.Entry
	paths []string
}

func (f *fakeEncoder) allocate(scope *artifact.Scope, kind artifact.Kind, ext string) *artifact.Artifact {
	a := scope.New(kind, ext)
	f.mu.Lock()
	f.paths = append(f.paths, a.Path)
	f.mu.Unlock()
	return a
}

func (f *fakeEncoder) Encode(_ context.Context, scope *artifact.Scope, _ string, entry ladder.Entry) (*artifact.Artifact, error) {
	f.mu.Lock()
	f.calls = append(f.calls, entry)
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(entry)
	}

	palette := f.allocate(scope, artifact.KindPalette, "png")
	if err := os.WriteFile(palette.Path, []byte("palette"), 0o600); err != nil {
		return nil, err
	}
	if f.panics[entry] {
		panic("boom")
	}
	defer palette.Release()

	if phase, ok := f.fail[entry]; ok {
		return nil, &encoder.EncodeFailure{Phase: phase, Entry: entry, ExitCode: 1, Err: errors.New("exit status 1")}
	}
	if f.empty[entry] {
		return nil, nil
	}
	cand := f.allocate(scope, artifact.KindCandidate, "gif")
	if err := os.WriteFile(cand.Path, make([]byte, f.sizes[entry]), 0o600); err != nil {
		return nil, err
	}
	return cand, nil
}

func (f *fakeEncoder) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func (f *fakeEncoder) Calls() []ladder.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ladder.Entry(nil), f.calls...)
}

type harness struct {
	ctrl  *Controller
	enc   *fakeEncoder
	work  string
	input string
}

func newHarness(t *testing.T, pr probe.Result, inputSize int, sizes []int64) *harness {
	t.Helper()
	l := ladder.Default()
	sel, err := ladder.NewSelector(ladder.DefaultThresholds(), l.Len())
	require.NoError(t, err)

	enc := &fakeEncoder{sizes: map[ladder.Entry]int64{}, fail: map[ladder.Entry]encoder.Phase{}, panics: map[ladder.Entry]bool{}, empty: map[ladder.Entry]bool{}}
	for i, s := range sizes {
		enc.sizes[l.At(i)] = s
	}

	input := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(input, make([]byte, inputSize), 0o600))

	work := t.TempDir()
	return &harness{
		ctrl: &Controller{
			Prober:   fakeProber{res: pr},
			Encoder:  enc,
			Ladder:   l,
			Selector: sel,
			WorkDir:  work,
		},
		enc:   enc,
		work:  work,
		input: input,
	}
}

func (h *harness) residue(t *testing.T) []string {
	t.Helper()
	list, err := os.ReadDir(h.work)
	require.NoError(t, err)
	names := make([]string, 0, len(list))
	for _, e := range list {
		names = append(names, e.Name())
	}
	return names
}

func entriesFrom(l ladder.Ladder, idx ...int) []ladder.Entry {
	out := make([]ladder.Entry, len(idx))
	for i, n := range idx {
		out[i] = l.At(n)
	}
	return out
}

func TestShortClipFitsOnFirstAttempt(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, probe.Result{DurationSeconds: 10, SizeBytes: 5 * mib, DurationKnown: true}, 1024,
		[]int64{3 * mib, 2 * mib, mib, mib, mib})

	out := h.ctrl.Fit(context.Background(), Request{ID: "short", InputPath: h.input, CeilingBytes: 20 * mib})

	require.True(t, out.OK, "outcome: %+v", out)
	require.NoError(t, out.Err())
	assert.Equal(t, 0, out.StartIndex)
	assert.Equal(t, 0, out.EntryIndex)
	assert.Equal(t, ladder.Entry{FPS: 15, Width: 480}, out.Entry)
	assert.Len(t, out.Attempts, 1)
	assert.EqualValues(t, 3*mib, out.SizeBytes)
	assert.Equal(t, []string{filepath.Base(out.OutputPath)}, h.residue(t))
}

func TestLongHeavyClipExhaustsWithoutResidue(t *testing.T) {
	h := newHarness(t, probe.Result{DurationSeconds: 120, SizeBytes: 40 * mib, DurationKnown: true}, 1024,
		[]int64{90 * mib, 80 * mib, 70 * mib, 60 * mib, 25 * mib})

	out := h.ctrl.Fit(context.Background(), Request{ID: "long", InputPath: h.input, CeilingBytes: 20 * mib})

	require.False(t, out.OK)
	assert.Equal(t, ReasonAllAttemptsExhausted, out.Reason)
	assert.ErrorIs(t, out.Err(), ErrAllAttemptsExhausted)
	assert.Equal(t, 4, out.StartIndex)
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, AttemptSizeExceeded, out.Attempts[0].Result)
	assert.Equal(t, ladder.Entry{FPS: 8, Width: 280}, out.Attempts[0].Entry)
	assert.Empty(t, out.OutputPath)
	assert.Empty(t, h.residue(t))
}

func TestFirstFitLaw(t *testing.T) {
	l := ladder.Default()
	h := newHarness(t, probe.Result{}, 1024, []int64{50 * mib, 30 * mib, 19 * mib, 10 * mib, 5 * mib})
	// Entry 1 fails to encode; the walk continues past it.
	h.enc.fail[l.At(1)] = encoder.PhaseApply

	out := h.ctrl.Fit(context.Background(), Request{InputPath: h.input, CeilingBytes: 20 * mib})

	require.True(t, out.OK)
	assert.Equal(t, 2, out.EntryIndex, "must stop at the first entry within the ceiling, not a later smaller one")
	if diff := cmp.Diff(entriesFrom(l, 0, 1, 2), h.enc.Calls()); diff != "" {
		t.Fatalf("unexpected attempt order (-want +got):\n%s", diff)
	}
	results := []AttemptResult{out.Attempts[0].Result, out.Attempts[1].Result, out.Attempts[2].Result}
	assert.Equal(t, []AttemptResult{AttemptSizeExceeded, AttemptEncodeFailed, AttemptOK}, results)
	assert.Equal(t, encoder.PhaseApply, out.Attempts[1].Phase)
	assert.Equal(t, []string{filepath.Base(out.OutputPath)}, h.residue(t))
}

func TestCeilingIsInclusive(t *testing.T) {
	h := newHarness(t, probe.Result{}, 1024, []int64{20 * mib})
	out := h.ctrl.Fit(context.Background(), Request{InputPath: h.input, CeilingBytes: 20 * mib})
	require.True(t, out.OK)
	assert.Equal(t, 0, out.EntryIndex)
}

func TestProbeFailureStartsAtTop(t *testing.T) {
	// A huge input with unknown duration must still start at index 0.
	h := newHarness(t, probe.Result{DurationSeconds: 0, SizeBytes: 500 * mib}, 1024,
		[]int64{mib, mib, mib, mib, mib})
	out := h.ctrl.Fit(context.Background(), Request{InputPath: h.input, CeilingBytes: 20 * mib})
	require.True(t, out.OK)
	assert.Equal(t, 0, out.StartIndex)
	assert.False(t, out.Probe.DurationKnown)
}

func TestEveryEntryFailsToEncode(t *testing.T) {
	l := ladder.Default()
	h := newHarness(t, probe.Result{DurationSeconds: 45, DurationKnown: true}, 1024, nil)
	for i := 0; i < l.Len(); i++ {
		phase := encoder.PhaseAnalysis
		if i%2 == 1 {
			phase = encoder.PhaseApply
		}
		h.enc.fail[l.At(i)] = phase
	}

	out := h.ctrl.Fit(context.Background(), Request{InputPath: h.input, CeilingBytes: 20 * mib})
	assert.Equal(t, ReasonAllAttemptsExhausted, out.Reason)
	assert.Equal(t, 2, out.StartIndex)
	assert.Len(t, out.Attempts, 3)
	assert.Empty(t, h.residue(t))
}

func TestEncoderPanicCountsAsFailure(t *testing.T) {
	l := ladder.Default()
	h := newHarness(t, probe.Result{}, 1024, []int64{mib, mib})
	h.enc.panics[l.At(0)] = true

	out := h.ctrl.Fit(context.Background(), Request{InputPath: h.input, CeilingBytes: 20 * mib})
	require.True(t, out.OK)
	assert.Equal(t, 1, out.EntryIndex)
	assert.Equal(t, AttemptEncodeFailed, out.Attempts[0].Result)
	assert.Equal(t, []string{filepath.Base(out.OutputPath)}, h.residue(t), "palette from the panicking attempt must be cleaned")
}

func TestOutputPathReceivesResult(t *testing.T) {
	h := newHarness(t, probe.Result{}, 1024, []int64{4096})
	dest := filepath.Join(t.TempDir(), "video_1.gif")

	out := h.ctrl.Fit(context.Background(), Request{InputPath: h.input, OutputPath: dest, CeilingBytes: mib})
	require.True(t, out.OK)
	assert.Equal(t, dest, out.OutputPath)
	fi, err := os.Stat(dest)
	require.NoError(t, err)
	assert.EqualValues(t, 4096, fi.Size())
	assert.Empty(t, h.residue(t))
}

func TestUnwritableOutputPath(t *testing.T) {
	h := newHarness(t, probe.Result{}, 1024, []int64{4096})
	dest := filepath.Join(t.TempDir(), "missing-dir", "out.gif")

	out := h.ctrl.Fit(context.Background(), Request{InputPath: h.input, OutputPath: dest, CeilingBytes: mib})
	assert.Equal(t, ReasonOutputUnwritable, out.Reason)
	assert.ErrorIs(t, out.Err(), ErrOutputUnwritable)
	assert.Empty(t, h.residue(t))
}

func TestRequestValidation(t *testing.T) {
	h := newHarness(t, probe.Result{}, 1024, []int64{mib})
	empty := filepath.Join(t.TempDir(), "empty.mp4")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	tests := []struct {
		name   string
		req    Request
		reason Reason
		err    error
	}{
		{name: "no input", req: Request{CeilingBytes: mib}, reason: ReasonInvalidRequest, err: ErrInvalidRequest},
		{name: "zero ceiling", req: Request{InputPath: h.input}, reason: ReasonInvalidRequest, err: ErrInvalidRequest},
		{name: "missing input", req: Request{InputPath: filepath.Join(t.TempDir(), "nope.mp4"), CeilingBytes: mib}, reason: ReasonInputUnreadable, err: ErrInputUnreadable},
		{name: "directory input", req: Request{InputPath: t.TempDir(), CeilingBytes: mib}, reason: ReasonInputUnreadable, err: ErrInputUnreadable},
		{name: "empty input", req: Request{InputPath: empty, CeilingBytes: mib}, reason: ReasonInputUnreadable, err: ErrInputUnreadable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := h.ctrl.Fit(context.Background(), tt.req)
			assert.False(t, out.OK)
			assert.Equal(t, tt.reason, out.Reason)
			assert.ErrorIs(t, out.Err(), tt.err)
			assert.Empty(t, out.Attempts)
		})
	}
	assert.Empty(t, h.enc.Calls())
}

func TestCancellationStopsBetweenAttempts(t *testing.T) {
	l := ladder.Default()
	h := newHarness(t, probe.Result{}, 1024, []int64{90 * mib, 80 * mib, mib})
	ctx, cancel := context.WithCancel(context.Background())
	h.enc.onCall = func(e ladder.Entry) {
		if e == l.At(1) {
			cancel()
		}
	}

	out := h.ctrl.Fit(ctx, Request{InputPath: h.input, CeilingBytes: 20 * mib})
	assert.Equal(t, ReasonCanceled, out.Reason)
	assert.ErrorIs(t, out.Err(), context.Canceled)
	assert.Len(t, h.enc.Calls(), 2)
	assert.Empty(t, h.residue(t))
}

func TestConcurrentRequestsAreIsolated(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, probe.Result{DurationSeconds: 20, DurationKnown: true}, 1024,
		[]int64{40 * mib, 30 * mib, mib, mib, mib})

	const n = 12
	inputs := make([]string, n)
	inputDir := t.TempDir()
	for i := range inputs {
		inputs[i] = filepath.Join(inputDir, fmt.Sprintf("clip-%d.mp4", i))
		require.NoError(t, os.WriteFile(inputs[i], make([]byte, 1024+i), 0o600))
	}

	outs := make([]Outcome, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			outs[i] = h.ctrl.Fit(context.Background(), Request{
				ID:           fmt.Sprintf("req-%d", i),
				InputPath:    inputs[i],
				CeilingBytes: 20 * mib,
			})
			return outs[i].Err()
		})
	}
	require.NoError(t, g.Wait())

	seen := map[string]bool{}
	for _, out := range outs {
		assert.Equal(t, 2, out.EntryIndex)
		assert.False(t, seen[out.OutputPath], "output path reused: %s", out.OutputPath)
		seen[out.OutputPath] = true
	}

	// 3 attempts per request, each allocating a palette and a candidate.
	paths := h.enc.Paths()
	require.Len(t, paths, n*3*2)
	allocated := map[string]bool{}
	for _, p := range paths {
		assert.False(t, allocated[p], "intermediate path reused: %s", p)
		allocated[p] = true
	}
	assert.Len(t, h.residue(t), n, "only the accepted outputs remain")
}

func TestEncoderWithoutCandidateCountsAsFailure(t *testing.T) {
	h := newHarness(t, probe.Result{DurationSeconds: 5, DurationKnown: true}, 1024,
		[]int64{mib, mib, mib, mib, mib})
	h.enc.empty[ladder.Default().At(0)] = true

	out := h.ctrl.Fit(context.Background(), Request{InputPath: h.input, CeilingBytes: 20 * mib})

	require.True(t, out.OK, "%v", out.Err())
	assert.Equal(t, 1, out.EntryIndex)
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, AttemptEncodeFailed, out.Attempts[0].Result)
	assert.ErrorIs(t, out.Attempts[0].Err, errNoCandidate)
	assert.Len(t, h.residue(t), 1)
}
