// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package encoder

import (
	"bytes"
	"sync"
)

// maxLineBytes caps a single retained line; ffmpeg progress output can be long.
const maxLineBytes = 1024

// LineRing keeps the last N lines written to it. It is safe for concurrent
// use and handles lines split across writes.
type LineRing struct {
	mu      sync.Mutex
	lines   []string
	head    int
	count   int
	partial []byte
}

// NewLineRing creates a LineRing holding up to capacity lines.
func NewLineRing(capacity int) *LineRing {
	if capacity < 1 {
		capacity = 20
	}
	return &LineRing{lines: make([]string, capacity)}
}

// Write implements io.Writer.
func (r *LineRing) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := p
	for len(data) > 0 {
		i := bytes.IndexAny(data, "\r\n")
		if i < 0 {
			r.partial = append(r.partial, data...)
			if len(r.partial) > maxLineBytes {
				r.partial = r.partial[len(r.partial)-maxLineBytes:]
			}
			break
		}
		r.partial = append(r.partial, data[:i]...)
		r.push()
		data = data[i+1:]
	}
	return len(p), nil
}

func (r *LineRing) push() {
	line := bytes.TrimSpace(r.partial)
	r.partial = r.partial[:0]
	if len(line) == 0 {
		return
	}
	if len(line) > maxLineBytes {
		line = line[:maxLineBytes]
	}
	r.lines[r.head] = string(line)
	r.head = (r.head + 1) % len(r.lines)
	if r.count < len(r.lines) {
		r.count++
	}
}

// Lines returns the retained lines oldest first, including an unterminated
// trailing line.
func (r *LineRing) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, r.count+1)
	start := (r.head - r.count + len(r.lines)) % len(r.lines)
	for i := 0; i < r.count; i++ {
		out = append(out, r.lines[(start+i)%len(r.lines)])
	}
	if tail := bytes.TrimSpace(r.partial); len(tail) > 0 {
		out = append(out, string(tail))
	}
	return out
}
