// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ladder defines the ordered list of GIF encoding parameters and
// the heuristic that picks where in that list a request starts.
package ladder

import (
	"errors"
	"fmt"
	"strings"
)

// Entry is one rung of the quality ladder.
type Entry struct {
	FPS   int `yaml:"fps" json:"fps"`
	Width int `yaml:"width" json:"width"`
}

func (e Entry) String() string {
	return fmt.Sprintf("%dfps@%dpx", e.FPS, e.Width)
}

// Ladder is ordered from highest fidelity (index 0) to lowest. Expected
// output size strictly decreases with the index. A Ladder is never
// mutated after construction.
type Ladder struct {
	entries []Entry
}

var (
	ErrEmpty        = errors.New("ladder has no entries")
	ErrInvalidEntry = errors.New("ladder entry must have positive fps and width")
	ErrNotShrinking = errors.New("ladder entries must not grow and must shrink at each step")
)

// Default is the built-in ladder.
func Default() Ladder {
	l, _ := New([]Entry{
		{FPS: 15, Width: 480},
		{FPS: 12, Width: 400},
		{FPS: 10, Width: 360},
		{FPS: 10, Width: 320},
		{FPS: 8, Width: 280},
	})
	return l
}

// New validates entries and returns a ladder holding a private copy.
func New(entries []Entry) (Ladder, error) {
	if err := Validate(entries); err != nil {
		return Ladder{}, err
	}
	return Ladder{entries: append([]Entry(nil), entries...)}, nil
}

// Validate checks that entries are usable and strictly shrinking: no entry
// raises fps or width relative to its predecessor, and each lowers at least one.
func Validate(entries []Entry) error {
	if len(entries) == 0 {
		return ErrEmpty
	}
	for i, e := range entries {
		if e.FPS <= 0 || e.Width <= 0 {
			return fmt.Errorf("entry %d (%s): %w", i, e, ErrInvalidEntry)
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		if e.FPS > prev.FPS || e.Width > prev.Width || (e.FPS == prev.FPS && e.Width == prev.Width) {
			return fmt.Errorf("entry %d (%s) after %s: %w", i, e, prev, ErrNotShrinking)
		}
	}
	return nil
}

// Len returns the number of entries.
func (l Ladder) Len() int { return len(l.entries) }

// At returns the entry at index i. It panics on out-of-range indices.
func (l Ladder) At(i int) Entry { return l.entries[i] }

// Entries returns a copy of the entries.
func (l Ladder) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

func (l Ladder) String() string {
	parts := make([]string, len(l.entries))
	for i, e := range l.entries {
		parts[i] = e.String()
	}
	return strings.Join(parts, " > ")
}
