// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ladder

import (
	"errors"
	"fmt"
	"sort"
)

// Threshold moves the start index to Index when the input is at least
// MinDuration seconds long or its complexity (duration * size in MiB)
// reaches MinComplexity. A zero criterion is disabled.
type Threshold struct {
	Index         int     `yaml:"index" json:"index"`
	MinDuration   float64 `yaml:"min_duration_s" json:"min_duration_s"`
	MinComplexity float64 `yaml:"min_complexity" json:"min_complexity"`
}

func (t Threshold) matches(duration, complexity float64) bool {
	return (t.MinDuration > 0 && duration >= t.MinDuration) ||
		(t.MinComplexity > 0 && complexity >= t.MinComplexity)
}

// DefaultThresholds pair with Default().
func DefaultThresholds() []Threshold {
	return []Threshold{
		{Index: 4, MinDuration: 90, MinComplexity: 3000},
		{Index: 3, MinDuration: 60, MinComplexity: 1500},
		{Index: 2, MinDuration: 30, MinComplexity: 600},
		{Index: 1, MinDuration: 15, MinComplexity: 200},
	}
}

var ErrInvalidThreshold = errors.New("invalid heuristic threshold")

// ValidateThresholds checks thresholds against a ladder of length n.
func ValidateThresholds(ts []Threshold, n int) error {
	seen := make(map[int]bool, len(ts))
	for _, t := range ts {
		switch {
		case t.Index < 1 || t.Index >= n:
			return fmt.Errorf("%w: index %d outside 1..%d", ErrInvalidThreshold, t.Index, n-1)
		case t.MinDuration < 0 || t.MinComplexity < 0:
			return fmt.Errorf("%w: index %d has a negative bound", ErrInvalidThreshold, t.Index)
		case t.MinDuration == 0 && t.MinComplexity == 0:
			return fmt.Errorf("%w: index %d has no criterion", ErrInvalidThreshold, t.Index)
		case seen[t.Index]:
			return fmt.Errorf("%w: index %d listed twice", ErrInvalidThreshold, t.Index)
		}
		seen[t.Index] = true
	}
	return nil
}

// Selector maps probe data to a starting ladder index.
type Selector struct {
	thresholds []Threshold // most severe first
	maxIndex   int
}

// NewSelector builds a selector for a ladder of ladderLen entries. Thresholds
// are evaluated most severe (highest index) first and the first match wins,
// which keeps the result monotone in both duration and complexity.
func NewSelector(ts []Threshold, ladderLen int) (Selector, error) {
	if ladderLen <= 0 {
		return Selector{}, ErrEmpty
	}
	if err := ValidateThresholds(ts, ladderLen); err != nil {
		return Selector{}, err
	}
	sorted := append([]Threshold(nil), ts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index > sorted[j].Index })
	return Selector{thresholds: sorted, maxIndex: ladderLen - 1}, nil
}

// Complexity is duration times size in MiB.
func Complexity(durationSeconds float64, sizeBytes int64) float64 {
	return durationSeconds * float64(sizeBytes) / (1024 * 1024)
}

// Select returns the start index. Unknown duration (<= 0) starts at the top.
func (s Selector) Select(durationSeconds float64, sizeBytes int64) int {
	if durationSeconds <= 0 {
		return 0
	}
	cx := Complexity(durationSeconds, sizeBytes)
	for _, t := range s.thresholds {
		if t.matches(durationSeconds, cx) {
			return min(t.Index, s.maxIndex)
		}
	}
	return 0
}
