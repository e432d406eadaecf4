// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// ByteSize is a byte count that reads "20MiB", "20 MB" or a plain integer.
type ByteSize int64

// MiB is one mebibyte.
const MiB ByteSize = 1024 * 1024

// ParseByteSize parses a human readable size. SI suffixes (MB) are powers
// of 1000, IEC suffixes (MiB) powers of 1024.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ByteSize(n), nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	return ByteSize(n), nil
}

// Int64 returns the size in bytes.
func (b ByteSize) Int64() int64 { return int64(b) }

func (b ByteSize) String() string {
	if b < 0 {
		return strconv.FormatInt(int64(b), 10)
	}
	return humanize.IBytes(uint64(b))
}

// UnmarshalYAML accepts integers and human readable strings.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: byte size must be a scalar", node.Line)
	}
	v, err := ParseByteSize(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid byte size %q: %w", node.Line, node.Value, err)
	}
	*b = v
	return nil
}

// MarshalYAML writes the IEC form when it round-trips exactly and the raw
// integer otherwise.
func (b ByteSize) MarshalYAML() (any, error) {
	s := b.String()
	if back, err := ParseByteSize(s); err == nil && back == b {
		return s, nil
	}
	return int64(b), nil
}
