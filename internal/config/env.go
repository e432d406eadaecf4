// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/vid2gif/internal/log"
)

// EnvPrefix prefixes every environment key the loader reads.
const EnvPrefix = "VID2GIF_"

// parseEnv resolves key from the environment. Empty and unparsable values
// fall back to def; every decision is logged with its source.
func parseEnv[T any](key string, def T, parse func(string) (T, error)) T {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logger.Debug().
			Str("key", key).
			Interface("default", def).
			Str("source", "default").
			Msg("using default value")
		return def
	}
	parsed, err := parse(v)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("key", key).
			Str("value", v).
			Interface("default", def).
			Msg("invalid environment variable, using default")
		return def
	}
	logger.Debug().
		Str("key", key).
		Interface("value", parsed).
		Str("source", "environment").
		Msg("using environment variable")
	return parsed
}

// ParseString reads a string from the environment or returns defaultValue.
func ParseString(key, defaultValue string) string {
	return parseEnv(key, defaultValue, func(s string) (string, error) { return s, nil })
}

// ParseInt reads an integer from the environment or returns defaultValue.
func ParseInt(key string, defaultValue int) int {
	return parseEnv(key, defaultValue, strconv.Atoi)
}

// ParseInt64 reads a 64-bit integer from the environment or returns defaultValue.
func ParseInt64(key string, defaultValue int64) int64 {
	return parseEnv(key, defaultValue, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
}

// ParseDuration reads a Go duration ("5s", "2m") from the environment.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseEnv(key, defaultValue, time.ParseDuration)
}

// ParseFloat reads a float64 from the environment or returns defaultValue.
func ParseFloat(key string, defaultValue float64) float64 {
	return parseEnv(key, defaultValue, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

// ParseByteSizeEnv reads a byte size ("20MiB", "5000000") from the environment.
func ParseByteSizeEnv(key string, defaultValue ByteSize) ByteSize {
	return parseEnv(key, defaultValue, ParseByteSize)
}

// ParseBool accepts true/false, 1/0 and yes/no in any case.
func ParseBool(key string, defaultValue bool) bool {
	return parseEnv(key, defaultValue, func(s string) (bool, error) {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, fmt.Errorf("not a boolean: %q", s)
	})
}
