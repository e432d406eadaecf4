// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package artifact allocates per-request temporary files and guarantees
// their removal. Every path handed out by a Scope is removed by Close unless
// it was explicitly kept.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/vid2gif/internal/log"
	"github.com/ManuGH/vid2gif/internal/metrics"
)

// seq is process-wide so that two scopes sharing an identity and a clock
// tick still produce distinct names.
var seq atomic.Uint64

// Kind labels what an artifact holds. It becomes part of the file name.
type Kind string

const (
	KindInput     Kind = "input"
	KindPalette   Kind = "palette"
	KindCandidate Kind = "candidate"
	KindOutput    Kind = "output"
)

// Artifact is one temporary file owned by a Scope.
type Artifact struct {
	Path  string
	Kind  Kind
	scope *Scope

	mu       sync.Mutex
	released bool
	kept     bool
}

// Release removes the file now. Calling it again, or after the file has
// already disappeared, is a no-op.
func (a *Artifact) Release() {
	if a == nil {
		return
	}
	a.mu.Lock()
	if a.released || a.kept {
		a.mu.Unlock()
		return
	}
	a.released = true
	a.mu.Unlock()
	a.scope.remove(a)
}

// Size stats the artifact on disk.
func (a *Artifact) Size() (int64, error) {
	fi, err := os.Stat(a.Path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Scope owns the artifacts of one request.
type Scope struct {
	dir       string
	requestID string
	logger    zerolog.Logger

	mu        sync.Mutex
	artifacts []*Artifact
	closed    bool
}

// NewScope creates a scope rooted at dir. An empty requestID gets a fresh
// UUID so that concurrent anonymous requests never share a name prefix.
func NewScope(ctx context.Context, dir, requestID string) (*Scope, error) {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create work dir %s: %w", dir, err)
	}
	return &Scope{
		dir:       dir,
		requestID: sanitize(requestID),
		logger:    log.WithComponentFromContext(ctx, "artifact"),
	}, nil
}

// RequestID returns the identity used in artifact names.
func (s *Scope) RequestID() string { return s.requestID }

// Dir returns the directory artifacts are placed in.
func (s *Scope) Dir() string { return s.dir }

// New reserves a unique path for an artifact of the given kind. The file is
// not created; the producer writes it.
//
// A closed scope hands out a released artifact with an empty Path, so a
// late producer fails to write instead of leaving an untracked file.
func (s *Scope) New(kind Kind, ext string) *Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn().
			Str(log.FieldEvent, "artifact.closed_scope").
			Str("kind", string(kind)).
			Msg("artifact allocated on closed scope")
		return &Artifact{Kind: kind, scope: s, released: true}
	}
	ext = strings.TrimPrefix(ext, ".")
	name := fmt.Sprintf("%s-%s-%d-%d", s.requestID, kind, time.Now().UnixNano(), seq.Add(1))
	if ext != "" {
		name += "." + ext
	}
	a := &Artifact{Path: filepath.Join(s.dir, name), Kind: kind, scope: s}
	s.artifacts = append(s.artifacts, a)
	return a
}

// Keep exempts a from Close. Use it for the artifact handed to the caller.
func (s *Scope) Keep(a *Artifact) {
	if a == nil {
		return
	}
	a.mu.Lock()
	a.kept = true
	a.mu.Unlock()
}

// Close removes every artifact that was neither kept nor already released.
// It never fails; removal errors are logged and counted.
func (s *Scope) Close() {
	s.mu.Lock()
	pending := s.artifacts
	s.artifacts = nil
	s.closed = true
	s.mu.Unlock()

	for _, a := range pending {
		a.Release()
	}
}

func (s *Scope) remove(a *Artifact) {
	err := os.Remove(a.Path)
	switch {
	case err == nil:
		metrics.RecordCleanup("removed")
		s.logger.Debug().
			Str(log.FieldEvent, "artifact.removed").
			Str(log.FieldPath, a.Path).
			Str("kind", string(a.Kind)).
			Msg("temporary artifact removed")
	case errors.Is(err, fs.ErrNotExist):
		metrics.RecordCleanup("absent")
	default:
		metrics.RecordCleanup("error")
		s.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "artifact_cleanup_failed").
			Str(log.FieldPath, a.Path).
			Msg("failed to remove temporary artifact")
	}
}

// sanitize keeps request identities safe for use in file names.
func sanitize(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() > 64 {
		return b.String()[:64]
	}
	return b.String()
}
