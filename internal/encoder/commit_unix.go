// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build !windows

package encoder

import (
	"path/filepath"

	"github.com/google/renameio/v2"
)

// pendingOutput reserves a hidden file next to final for ffmpeg to write
// into. commit renames it onto final atomically; discard removes it and is
// a no-op after a successful commit.
func pendingOutput(final string) (path string, commit func() error, discard func(), err error) {
	pf, err := renameio.NewPendingFile(final,
		renameio.WithTempDir(filepath.Dir(final)),
		renameio.WithPermissions(0o640))
	if err != nil {
		return "", nil, nil, err
	}
	return pf.Name(), pf.CloseAtomicallyReplace, func() { _ = pf.Cleanup() }, nil
}
