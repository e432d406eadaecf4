// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build !windows

package artifact

import (
	"io"
	"os"

	"github.com/google/renameio/v2"
)

// copyDurable writes src to dest through a pending file: fsync, then an
// atomic rename, so dest is either absent or complete.
func copyDurable(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	pending, err := renameio.NewPendingFile(dest, renameio.WithPermissions(0o640))
	if err != nil {
		return err
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := io.Copy(pending, in); err != nil {
		return err
	}
	return pending.CloseAtomicallyReplace()
}
