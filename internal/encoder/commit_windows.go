// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build windows

package encoder

import "os"

func pendingOutput(final string) (path string, commit func() error, discard func(), err error) {
	path = final + ".part"
	commit = func() error { return os.Rename(path, final) }
	discard = func() { _ = os.Remove(path) }
	return path, commit, discard, nil
}
