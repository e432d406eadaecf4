// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package artifact

import (
	"fmt"
	"os"
)

// MoveTo relocates the artifact to dest and detaches it from its scope, so
// Close no longer touches it. When a plain rename is impossible (dest on
// another filesystem) the content is copied durably and the source removed.
func (a *Artifact) MoveTo(dest string) error {
	if err := os.Rename(a.Path, dest); err != nil {
		if cerr := copyDurable(a.Path, dest); cerr != nil {
			return fmt.Errorf("move %s to %s: %w", a.Path, dest, cerr)
		}
		a.Release()
	}
	a.mu.Lock()
	a.kept = true
	a.Path = dest
	a.mu.Unlock()
	return nil
}
