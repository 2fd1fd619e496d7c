// Package state owns the runtime folder layout next to the database:
// <dbPath>/state/crash for crash dumps and <dbPath>/state/tmp for
// scratch files. Directories are created with restrictive permissions
// and rejected when they are symlinks or writable by group/other.
package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureStateDirs ensures the canonical runtime folder layout exists under
// the provided DB path and that every directory is writable.
func EnsureStateDirs(dbPath string) error {
	statePath := filepath.Join(dbPath, "state")
	crashPath := filepath.Join(statePath, "crash")
	tmpPath := filepath.Join(statePath, "tmp")

	for _, p := range []string{crashPath, tmpPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return fmt.Errorf("cannot create parent for %s: %w", p, err)
		}

		if fi, err := os.Lstat(p); err == nil {
			if fi.Mode()&os.ModeSymlink != 0 {
				return fmt.Errorf("path is a symlink: %s", p)
			}
			if !fi.IsDir() {
				return fmt.Errorf("path exists and is not a directory: %s", p)
			}
			if fi.Mode().Perm()&0o022 != 0 {
				return fmt.Errorf("path has permissive mode (group/other write): %s", p)
			}
		}

		if err := os.MkdirAll(p, 0o700); err != nil {
			return fmt.Errorf("cannot create path %s: %w", p, err)
		}

		// writability check: create and remove a temp file
		tmp, err := os.CreateTemp(p, ".validate-*")
		if err != nil {
			return fmt.Errorf("path not writable: %s: %w", p, err)
		}
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}

	return nil
}
