package state

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureStateDirsCreatesLayout(t *testing.T) {
	dbPath := t.TempDir()
	if err := EnsureStateDirs(dbPath); err != nil {
		t.Fatalf("EnsureStateDirs: %v", err)
	}
	for _, p := range []string{
		filepath.Join(dbPath, "state", "crash"),
		filepath.Join(dbPath, "state", "tmp"),
	} {
		fi, err := os.Stat(p)
		if err != nil {
			t.Fatalf("missing %s: %v", p, err)
		}
		if !fi.IsDir() {
			t.Fatalf("%s is not a directory", p)
		}
	}
	// idempotent
	if err := EnsureStateDirs(dbPath); err != nil {
		t.Fatalf("second EnsureStateDirs: %v", err)
	}
}

func TestEnsureStateDirsRejectsSymlink(t *testing.T) {
	dbPath := t.TempDir()
	real := filepath.Join(dbPath, "elsewhere")
	if err := os.MkdirAll(real, 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dbPath, "state"), 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.Symlink(real, filepath.Join(dbPath, "state", "crash")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := EnsureStateDirs(dbPath); err == nil {
		t.Fatalf("symlinked crash dir accepted")
	}
}
