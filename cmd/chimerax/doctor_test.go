package main

import (
	"path/filepath"
	"testing"

	"pkt.systems/chimerax/internal/appconfig"
)

func TestVerifyDirectoriesRequiresPaths(t *testing.T) {
	if err := verifyDirectories(appconfig.Config{}); err == nil {
		t.Fatalf("expected error for missing directories")
	}
}

func TestVerifyDirectoriesCreatesAndProbes(t *testing.T) {
	base := t.TempDir()
	cfg := appconfig.Config{
		ProjectRoot: filepath.Join(base, "projects"),
		StateDir:    filepath.Join(base, "state"),
	}
	if err := verifyDirectories(cfg); err != nil {
		t.Fatalf("verifyDirectories: %v", err)
	}
}
