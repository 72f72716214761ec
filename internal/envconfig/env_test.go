package envconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileIsFine(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoad_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("TILEDSWARM_DATA=/from/file\nTILEDSWARM_PARALLEL=4\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(DataDir, "/from/env")
	t.Setenv(Parallel, "")
	os.Unsetenv(Parallel)

	if err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := GetDefault(DataDir, "./data"); got != "/from/env" {
		t.Fatalf("DataDir=%q", got)
	}
	if got := GetInt(Parallel, 1); got != 4 {
		t.Fatalf("Parallel=%d want=4", got)
	}
}

func TestGetDefaults(t *testing.T) {
	t.Setenv(ConfigPath, "  ")
	if got := GetDefault(ConfigPath, "x.yaml"); got != "x.yaml" {
		t.Fatalf("GetDefault=%q", got)
	}
	t.Setenv(Parallel, "many")
	if got := GetInt(Parallel, 2); got != 2 {
		t.Fatalf("GetInt=%d", got)
	}
}
