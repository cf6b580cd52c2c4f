package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsNoFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.MaxConcurrentTasks != 4 {
		t.Errorf("MaxConcurrentTasks = %d, want 4", cfg.MaxConcurrentTasks)
	}
}

func TestLoadYamlOverlay(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "astrod.yml")
	yml := `
addr: ":9090"
mock: true
instruments:
  main:
    cameras: ["camera:sim/0"]
    ccds: ["ccd:sim/0/Imaging"]
`
	if err := os.WriteFile(p, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want :9090", cfg.Addr)
	}
	if !cfg.Mock {
		t.Errorf("Mock = false, want true")
	}
	inst, ok := cfg.Instruments["main"]
	if !ok {
		t.Fatalf("instruments[main] missing")
	}
	if len(inst.Cameras) != 1 || inst.Cameras[0] != "camera:sim/0" {
		t.Errorf("Cameras = %v", inst.Cameras)
	}
}

func TestMergeOverlay(t *testing.T) {
	base := Defaults()
	merged, err := Merge(base, map[string]interface{}{"addr": ":1234"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.Addr != ":1234" {
		t.Errorf("Addr = %q, want :1234", merged.Addr)
	}
	if merged.DatabasePath != base.DatabasePath {
		t.Errorf("DatabasePath changed unexpectedly: %q", merged.DatabasePath)
	}
}
